package resolver

import (
	"context"

	"gitlab-portal/internal/auth"
)

// Resolver determines which owner string an external identity maps to.
// It is the ONLY place where identity-to-owner mapping logic lives.
type Resolver interface {
	Resolve(
		ctx context.Context,
		identity *auth.Identity,
	) (owner string, err error)
}

// UsernameResolver uses the provider username as the owner. It keeps no
// state, so a renamed GitLab account loses access to its snippets.
type UsernameResolver struct{}

func (UsernameResolver) Resolve(_ context.Context, identity *auth.Identity) (string, error) {
	if identity == nil || identity.Username == "" {
		return "", errNoIdentity
	}
	return identity.Username, nil
}
