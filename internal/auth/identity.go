package auth

// Identity represents a normalized external authentication identity
// returned by an OAuth provider. It contains facts only, no decisions.
type Identity struct {
	Provider       string // e.g. "gitlab"
	ProviderUserID string // provider-scoped unique user identifier
	Username       string // provider username at login time
	Email          string
}
