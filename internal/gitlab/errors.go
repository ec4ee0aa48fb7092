package gitlab

import (
	"fmt"
	"strings"
)

// UpstreamError reports a non-2xx response from the GitLab API.
// A 401 is not special-cased; callers decide what an expired grant means.
type UpstreamError struct {
	Status     int
	StatusText string
	Path       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%d - %s - fetch from %s failed", e.Status, e.StatusText, e.Path)
}

// GraphQLError carries the errors array of a GraphQL response that
// otherwise completed with a 2xx status.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}
