package snippets

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no snippet has the requested id.
var ErrNotFound = errors.New("snippet not found")

// ValidationError reports a field that is empty after trimming.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("snippet %s must not be empty", e.Field)
}
