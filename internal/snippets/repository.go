package snippets

import (
	"context"
	"strings"
)

// Repository persists snippets. Implementations return ErrNotFound for
// unknown ids and *ValidationError for empty fields. Owner and ID never
// change after Create.
type Repository interface {
	Create(ctx context.Context, title, content, owner string) (*Snippet, error)
	FindByID(ctx context.Context, id string) (*Snippet, error)
	// ListAll returns every snippet, newest first.
	ListAll(ctx context.Context) ([]Snippet, error)
	Update(ctx context.Context, id, title, content string) (*Snippet, error)
	Delete(ctx context.Context, id string) error
}

// normalize trims title and content and rejects empty values.
func normalize(title, content string) (string, string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "", &ValidationError{Field: "title"}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", "", &ValidationError{Field: "content"}
	}
	return title, content, nil
}
