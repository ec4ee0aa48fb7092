package snippets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRepository stores snippets in a SQL database through gorm.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, title, content, owner string) (*Snippet, error) {
	title, content, err := normalize(title, content)
	if err != nil {
		return nil, err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, &ValidationError{Field: "owner"}
	}

	s := &Snippet{
		ID:      uuid.NewString(),
		Title:   title,
		Content: content,
		Owner:   owner,
	}
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, fmt.Errorf("create snippet: %w", err)
	}
	return s, nil
}

func (r *GormRepository) FindByID(ctx context.Context, id string) (*Snippet, error) {
	var s Snippet
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find snippet: %w", err)
	}
	return &s, nil
}

func (r *GormRepository) ListAll(ctx context.Context) ([]Snippet, error) {
	var list []Snippet
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	return list, nil
}

func (r *GormRepository) Update(ctx context.Context, id, title, content string) (*Snippet, error) {
	title, content, err := normalize(title, content)
	if err != nil {
		return nil, err
	}

	// only title and content are writable; RowsAffected catches a
	// concurrent delete
	res := r.db.WithContext(ctx).
		Model(&Snippet{}).
		Where("id = ?", id).
		Updates(map[string]any{"title": title, "content": content})
	if res.Error != nil {
		return nil, fmt.Errorf("update snippet: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return r.FindByID(ctx, id)
}

func (r *GormRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Snippet{})
	if res.Error != nil {
		return fmt.Errorf("delete snippet: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
