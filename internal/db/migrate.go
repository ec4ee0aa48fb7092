package db

import (
	"context"
	"fmt"

	"gitlab-portal/internal/auth/credentials"
	"gitlab-portal/internal/auth/resolver"
	"gitlab-portal/internal/snippets"

	"gorm.io/gorm"
)

// Migrate creates or updates the schema for every persisted model.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&snippets.Snippet{},
		&credentials.User{},
		&resolver.IdentityRecord{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
