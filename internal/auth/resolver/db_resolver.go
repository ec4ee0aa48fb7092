package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab-portal/internal/auth"
	"gitlab-portal/internal/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errNoIdentity = errors.New("identity is nil or has no username")

// IdentityRecord links a provider account to the owner string it was
// first seen with.
type IdentityRecord struct {
	ID             string `gorm:"primaryKey;size:36"`
	Provider       string `gorm:"size:32;not null;uniqueIndex:idx_identity_provider_user"`
	ProviderUserID string `gorm:"size:255;not null;uniqueIndex:idx_identity_provider_user"`
	Username       string `gorm:"size:255;not null"`
	Email          string `gorm:"size:255"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (IdentityRecord) TableName() string {
	return "identities"
}

// DBResolver resolves identities using the database. The owner stays
// stable when the user later renames the GitLab account.
type DBResolver struct {
	db *gorm.DB
}

func NewDBResolver(db *gorm.DB) *DBResolver {
	return &DBResolver{db: db}
}

func (r *DBResolver) Resolve(
	ctx context.Context,
	identity *auth.Identity,
) (string, error) {

	if identity == nil || identity.Username == "" {
		return "", errNoIdentity
	}

	// 1. Try identity lookup (provider + provider_user_id)
	var rec IdentityRecord
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_user_id = ?", identity.Provider, identity.ProviderUserID).
		First(&rec).Error

	if err == nil {
		if rec.Email != identity.Email {
			// email is informational only; the owner never changes
			if err := r.db.WithContext(ctx).Model(&rec).Update("email", identity.Email).Error; err != nil {
				logger.Warn("identity email not updated", map[string]any{
					"provider":         rec.Provider,
					"provider_user_id": rec.ProviderUserID,
					"error":            err.Error(),
				})
			}
		}
		return rec.Username, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("identity lookup: %w", err)
	}

	// 2. First login: record the current username as the owner
	rec = IdentityRecord{
		ID:             uuid.NewString(),
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		Username:       identity.Username,
		Email:          identity.Email,
	}

	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		// a concurrent first login may have won the unique index
		var existing IdentityRecord
		if lookupErr := r.db.WithContext(ctx).
			Where("provider = ? AND provider_user_id = ?", identity.Provider, identity.ProviderUserID).
			First(&existing).Error; lookupErr == nil {
			return existing.Username, nil
		}
		return "", fmt.Errorf("identity create: %w", err)
	}

	return rec.Username, nil
}
