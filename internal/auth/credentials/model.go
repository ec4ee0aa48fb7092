package credentials

import "time"

// User is a local account used when the portal runs without GitLab login.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Username     string `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	HashVersion  string `gorm:"size:16;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
