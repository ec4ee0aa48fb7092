package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// pgUniqueViolation is the SQLSTATE for a unique constraint violation.
const pgUniqueViolation = "23505"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyRegistered  = errors.New("credentials already exist")
	ErrInvalidUsername    = errors.New("username must be 3 to 64 characters")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Register creates a local account and returns its username.
func (s *Service) Register(
	ctx context.Context,
	username string,
	password string,
) (string, error) {

	username = strings.TrimSpace(username)
	if n := len(username); n < 3 || n > 64 {
		return "", ErrInvalidUsername
	}

	// 1. Check if the username is taken
	var count int64
	err := s.db.WithContext(ctx).
		Model(&User{}).
		Where("LOWER(username) = LOWER(?)", username).
		Count(&count).Error
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "", ErrAlreadyRegistered
	}

	// 2. Hash password
	hash, version, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	// 3. Insert user
	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		HashVersion:  version,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicate(err) {
			return "", ErrAlreadyRegistered
		}
		return "", err
	}

	return user.Username, nil
}

// Authenticate returns the stored username for valid credentials.
func (s *Service) Authenticate(
	ctx context.Context,
	username string,
	password string,
) (string, error) {

	var user User

	// 1. Find user
	err := s.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?)", strings.TrimSpace(username)).
		First(&user).Error
	if err != nil {
		// hide whether user exists or not
		return "", ErrInvalidCredentials
	}

	// 2. Verify password
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	return user.Username, nil
}

// isDuplicate reports a unique constraint violation. The postgres
// dialector only translates pgx errors, so lib/pq errors are matched here.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}
