package db

import (
	"context"
	"path/filepath"
	"testing"

	"gitlab-portal/internal/auth/credentials"
	"gitlab-portal/internal/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOpenAndMigrate_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "portal.db")

	gdb, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })

	require.NoError(t, Migrate(ctx, gdb))
	require.NoError(t, Migrate(ctx, gdb), "migrations are repeatable")

	for _, table := range []string{"snippets", "users", "identities"} {
		assert.True(t, gdb.Migrator().HasTable(table), table)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestOpen_TranslatesUniqueViolations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "portal.db")

	gdb, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })
	require.NoError(t, Migrate(ctx, gdb))

	first := credentials.User{ID: uuid.NewString(), Username: "erin", PasswordHash: "x", HashVersion: "bcrypt"}
	require.NoError(t, gdb.WithContext(ctx).Create(&first).Error)

	second := first
	second.ID = uuid.NewString()
	err = gdb.WithContext(ctx).Create(&second).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
