// Package testutil builds throwaway databases and settings for package tests.
package testutil

import (
	"testing"

	"casino/database"
	"casino/services/settings"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with every model migrated.
// A single connection keeps the memory database alive and serialises writers
// the way row locks do on Postgres.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := database.GormConfig()
	cfg.Logger = cfg.Logger.LogMode(gormlogger.Silent)

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Settings returns a static provider seeded with defaults, after fn mutates them.
func Settings(fn func(s *settings.Snapshot)) *settings.Static {
	snap := settings.Defaults()
	if fn != nil {
		fn(snap)
	}
	return settings.NewStatic(snap)
}
