// Package testhelpers builds throwaway dependencies for package tests.
package testhelpers

import (
	"path/filepath"
	"testing"

	"github.com/perse-cms/perse/internal/config"
	"github.com/perse-cms/perse/internal/database"
	"gorm.io/gorm"
)

// SQLiteConfig returns a test config backed by a sqlite file in a temp dir.
func SQLiteConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "perse.db")
	return &config.AppConfig{
		Port:           3000,
		Env:            "test",
		LogLevel:       "info",
		RequestTimeout: config.DefaultRequestTimeout,
		Database: config.DatabaseRuntimeConfig{
			Driver:         config.DriverSQLite,
			Name:           path,
			MaxConnections: 1,
			AutoMigrate:    true,
		},
		DSN: path,
	}
}

// NewSQLiteDB opens a migrated sqlite database that is closed with the test.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(SQLiteConfig(t))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}
