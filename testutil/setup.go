// Package testutil provides shared helpers for package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/javl1n/siblo-server/cache"
	"github.com/javl1n/siblo-server/cache/local"
	"github.com/javl1n/siblo-server/config"
	"github.com/javl1n/siblo-server/db"
	"github.com/javl1n/siblo-server/model"
)

// SetupTestDB opens a fresh in-memory database with all tables migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Open(config.DatabaseConfig{Mode: db.ModeMemory})
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

// SetupTestCache returns an in-process cache, closed when the test ends.
func SetupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := local.NewCache(local.Config{})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}
