// Package testutil opens throwaway sqlite databases carrying the service schema.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// schema mirrors the postgres migrations with sqlite types.
var schema = []string{
	`CREATE TABLE credit_balances (
		user_id TEXT PRIMARY KEY,
		available INTEGER NOT NULL DEFAULT 0 CHECK (available >= 0),
		lifetime_earned INTEGER NOT NULL DEFAULT 0,
		lifetime_spent INTEGER NOT NULL DEFAULT 0,
		last_sequence INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		CHECK (available = lifetime_earned - lifetime_spent)
	)`,
	`CREATE TABLE credit_ledger_entries (
		id INTEGER PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES credit_balances (user_id),
		sequence INTEGER NOT NULL,
		amount INTEGER NOT NULL CHECK (amount <> 0),
		balance_after INTEGER NOT NULL CHECK (balance_after >= 0),
		entry_type TEXT NOT NULL,
		source_detail TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		expires_at DATETIME,
		created_at DATETIME NOT NULL,
		UNIQUE (user_id, sequence)
	)`,
	`CREATE TABLE metal_price_snapshots (
		id INTEGER PRIMARY KEY,
		platinum_price_oz TEXT NOT NULL,
		palladium_price_oz TEXT NOT NULL,
		rhodium_price_oz TEXT NOT NULL,
		currency TEXT NOT NULL,
		as_of DATETIME NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE recovery_rates (
		id INTEGER PRIMARY KEY,
		pt_rate TEXT NOT NULL,
		pd_rate TEXT NOT NULL,
		rh_rate TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE converters (
		id INTEGER PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		make TEXT NOT NULL DEFAULT '',
		pt_content TEXT NOT NULL DEFAULT '',
		pd_content TEXT NOT NULL DEFAULT '',
		rh_content TEXT NOT NULL DEFAULT '',
		weight TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE user_pricing_profiles (
		user_id TEXT PRIMARY KEY,
		discount_percent TEXT NOT NULL DEFAULT '0',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
}

// OpenSQLite returns a private in-memory database with the full schema.
// A single connection serializes transactions the way row locks do in postgres.
func OpenSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec("PRAGMA busy_timeout = 5000").Error)
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}
