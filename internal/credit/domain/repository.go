package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	InsertBalance(ctx context.Context, db *gorm.DB, balance *CreditBalance) error
	// FindBalance returns nil without error when the account does not exist.
	FindBalance(ctx context.Context, db *gorm.DB, userID string) (*CreditBalance, error)
	// CreditBalance adds amount and bumps the sequence; it returns rows affected.
	CreditBalance(ctx context.Context, db *gorm.DB, userID string, amount int64, now time.Time) (int64, error)
	// DebitBalance removes amount only if available >= amount; it returns rows affected.
	DebitBalance(ctx context.Context, db *gorm.DB, userID string, amount int64, now time.Time) (int64, error)
	InsertEntry(ctx context.Context, db *gorm.DB, entry *CreditLedgerEntry) error
	// ListEntries returns entries with sequence in (afterSequence, uptoSequence], oldest first.
	// uptoSequence <= 0 means unbounded, limit <= 0 means no limit.
	ListEntries(ctx context.Context, db *gorm.DB, userID string, afterSequence, uptoSequence int64, limit int) ([]CreditLedgerEntry, error)
	ListUserIDs(ctx context.Context, db *gorm.DB, afterUserID string, limit int) ([]string, error)
}
