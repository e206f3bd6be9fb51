package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// FindActive returns nil without error when no row is active.
	FindActive(ctx context.Context, db *gorm.DB) (*RecoveryRates, error)
	DeactivateAll(ctx context.Context, db *gorm.DB, now time.Time) error
	Insert(ctx context.Context, db *gorm.DB, rates *RecoveryRates) error
}
