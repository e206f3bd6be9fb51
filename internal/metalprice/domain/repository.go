package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, snapshot *Snapshot) error
	// FindLatest returns nil without error when no snapshot exists for currency.
	FindLatest(ctx context.Context, db *gorm.DB, currency string) (*Snapshot, error)
}
