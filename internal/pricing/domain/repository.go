package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// FindProfile returns nil without error when the user has no profile.
	FindProfile(ctx context.Context, db *gorm.DB, userID string) (*UserPricingProfile, error)
	UpsertProfile(ctx context.Context, db *gorm.DB, profile *UserPricingProfile) error
}
