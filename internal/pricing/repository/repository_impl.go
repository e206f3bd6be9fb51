package repository

import (
	"context"

	pricingdomain "github.com/smallbiznis/catalyser/internal/pricing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() pricingdomain.Repository {
	return &repo{}
}

func (r *repo) FindProfile(ctx context.Context, db *gorm.DB, userID string) (*pricingdomain.UserPricingProfile, error) {
	var rows []pricingdomain.UserPricingProfile
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, discount_percent, created_at, updated_at
		 FROM user_pricing_profiles WHERE user_id = ?`,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) UpsertProfile(ctx context.Context, db *gorm.DB, p *pricingdomain.UserPricingProfile) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO user_pricing_profiles (user_id, discount_percent, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE
		 SET discount_percent = excluded.discount_percent,
		     updated_at = excluded.updated_at`,
		p.UserID,
		p.DiscountPercent,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}
