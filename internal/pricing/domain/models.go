package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserPricingProfile carries the discount applied to a user's valuations.
// A user without a row prices at discount zero.
type UserPricingProfile struct {
	UserID          string          `json:"user_id" gorm:"column:user_id"`
	DiscountPercent decimal.Decimal `json:"discount_percent" gorm:"column:discount_percent"`
	CreatedAt       time.Time       `json:"created_at,omitzero" gorm:"column:created_at"`
	UpdatedAt       time.Time       `json:"updated_at,omitzero" gorm:"column:updated_at"`
}

func (UserPricingProfile) TableName() string { return "user_pricing_profiles" }
