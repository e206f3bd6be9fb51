package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/catalyser/internal/pricing/calculator"
)

// RecoveryRates are the refiner's recovery percentages. Exactly one row is active.
type RecoveryRates struct {
	ID        snowflake.ID    `json:"id,omitempty" gorm:"column:id"`
	Pt        decimal.Decimal `json:"pt" gorm:"column:pt_rate"`
	Pd        decimal.Decimal `json:"pd" gorm:"column:pd_rate"`
	Rh        decimal.Decimal `json:"rh" gorm:"column:rh_rate"`
	Active    bool            `json:"active" gorm:"column:active"`
	IsDefault bool            `json:"is_default,omitempty" gorm:"-"`
	CreatedAt time.Time       `json:"created_at,omitzero" gorm:"column:created_at"`
	UpdatedAt time.Time       `json:"updated_at,omitzero" gorm:"column:updated_at"`
}

func (RecoveryRates) TableName() string { return "recovery_rates" }

func (r RecoveryRates) Rates() calculator.RecoveryRates {
	return calculator.RecoveryRates{Pt: r.Pt, Pd: r.Pd, Rh: r.Rh}
}
