package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/catalyser/internal/pricing/calculator"
)

// Snapshot is an immutable set of spot prices per troy ounce.
type Snapshot struct {
	ID                      snowflake.ID    `json:"id" gorm:"column:id"`
	PlatinumPricePerTroyOz  decimal.Decimal `json:"platinum_price_per_troy_oz" gorm:"column:platinum_price_oz"`
	PalladiumPricePerTroyOz decimal.Decimal `json:"palladium_price_per_troy_oz" gorm:"column:palladium_price_oz"`
	RhodiumPricePerTroyOz   decimal.Decimal `json:"rhodium_price_per_troy_oz" gorm:"column:rhodium_price_oz"`
	Currency                string          `json:"currency" gorm:"column:currency"`
	AsOf                    time.Time       `json:"as_of" gorm:"column:as_of"`
	Source                  string          `json:"source,omitempty" gorm:"column:source"`
	CreatedAt               time.Time       `json:"created_at" gorm:"column:created_at"`
}

func (Snapshot) TableName() string { return "metal_price_snapshots" }

func (s Snapshot) SpotPrices() calculator.SpotPrices {
	return calculator.SpotPrices{
		Pt: s.PlatinumPricePerTroyOz,
		Pd: s.PalladiumPricePerTroyOz,
		Rh: s.RhodiumPricePerTroyOz,
	}
}
