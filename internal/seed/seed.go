package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/catalyser/internal/config"
	"gorm.io/gorm"
)

// EnsureDefaultRecoveryRates stores the configured defaults as the active
// recovery rates when no row exists yet. Existing rows are never touched.
func EnsureDefaultRecoveryRates(ctx context.Context, db *gorm.DB, node *snowflake.Node, now time.Time, defaults config.RecoveryRateDefaults) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Raw(`SELECT COUNT(1) FROM recovery_rates`).Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		return tx.Exec(
			`INSERT INTO recovery_rates (id, pt_rate, pd_rate, rh_rate, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, TRUE, ?, ?)`,
			node.Generate().Int64(),
			decimal.NewFromFloat(defaults.Pt),
			decimal.NewFromFloat(defaults.Pd),
			decimal.NewFromFloat(defaults.Rh),
			now,
			now,
		).Error
	})
}
