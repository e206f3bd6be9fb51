package repository

import (
	"context"
	"time"

	recoveryratedomain "github.com/smallbiznis/catalyser/internal/recoveryrate/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() recoveryratedomain.Repository {
	return &repo{}
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB) (*recoveryratedomain.RecoveryRates, error) {
	var rows []recoveryratedomain.RecoveryRates
	err := db.WithContext(ctx).Raw(
		`SELECT id, pt_rate, pd_rate, rh_rate, active, created_at, updated_at
		 FROM recovery_rates
		 WHERE active = TRUE
		 ORDER BY id DESC
		 LIMIT 1`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) DeactivateAll(ctx context.Context, db *gorm.DB, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recovery_rates SET active = FALSE, updated_at = ? WHERE active = TRUE`,
		now,
	).Error
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rates *recoveryratedomain.RecoveryRates) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO recovery_rates (id, pt_rate, pd_rate, rh_rate, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rates.ID.Int64(),
		rates.Pt,
		rates.Pd,
		rates.Rh,
		rates.Active,
		rates.CreatedAt,
		rates.UpdatedAt,
	).Error
}
