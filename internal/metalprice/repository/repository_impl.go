package repository

import (
	"context"

	metalpricedomain "github.com/smallbiznis/catalyser/internal/metalprice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() metalpricedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, s *metalpricedomain.Snapshot) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO metal_price_snapshots (id, platinum_price_oz, palladium_price_oz, rhodium_price_oz, currency, as_of, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.Int64(),
		s.PlatinumPricePerTroyOz,
		s.PalladiumPricePerTroyOz,
		s.RhodiumPricePerTroyOz,
		s.Currency,
		s.AsOf,
		s.Source,
		s.CreatedAt,
	).Error
}

func (r *repo) FindLatest(ctx context.Context, db *gorm.DB, currency string) (*metalpricedomain.Snapshot, error) {
	var snapshots []metalpricedomain.Snapshot
	err := db.WithContext(ctx).Raw(
		`SELECT id, platinum_price_oz, palladium_price_oz, rhodium_price_oz, currency, as_of, source, created_at
		 FROM metal_price_snapshots
		 WHERE currency = ?
		 ORDER BY as_of DESC, id DESC
		 LIMIT 1`,
		currency,
	).Scan(&snapshots).Error
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}
