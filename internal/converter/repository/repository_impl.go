package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	converterdomain "github.com/smallbiznis/catalyser/internal/converter/domain"
	"gorm.io/gorm"
)

const converterColumns = `id, code, name, make, pt_content, pd_content, rh_content, weight, created_at, updated_at`

type repo struct{}

func Provide() converterdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, c *converterdomain.Converter) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO converters (`+converterColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.Int64(),
		c.Code,
		c.Name,
		c.Make,
		c.PtContent,
		c.PdContent,
		c.RhContent,
		c.Weight,
		c.CreatedAt,
		c.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*converterdomain.Converter, error) {
	return r.findOne(ctx, db, `SELECT `+converterColumns+` FROM converters WHERE id = ?`, id.Int64())
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*converterdomain.Converter, error) {
	return r.findOne(ctx, db, `SELECT `+converterColumns+` FROM converters WHERE code = ?`, code)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*converterdomain.Converter, error) {
	var rows []converterdomain.Converter
	if err := db.WithContext(ctx).Raw(query, arg).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]converterdomain.Converter, error) {
	var rows []converterdomain.Converter
	err := db.WithContext(ctx).Raw(
		`SELECT `+converterColumns+` FROM converters WHERE id > ? ORDER BY id ASC LIMIT ?`,
		afterID.Int64(),
		limit,
	).Scan(&rows).Error
	return rows, err
}
