package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, converter *Converter) error
	// FindByID and FindByCode return nil without error when nothing matches.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Converter, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Converter, error)
	List(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]Converter, error)
}
