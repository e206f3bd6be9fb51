package migration

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalyser/internal/clock"
	"github.com/smallbiznis/catalyser/internal/config"
	"github.com/smallbiznis/catalyser/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, holder *config.PricingConfigHolder, node *snowflake.Node, clk clock.Clock, log *zap.Logger) error {
		if conn.Dialector.Name() != "postgres" {
			log.Warn("schema migrations skipped, embedded schema targets postgres",
				zap.String("dialect", conn.Dialector.Name()))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		return seed.EnsureDefaultRecoveryRates(context.Background(), conn, node, clk.Now(), holder.Get().DefaultRecoveryRates)
	}),
)
