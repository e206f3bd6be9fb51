package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalyser/internal/assistant"
	"github.com/smallbiznis/catalyser/internal/cache"
	"github.com/smallbiznis/catalyser/internal/clock"
	"github.com/smallbiznis/catalyser/internal/config"
	"github.com/smallbiznis/catalyser/internal/converter"
	"github.com/smallbiznis/catalyser/internal/credit"
	"github.com/smallbiznis/catalyser/internal/events"
	"github.com/smallbiznis/catalyser/internal/metalprice"
	"github.com/smallbiznis/catalyser/internal/migration"
	"github.com/smallbiznis/catalyser/internal/observability"
	"github.com/smallbiznis/catalyser/internal/pricing"
	"github.com/smallbiznis/catalyser/internal/ratelimit"
	"github.com/smallbiznis/catalyser/internal/recoveryrate"
	"github.com/smallbiznis/catalyser/internal/scheduler"
	"github.com/smallbiznis/catalyser/internal/server"
	"github.com/smallbiznis/catalyser/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		cache.Module,
		ratelimit.Module,
		events.Module,

		// Functional Domains
		credit.Module,
		metalprice.Module,
		recoveryrate.Module,
		converter.Module,
		pricing.Module,

		// Transports
		server.Module,
		assistant.Module,
		scheduler.Module,
	)
	app.Run()
}

// RegisterSnowflake builds the id generator. Replicas must run with distinct SNOWFLAKE_NODE values.
func RegisterSnowflake() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		nodeID = parsed
	}
	return snowflake.NewNode(nodeID)
}
