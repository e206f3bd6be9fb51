package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalyser/internal/clock"
	"github.com/smallbiznis/catalyser/internal/config"
	"github.com/smallbiznis/catalyser/internal/events"
	metalpricecache "github.com/smallbiznis/catalyser/internal/metalprice/cache"
	metalpricedomain "github.com/smallbiznis/catalyser/internal/metalprice/domain"
	"github.com/smallbiznis/catalyser/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      metalpricedomain.Repository
	Cache     metalpricecache.SnapshotCache
	Clock     clock.Clock
	Pricing   *config.PricingConfigHolder `optional:"true"`
	Publisher events.Publisher            `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      metalpricedomain.Repository
	cache     metalpricecache.SnapshotCache
	clock     clock.Clock
	pricing   *config.PricingConfigHolder
	publisher events.Publisher
}

func New(p Params) metalpricedomain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	pricing := p.Pricing
	if pricing == nil {
		pricing = config.NewStaticPricingConfigHolder(config.DefaultPricingConfig())
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("metalprice.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		cache:     p.Cache,
		clock:     p.Clock,
		pricing:   pricing,
		publisher: publisher,
	}
}

func (s *Service) Record(ctx context.Context, req metalpricedomain.RecordRequest) (*metalpricedomain.Snapshot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	currency, _ := metalpricedomain.NormalizeCurrency(req.Currency)

	now := s.clock.Now().UTC()
	asOf := now
	if req.AsOf != nil && !req.AsOf.IsZero() {
		asOf = req.AsOf.UTC()
	}

	snapshot := &metalpricedomain.Snapshot{
		ID:                      s.genID.Generate(),
		PlatinumPricePerTroyOz:  req.Platinum,
		PalladiumPricePerTroyOz: req.Palladium,
		RhodiumPricePerTroyOz:   req.Rhodium,
		Currency:                currency,
		AsOf:                    asOf,
		Source:                  strings.TrimSpace(req.Source),
		CreatedAt:               now,
	}
	if err := s.repo.Insert(ctx, s.db, snapshot); err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, currency); err != nil {
		logger.WithContext(ctx, s.log).Warn("metal price cache invalidation failed",
			zap.String("currency", currency),
			zap.Error(err),
		)
	}

	err := s.publisher.Publish(ctx, events.SubjectPriceSnapshot, events.Event{
		ID:         snapshot.ID.String(),
		Type:       "metal_prices.recorded",
		OccurredAt: now,
		Data:       snapshot,
	})
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("publish metal price snapshot failed",
			zap.String("snapshot_id", snapshot.ID.String()),
			zap.Error(err),
		)
	}

	logger.WithContext(ctx, s.log).Info("metal price snapshot recorded",
		zap.String("snapshot_id", snapshot.ID.String()),
		zap.String("currency", currency),
		zap.Time("as_of", asOf),
	)
	return snapshot, nil
}

// GetCurrentPrices reads through the cache. Cache failures degrade to the
// database instead of failing the valuation.
func (s *Service) GetCurrentPrices(ctx context.Context, currency string) (*metalpricedomain.Snapshot, error) {
	cfg := s.pricing.Get()
	if strings.TrimSpace(currency) == "" {
		currency = cfg.Currency
	}
	currency, err := metalpricedomain.NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}

	cached, ok, err := s.cache.Get(ctx, currency)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("metal price cache read failed",
			zap.String("currency", currency),
			zap.Error(err),
		)
	}
	if ok {
		return cached, nil
	}

	snapshot, err := s.repo.FindLatest(ctx, s.db, currency)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, metalpricedomain.ErrPriceNotFound
	}

	ttl := time.Duration(cfg.PriceCacheTTLSeconds) * time.Second
	if err := s.cache.Set(ctx, snapshot, ttl); err != nil {
		logger.WithContext(ctx, s.log).Warn("metal price cache write failed",
			zap.String("currency", currency),
			zap.Error(err),
		)
	}
	return snapshot, nil
}
