package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	sharedcache "github.com/smallbiznis/catalyser/internal/cache"
	"github.com/smallbiznis/catalyser/internal/clock"
	"github.com/smallbiznis/catalyser/internal/config"
	"github.com/smallbiznis/catalyser/internal/observability/logger"
	recoveryratedomain "github.com/smallbiznis/catalyser/internal/recoveryrate/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const activeKey = "active"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    recoveryratedomain.Repository
	Clock   clock.Clock
	Pricing *config.PricingConfigHolder `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    recoveryratedomain.Repository
	clock   clock.Clock
	pricing *config.PricingConfigHolder
	cache   sharedcache.Cache[string, recoveryratedomain.RecoveryRates]
}

func New(p Params) recoveryratedomain.Service {
	pricing := p.Pricing
	if pricing == nil {
		pricing = config.NewStaticPricingConfigHolder(config.DefaultPricingConfig())
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("recoveryrate.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		pricing: pricing,
		cache:   sharedcache.NewTTLCache[string, recoveryratedomain.RecoveryRates](),
	}
}

// GetActiveRecoveryRates falls back to the configured defaults until an
// operator stores rates. Defaults are not cached so a later reload applies.
func (s *Service) GetActiveRecoveryRates(ctx context.Context) (*recoveryratedomain.RecoveryRates, error) {
	if cached, ok := s.cache.Get(activeKey); ok {
		return &cached, nil
	}

	cfg := s.pricing.Get()
	active, err := s.repo.FindActive(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if active == nil {
		defaults := cfg.DefaultRecoveryRates
		return &recoveryratedomain.RecoveryRates{
			Pt:        decimal.NewFromFloat(defaults.Pt),
			Pd:        decimal.NewFromFloat(defaults.Pd),
			Rh:        decimal.NewFromFloat(defaults.Rh),
			Active:    true,
			IsDefault: true,
		}, nil
	}

	s.cache.Set(activeKey, *active, time.Duration(cfg.PriceCacheTTLSeconds)*time.Second)
	return active, nil
}

func (s *Service) Update(ctx context.Context, req recoveryratedomain.UpdateRequest) (*recoveryratedomain.RecoveryRates, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	rates := &recoveryratedomain.RecoveryRates{
		ID:        s.genID.Generate(),
		Pt:        req.Pt,
		Pd:        req.Pd,
		Rh:        req.Rh,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeactivateAll(ctx, tx, now); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, rates)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Delete(activeKey)

	logger.WithContext(ctx, s.log).Info("recovery rates updated",
		zap.String("pt", rates.Pt.String()),
		zap.String("pd", rates.Pd.String()),
		zap.String("rh", rates.Rh.String()),
	)
	return rates, nil
}
