package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/catalyser/internal/clock"
	"github.com/smallbiznis/catalyser/internal/config"
	converterdomain "github.com/smallbiznis/catalyser/internal/converter/domain"
	creditdomain "github.com/smallbiznis/catalyser/internal/credit/domain"
	metalpricedomain "github.com/smallbiznis/catalyser/internal/metalprice/domain"
	"github.com/smallbiznis/catalyser/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/catalyser/internal/observability/metrics"
	"github.com/smallbiznis/catalyser/internal/pricing/calculator"
	pricingdomain "github.com/smallbiznis/catalyser/internal/pricing/domain"
	"github.com/smallbiznis/catalyser/internal/ratelimit"
	recoveryratedomain "github.com/smallbiznis/catalyser/internal/recoveryrate/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	pricedViewSource    = "priced view"
	refundSourcePrefix  = "refund: priced view failed: "
	outcomeOK           = "ok"
	outcomeInsufficient = "insufficient_credits"
	outcomeInvalidInput = "invalid_input"
	outcomeError        = "error"
)

// refundTimeout bounds the compensating grant, which outlives the caller's context.
const refundTimeout = 5 * time.Second

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       pricingdomain.Repository
	Clock      clock.Clock
	Ledger     pricingdomain.Ledger
	Calculator calculator.Calculator
	Converters converterdomain.Service
	Prices     metalpricedomain.Provider
	Rates      recoveryratedomain.Provider
	Pricing    *config.PricingConfigHolder `optional:"true"`
	Limiter    *ratelimit.QuoteLimiter     `optional:"true"`
	ObsMetrics *obsmetrics.Metrics         `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       pricingdomain.Repository
	clock      clock.Clock
	ledger     pricingdomain.Ledger
	calculator calculator.Calculator
	converters converterdomain.Service
	prices     metalpricedomain.Provider
	rates      recoveryratedomain.Provider
	pricing    *config.PricingConfigHolder
	limiter    *ratelimit.QuoteLimiter
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) pricingdomain.Service {
	calc := p.Calculator
	if calc == nil {
		calc = calculator.New()
	}
	pricing := p.Pricing
	if pricing == nil {
		pricing = config.NewStaticPricingConfigHolder(config.DefaultPricingConfig())
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("pricing.service"),
		repo:       p.Repo,
		clock:      p.Clock,
		ledger:     p.Ledger,
		calculator: calc,
		converters: p.Converters,
		prices:     p.Prices,
		rates:      p.Rates,
		pricing:    pricing,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}
}

// PriceConverterForUser charges first and computes second, so no valuation
// is ever produced for an unpaid request. A failed computation is refunded
// with exactly one compensating grant before the error is returned.
func (s *Service) PriceConverterForUser(ctx context.Context, req pricingdomain.PriceConverterRequest) (*pricingdomain.PriceConverterResponse, error) {
	if req.CostInCredits <= 0 {
		return nil, pricingdomain.ErrInvalidCost
	}
	started := time.Now()
	currency := req.Currency
	if currency == "" {
		currency = s.pricing.Get().Currency
	}

	content := calculator.ParseContent(req.Content.PtContent, req.Content.PdContent, req.Content.RhContent, req.Content.Weight)

	debit, err := s.ledger.TryDebit(ctx, creditdomain.DebitRequest{
		UserID:       req.UserID,
		Amount:       req.CostInCredits,
		Type:         creditdomain.EntryTypeConsumption,
		SourceDetail: pricedViewSource,
		Metadata:     req.Metadata,
	})
	if err != nil {
		outcome := outcomeError
		if errors.Is(err, creditdomain.ErrInsufficientCredits) {
			outcome = outcomeInsufficient
		}
		s.obsMetrics.RecordPriceComputation(ctx, outcome, currency, time.Since(started))
		return nil, err
	}

	result, err := s.calculator.Compute(calculator.Input{
		Content:         content,
		Prices:          req.Prices,
		Rates:           req.Rates,
		DiscountPercent: req.DiscountPercent,
		Currency:        currency,
	})
	if err != nil {
		return nil, s.refund(ctx, req, debit, err, currency, started)
	}

	s.obsMetrics.RecordPriceComputation(ctx, outcomeOK, currency, time.Since(started))
	return &pricingdomain.PriceConverterResponse{
		Result:           result,
		CreditsRemaining: debit.BalanceAfter,
	}, nil
}

func (s *Service) refund(
	ctx context.Context,
	req pricingdomain.PriceConverterRequest,
	debit *creditdomain.CreditLedgerEntry,
	computeErr error,
	currency string,
	started time.Time,
) error {
	reason := outcomeError
	if errors.Is(computeErr, calculator.ErrInvalidInput) {
		reason = outcomeInvalidInput
	}
	s.obsMetrics.RecordPriceComputation(ctx, reason, currency, time.Since(started))
	s.obsMetrics.RecordPricingRefund(ctx, reason)

	refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refundTimeout)
	defer cancel()
	_, refundErr := s.ledger.Grant(refundCtx, creditdomain.GrantRequest{
		UserID:       debit.UserID,
		Amount:       req.CostInCredits,
		Type:         creditdomain.EntryTypeGrant,
		SourceDetail: refundSourcePrefix + computeErr.Error(),
		Metadata:     map[string]any{"refund_of": debit.ID.String()},
	})
	if refundErr != nil {
		logger.WithContext(ctx, s.log).Error("priced view refund failed",
			zap.String("user_id", debit.UserID),
			zap.String("debit_entry_id", debit.ID.String()),
			zap.Int64("amount", req.CostInCredits),
			zap.Error(refundErr),
		)
		return errors.Join(computeErr, fmt.Errorf("%w: %w", pricingdomain.ErrRefundFailed, refundErr))
	}

	logger.WithContext(ctx, s.log).Warn("priced view refunded",
		zap.String("user_id", debit.UserID),
		zap.String("debit_entry_id", debit.ID.String()),
		zap.Error(computeErr),
	)
	return computeErr
}

// Quote resolves every input before charging, so a missing converter or
// price snapshot never costs the user a credit.
func (s *Service) Quote(ctx context.Context, req pricingdomain.QuoteRequest) (*pricingdomain.PriceConverterResponse, error) {
	userID, err := creditdomain.NormalizeUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	if res := s.limiter.Allow(ctx, userID); !res.Allowed {
		return nil, pricingdomain.ErrRateLimited
	}

	converter, err := s.converters.Get(ctx, req.ConverterID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.prices.GetCurrentPrices(ctx, req.Currency)
	if err != nil {
		return nil, err
	}
	rates, err := s.rates.GetActiveRecoveryRates(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := s.GetUserDiscount(ctx, userID)
	if err != nil {
		return nil, err
	}
	cost, ok := s.pricing.Get().FeatureCost(config.FeaturePriceView)
	if !ok {
		return nil, pricingdomain.ErrInvalidCost
	}

	return s.PriceConverterForUser(ctx, pricingdomain.PriceConverterRequest{
		UserID: userID,
		Content: pricingdomain.ConverterContent{
			PtContent: converter.PtContent,
			PdContent: converter.PdContent,
			RhContent: converter.RhContent,
			Weight:    converter.Weight,
		},
		Prices:          snapshot.SpotPrices(),
		Currency:        snapshot.Currency,
		Rates:           rates.Rates(),
		DiscountPercent: profile.DiscountPercent,
		CostInCredits:   cost,
		Metadata: map[string]any{
			"feature":      config.FeaturePriceView,
			"converter_id": converter.ID.String(),
			"snapshot_id":  snapshot.ID.String(),
		},
	})
}

func (s *Service) GetUserDiscount(ctx context.Context, userID string) (*pricingdomain.UserPricingProfile, error) {
	userID, err := creditdomain.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.repo.FindProfile(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return &pricingdomain.UserPricingProfile{UserID: userID, DiscountPercent: decimal.Zero}, nil
	}
	return profile, nil
}

func (s *Service) SetUserDiscount(ctx context.Context, req pricingdomain.SetDiscountRequest) (*pricingdomain.UserPricingProfile, error) {
	userID, err := creditdomain.NormalizeUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	if req.DiscountPercent.IsNegative() || req.DiscountPercent.GreaterThan(hundred) {
		return nil, pricingdomain.ErrInvalidDiscount
	}

	now := s.clock.Now().UTC()
	err = s.repo.UpsertProfile(ctx, s.db, &pricingdomain.UserPricingProfile{
		UserID:          userID,
		DiscountPercent: req.DiscountPercent,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("user discount updated",
		zap.String("user_id", userID),
		zap.String("discount_percent", req.DiscountPercent.String()),
	)
	return s.GetUserDiscount(ctx, userID)
}
