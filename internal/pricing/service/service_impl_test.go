package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/catalyser/internal/clock"
	"github.com/smallbiznis/catalyser/internal/config"
	converterdomain "github.com/smallbiznis/catalyser/internal/converter/domain"
	converterrepo "github.com/smallbiznis/catalyser/internal/converter/repository"
	converterservice "github.com/smallbiznis/catalyser/internal/converter/service"
	creditdomain "github.com/smallbiznis/catalyser/internal/credit/domain"
	creditrepo "github.com/smallbiznis/catalyser/internal/credit/repository"
	creditservice "github.com/smallbiznis/catalyser/internal/credit/service"
	metalpricecache "github.com/smallbiznis/catalyser/internal/metalprice/cache"
	metalpricedomain "github.com/smallbiznis/catalyser/internal/metalprice/domain"
	metalpricerepo "github.com/smallbiznis/catalyser/internal/metalprice/repository"
	metalpriceservice "github.com/smallbiznis/catalyser/internal/metalprice/service"
	"github.com/smallbiznis/catalyser/internal/pricing/calculator"
	pricingdomain "github.com/smallbiznis/catalyser/internal/pricing/domain"
	"github.com/smallbiznis/catalyser/internal/pricing/repository"
	"github.com/smallbiznis/catalyser/internal/ratelimit"
	recoveryraterepo "github.com/smallbiznis/catalyser/internal/recoveryrate/repository"
	recoveryrateservice "github.com/smallbiznis/catalyser/internal/recoveryrate/service"
	"github.com/smallbiznis/catalyser/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type countingCalculator struct {
	calls atomic.Int32
	inner calculator.Calculator
}

func (c *countingCalculator) Compute(in calculator.Input) (calculator.Result, error) {
	c.calls.Add(1)
	return c.inner.Compute(in)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) TryDebit(ctx context.Context, req creditdomain.DebitRequest) (*creditdomain.CreditLedgerEntry, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*creditdomain.CreditLedgerEntry), args.Error(1)
}

func (m *mockLedger) Grant(ctx context.Context, req creditdomain.GrantRequest) (*creditdomain.CreditLedgerEntry, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*creditdomain.CreditLedgerEntry), args.Error(1)
}

// cancellingLedger cancels the caller's context once the debit has committed.
type cancellingLedger struct {
	pricingdomain.Ledger
	cancel context.CancelFunc
}

func (l *cancellingLedger) TryDebit(ctx context.Context, req creditdomain.DebitRequest) (*creditdomain.CreditLedgerEntry, error) {
	entry, err := l.Ledger.TryDebit(ctx, req)
	l.cancel()
	return entry, err
}

type fixture struct {
	svc        pricingdomain.Service
	db         *gorm.DB
	credits    creditdomain.Service
	converters converterdomain.Service
	prices     metalpricedomain.Service
	calc       *countingCalculator
}

type option func(*Params)

func setup(t *testing.T, opts ...option) fixture {
	t.Helper()

	db := testutil.OpenSQLite(t)
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	holder := config.NewStaticPricingConfigHolder(config.DefaultPricingConfig())
	log := zap.NewNop()

	credits := creditservice.New(creditservice.Params{
		DB: db, Log: log, GenID: node, Repo: creditrepo.Provide(), Clock: clk, Pricing: holder,
	})
	converters := converterservice.New(converterservice.Params{
		DB: db, Log: log, GenID: node, Repo: converterrepo.Provide(), Clock: clk,
	})
	prices := metalpriceservice.New(metalpriceservice.Params{
		DB: db, Log: log, GenID: node, Repo: metalpricerepo.Provide(), Cache: metalpricecache.New(nil), Clock: clk, Pricing: holder,
	})
	rates := recoveryrateservice.New(recoveryrateservice.Params{
		DB: db, Log: log, GenID: node, Repo: recoveryraterepo.Provide(), Clock: clk, Pricing: holder,
	})
	calc := &countingCalculator{inner: calculator.New()}

	params := Params{
		DB:         db,
		Log:        log,
		Repo:       repository.Provide(),
		Clock:      clk,
		Ledger:     credits,
		Calculator: calc,
		Converters: converters,
		Prices:     prices,
		Rates:      rates,
		Pricing:    holder,
	}
	for _, opt := range opts {
		opt(&params)
	}

	return fixture{
		svc:        New(params),
		db:         db,
		credits:    credits,
		converters: converters,
		prices:     prices,
		calc:       calc,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func referenceRequest(userID string, discount string) pricingdomain.PriceConverterRequest {
	return pricingdomain.PriceConverterRequest{
		UserID:          userID,
		Content:         pricingdomain.ConverterContent{PtContent: "2,85", PdContent: "1.42", RhContent: "0.35", Weight: "1.5"},
		Prices:          calculator.SpotPrices{Pt: dec("950"), Pd: dec("1050"), Rh: dec("4500")},
		Currency:        "USD",
		Rates:           calculator.RecoveryRates{Pt: dec("95"), Pd: dec("95"), Rh: dec("85")},
		DiscountPercent: dec(discount),
		CostInCredits:   1,
	}
}

func openAccount(t *testing.T, f fixture, userID string, grant int64) {
	t.Helper()
	_, err := f.credits.OpenAccount(context.Background(), creditdomain.OpenAccountRequest{UserID: userID, InitialGrant: &grant})
	require.NoError(t, err)
}

func entries(t *testing.T, f fixture, userID string) []creditdomain.CreditLedgerEntry {
	t.Helper()
	resp, err := f.credits.ListEntries(context.Background(), creditdomain.ListEntriesRequest{UserID: userID})
	require.NoError(t, err)
	return resp.Entries
}

func TestPriceConverterForUserChargesAndComputes(t *testing.T) {
	f := setup(t)
	openAccount(t, f, "user-1", 20)

	resp, err := f.svc.PriceConverterForUser(context.Background(), referenceRequest("user-1", "10"))
	require.NoError(t, err)

	assert.Equal(t, int64(19), resp.CreditsRemaining)
	assert.True(t, resp.Result.GrossValue.Equal(dec("256.91")))
	assert.True(t, resp.Result.DiscountAmount.Equal(dec("25.69")))
	assert.True(t, resp.Result.FinalPrice.Equal(dec("231.22")))
	assert.Equal(t, "USD", resp.Result.Currency)
	assert.Equal(t, int32(1), f.calc.calls.Load())

	list := entries(t, f, "user-1")
	require.Len(t, list, 2)
	assert.Equal(t, creditdomain.EntryTypeConsumption, list[1].EntryType)
	assert.Equal(t, "priced view", list[1].SourceDetail)
	assert.Equal(t, int64(-1), list[1].Amount)
}

func TestPriceConverterForUserInsufficientCreditsSkipsCompute(t *testing.T) {
	f := setup(t)
	openAccount(t, f, "broke", 0)

	_, err := f.svc.PriceConverterForUser(context.Background(), referenceRequest("broke", "0"))
	require.ErrorIs(t, err, creditdomain.ErrInsufficientCredits)

	assert.Zero(t, f.calc.calls.Load())
	assert.Empty(t, entries(t, f, "broke"))

	balance, err := f.credits.GetBalance(context.Background(), "broke")
	require.NoError(t, err)
	assert.Zero(t, balance.Available)
}

func TestPriceConverterForUserDrainsSignupGrant(t *testing.T) {
	f := setup(t)
	openAccount(t, f, "steady", 20)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		resp, err := f.svc.PriceConverterForUser(ctx, referenceRequest("steady", "0"))
		require.NoError(t, err)
		assert.Equal(t, int64(19-i), resp.CreditsRemaining)
	}

	_, err := f.svc.PriceConverterForUser(ctx, referenceRequest("steady", "0"))
	assert.ErrorIs(t, err, creditdomain.ErrInsufficientCredits)
	assert.Equal(t, int32(20), f.calc.calls.Load())
}

func TestPriceConverterForUserRefundsFailedComputation(t *testing.T) {
	f := setup(t)
	openAccount(t, f, "refund-me", 5)
	ctx := context.Background()

	req := referenceRequest("refund-me", "0")
	req.Prices.Pd = dec("-1")

	_, err := f.svc.PriceConverterForUser(ctx, req)
	require.ErrorIs(t, err, calculator.ErrInvalidInput)

	list := entries(t, f, "refund-me")
	require.Len(t, list, 3)
	assert.Equal(t, creditdomain.EntryTypeConsumption, list[1].EntryType)
	refund := list[2]
	assert.Equal(t, creditdomain.EntryTypeGrant, refund.EntryType)
	assert.Equal(t, int64(1), refund.Amount)
	assert.True(t, strings.HasPrefix(refund.SourceDetail, "refund: priced view failed: "))
	assert.Equal(t, list[1].ID.String(), refund.Metadata["refund_of"])

	balance, err := f.credits.GetBalance(ctx, "refund-me")
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance.Available)

	rec, err := f.credits.Reconcile(ctx, "refund-me")
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
}

func TestRefundSurvivesCancelledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := setup(t, func(p *Params) {
		p.Ledger = &cancellingLedger{Ledger: p.Ledger, cancel: cancel}
	})
	openAccount(t, f, "gone", 5)

	req := referenceRequest("gone", "0")
	req.Prices.Pd = dec("-1")

	_, err := f.svc.PriceConverterForUser(ctx, req)
	require.ErrorIs(t, err, calculator.ErrInvalidInput)
	assert.NotErrorIs(t, err, pricingdomain.ErrRefundFailed)
	require.Error(t, ctx.Err())

	balance, err := f.credits.GetBalance(context.Background(), "gone")
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance.Available)
	assert.Len(t, entries(t, f, "gone"), 3)
}

func TestPriceConverterForUserRejectsNonPositiveCost(t *testing.T) {
	f := setup(t)
	req := referenceRequest("user-1", "0")
	req.CostInCredits = 0

	_, err := f.svc.PriceConverterForUser(context.Background(), req)
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidCost)
}

func TestPersistenceFailureIsNotInsufficientCredits(t *testing.T) {
	ledger := &mockLedger{}
	boom := errors.New("connection reset")
	ledger.On("TryDebit", mock.Anything, mock.Anything).Return(nil, boom).Once()

	f := setup(t, func(p *Params) { p.Ledger = ledger })

	_, err := f.svc.PriceConverterForUser(context.Background(), referenceRequest("user-1", "0"))
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, creditdomain.ErrInsufficientCredits)
	assert.Zero(t, f.calc.calls.Load())
	ledger.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything)
	ledger.AssertExpectations(t)
}

func TestRefundFailureJoinsErrors(t *testing.T) {
	ledger := &mockLedger{}
	debit := &creditdomain.CreditLedgerEntry{ID: 99, UserID: "user-1", Amount: -1, BalanceAfter: 4}
	refundErr := errors.New("db down")
	ledger.On("TryDebit", mock.Anything, mock.MatchedBy(func(req creditdomain.DebitRequest) bool {
		return req.Amount == 1 && req.Type == creditdomain.EntryTypeConsumption && req.SourceDetail == "priced view"
	})).Return(debit, nil).Once()
	ledger.On("Grant", mock.Anything, mock.MatchedBy(func(req creditdomain.GrantRequest) bool {
		return req.UserID == "user-1" && req.Amount == 1 && req.Type == creditdomain.EntryTypeGrant
	})).Return(nil, refundErr).Once()

	f := setup(t, func(p *Params) { p.Ledger = ledger })

	req := referenceRequest("user-1", "0")
	req.DiscountPercent = dec("150")
	_, err := f.svc.PriceConverterForUser(context.Background(), req)

	require.Error(t, err)
	assert.ErrorIs(t, err, calculator.ErrInvalidInput)
	assert.ErrorIs(t, err, refundErr)
	assert.ErrorIs(t, err, pricingdomain.ErrRefundFailed)
	ledger.AssertNumberOfCalls(t, "Grant", 1)
	ledger.AssertExpectations(t)
}

func seedQuoteInputs(t *testing.T, f fixture) *converterdomain.Converter {
	t.Helper()
	ctx := context.Background()
	converter, err := f.converters.Create(ctx, converterdomain.CreateRequest{
		Code: "REF-1", Name: "Reference", PtContent: "2.85", PdContent: "1,42", RhContent: "0.35", Weight: "1.5",
	})
	require.NoError(t, err)
	_, err = f.prices.Record(ctx, metalpricedomain.RecordRequest{
		Platinum: dec("950"), Palladium: dec("1050"), Rhodium: dec("4500"), Currency: "USD",
	})
	require.NoError(t, err)
	return converter
}

func TestQuoteResolvesInputs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	openAccount(t, f, "quoter", 3)
	converter := seedQuoteInputs(t, f)

	_, err := f.svc.SetUserDiscount(ctx, pricingdomain.SetDiscountRequest{UserID: "quoter", DiscountPercent: dec("12.5")})
	require.NoError(t, err)

	resp, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{UserID: "quoter", ConverterID: converter.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.CreditsRemaining)
	assert.True(t, resp.Result.PtValue.Equal(dec("124.04")))
	assert.True(t, resp.Result.DiscountAmount.Equal(dec("32.11")))
	assert.True(t, resp.Result.FinalPrice.Equal(dec("224.80")))

	list := entries(t, f, "quoter")
	require.Len(t, list, 2)
	assert.Equal(t, converter.ID.String(), list[1].Metadata["converter_id"])
	assert.Equal(t, config.FeaturePriceView, list[1].Metadata["feature"])
}

func TestQuoteLookupFailuresDoNotCharge(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	openAccount(t, f, "quoter", 3)

	_, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{UserID: "quoter", ConverterID: 123})
	assert.ErrorIs(t, err, converterdomain.ErrConverterNotFound)

	converter, err := f.converters.Create(ctx, converterdomain.CreateRequest{Code: "X", Name: "x", Weight: "1"})
	require.NoError(t, err)
	_, err = f.svc.Quote(ctx, pricingdomain.QuoteRequest{UserID: "quoter", ConverterID: converter.ID})
	assert.ErrorIs(t, err, metalpricedomain.ErrPriceNotFound)

	balance, err := f.credits.GetBalance(ctx, "quoter")
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance.Available)
	assert.Zero(t, f.calc.calls.Load())
}

func TestQuoteRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := ratelimit.NewQuoteLimiter(config.Config{
		RateLimit: config.RateLimitConfig{Enabled: true, QuoteRate: 0.001, QuoteBurst: 1},
	}, ratelimit.NewTokenBucket(client), zap.NewNop())

	f := setup(t, func(p *Params) { p.Limiter = limiter })
	ctx := context.Background()
	openAccount(t, f, "eager", 5)
	converter := seedQuoteInputs(t, f)

	_, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{UserID: "eager", ConverterID: converter.ID})
	require.NoError(t, err)

	_, err = f.svc.Quote(ctx, pricingdomain.QuoteRequest{UserID: "eager", ConverterID: converter.ID})
	assert.ErrorIs(t, err, pricingdomain.ErrRateLimited)

	balance, err := f.credits.GetBalance(ctx, "eager")
	require.NoError(t, err)
	assert.Equal(t, int64(4), balance.Available)
}

func TestUserDiscountProfile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	profile, err := f.svc.GetUserDiscount(ctx, "new-user")
	require.NoError(t, err)
	assert.True(t, profile.DiscountPercent.IsZero())

	_, err = f.svc.SetUserDiscount(ctx, pricingdomain.SetDiscountRequest{UserID: "new-user", DiscountPercent: dec("5")})
	require.NoError(t, err)
	updated, err := f.svc.SetUserDiscount(ctx, pricingdomain.SetDiscountRequest{UserID: "new-user", DiscountPercent: dec("7.5")})
	require.NoError(t, err)
	assert.True(t, updated.DiscountPercent.Equal(dec("7.5")))

	_, err = f.svc.SetUserDiscount(ctx, pricingdomain.SetDiscountRequest{UserID: "new-user", DiscountPercent: dec("100.5")})
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidDiscount)
	_, err = f.svc.SetUserDiscount(ctx, pricingdomain.SetDiscountRequest{UserID: "new-user", DiscountPercent: dec("-1")})
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidDiscount)
}
