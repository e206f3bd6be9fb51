package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/catalyser/internal/clock"
	"github.com/smallbiznis/catalyser/internal/config"
	"github.com/smallbiznis/catalyser/internal/events"
	metalpricecache "github.com/smallbiznis/catalyser/internal/metalprice/cache"
	metalpricedomain "github.com/smallbiznis/catalyser/internal/metalprice/domain"
	"github.com/smallbiznis/catalyser/internal/metalprice/repository"
	"github.com/smallbiznis/catalyser/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type capturePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *capturePublisher) Publish(_ context.Context, subject string, _ events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

type fixture struct {
	svc   metalpricedomain.Service
	db    *gorm.DB
	mr    *miniredis.Miniredis
	clock *clock.FakeClock
	pub   *capturePublisher
}

func setup(t *testing.T) fixture {
	t.Helper()

	db := testutil.OpenSQLite(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pub := &capturePublisher{}
	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      repository.Provide(),
		Cache:     metalpricecache.New(client),
		Clock:     clk,
		Pricing:   config.NewStaticPricingConfigHolder(config.DefaultPricingConfig()),
		Publisher: pub,
	})
	return fixture{svc: svc, db: db, mr: mr, clock: clk, pub: pub}
}

func record(t *testing.T, f fixture, pt string) *metalpricedomain.Snapshot {
	t.Helper()
	snapshot, err := f.svc.Record(context.Background(), metalpricedomain.RecordRequest{
		Platinum:  decimal.RequireFromString(pt),
		Palladium: decimal.RequireFromString("1050"),
		Rhodium:   decimal.RequireFromString("4500"),
		Currency:  "usd",
		Source:    "feed",
	})
	require.NoError(t, err)
	return snapshot
}

func TestRecordAndGetCurrentPrices(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	recorded := record(t, f, "950")
	assert.Equal(t, "USD", recorded.Currency)
	assert.Equal(t, []string{events.SubjectPriceSnapshot}, f.pub.subjects)

	got, err := f.svc.GetCurrentPrices(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, recorded.ID, got.ID)
	assert.True(t, got.PlatinumPricePerTroyOz.Equal(decimal.NewFromInt(950)))
	assert.True(t, f.mr.Exists("catalyser:metal_prices:current:USD"))
}

func TestGetCurrentPricesDefaultsToConfiguredCurrency(t *testing.T) {
	f := setup(t)
	recorded := record(t, f, "950")

	got, err := f.svc.GetCurrentPrices(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, recorded.ID, got.ID)
}

func TestGetCurrentPricesServedFromCache(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	recorded := record(t, f, "950")

	_, err := f.svc.GetCurrentPrices(ctx, "USD")
	require.NoError(t, err)

	require.NoError(t, f.db.Exec("DELETE FROM metal_price_snapshots").Error)

	got, err := f.svc.GetCurrentPrices(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, recorded.ID, got.ID)
}

func TestRecordInvalidatesCachedSnapshot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	record(t, f, "950")
	_, err := f.svc.GetCurrentPrices(ctx, "USD")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	newer := record(t, f, "975.5")
	assert.False(t, f.mr.Exists("catalyser:metal_prices:current:USD"))

	got, err := f.svc.GetCurrentPrices(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	assert.True(t, got.PlatinumPricePerTroyOz.Equal(decimal.RequireFromString("975.5")))
}

func TestGetCurrentPricesFallsBackWhenRedisDown(t *testing.T) {
	f := setup(t)
	recorded := record(t, f, "950")
	f.mr.Close()

	got, err := f.svc.GetCurrentPrices(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, recorded.ID, got.ID)
}

func TestGetCurrentPricesNotFound(t *testing.T) {
	f := setup(t)

	_, err := f.svc.GetCurrentPrices(context.Background(), "EUR")
	assert.ErrorIs(t, err, metalpricedomain.ErrPriceNotFound)

	_, err = f.svc.GetCurrentPrices(context.Background(), "EURO")
	assert.ErrorIs(t, err, metalpricedomain.ErrInvalidCurrency)
}

func TestRecordRejectsNegativePrice(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Record(context.Background(), metalpricedomain.RecordRequest{
		Platinum:  decimal.NewFromInt(-1),
		Palladium: decimal.NewFromInt(1),
		Rhodium:   decimal.NewFromInt(1),
		Currency:  "USD",
	})
	assert.ErrorIs(t, err, metalpricedomain.ErrInvalidPrice)

	var count int64
	require.NoError(t, f.db.Raw("SELECT COUNT(1) FROM metal_price_snapshots").Scan(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.pub.subjects)
}
