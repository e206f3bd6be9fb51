package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	metalpricedomain "github.com/smallbiznis/catalyser/internal/metalprice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *metalpricedomain.Snapshot {
	return &metalpricedomain.Snapshot{
		ID:                      42,
		PlatinumPricePerTroyOz:  decimal.RequireFromString("950.25"),
		PalladiumPricePerTroyOz: decimal.RequireFromString("1050"),
		RhodiumPricePerTroyOz:   decimal.RequireFromString("4500.5"),
		Currency:                "USD",
		AsOf:                    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Source:                  "feed",
		CreatedAt:               time.Date(2026, 3, 1, 9, 0, 1, 0, time.UTC),
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := New(client)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "USD")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, sampleSnapshot(), time.Minute))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"USD"))

	got, ok, err := c.Get(ctx, "USD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.PlatinumPricePerTroyOz.Equal(decimal.RequireFromString("950.25")))
	assert.True(t, got.RhodiumPricePerTroyOz.Equal(decimal.RequireFromString("4500.5")))
	assert.Equal(t, "feed", got.Source)

	mr.FastForward(time.Minute)
	_, ok, err = c.Get(ctx, "USD")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := New(client)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, sampleSnapshot(), time.Minute))
	require.NoError(t, c.Invalidate(ctx, "USD"))
	assert.False(t, mr.Exists(keyPrefix+"USD"))
}

func TestZeroTTLSkipsCaching(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, sampleSnapshot(), 0))
	_, ok, err := c.Get(ctx, "USD")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, sampleSnapshot(), time.Minute))
	got, ok, err := c.Get(ctx, "USD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "USD", got.Currency)
}
