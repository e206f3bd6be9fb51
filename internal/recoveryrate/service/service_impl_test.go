package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/catalyser/internal/clock"
	"github.com/smallbiznis/catalyser/internal/config"
	recoveryratedomain "github.com/smallbiznis/catalyser/internal/recoveryrate/domain"
	"github.com/smallbiznis/catalyser/internal/recoveryrate/repository"
	"github.com/smallbiznis/catalyser/internal/seed"
	"github.com/smallbiznis/catalyser/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (recoveryratedomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	db := testutil.OpenSQLite(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    repository.Provide(),
		Clock:   clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Pricing: config.NewStaticPricingConfigHolder(config.DefaultPricingConfig()),
	})
	return svc, db, node
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestActiveRatesFallBackToDefaults(t *testing.T) {
	svc, _, _ := setup(t)

	rates, err := svc.GetActiveRecoveryRates(context.Background())
	require.NoError(t, err)
	assert.True(t, rates.IsDefault)
	assert.True(t, rates.Pt.Equal(dec("95")))
	assert.True(t, rates.Pd.Equal(dec("95")))
	assert.True(t, rates.Rh.Equal(dec("85")))
}

func TestSeededRatesAreActive(t *testing.T) {
	svc, db, node := setup(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	defaults := config.RecoveryRateDefaults{Pt: 90, Pd: 92.5, Rh: 80}

	require.NoError(t, seed.EnsureDefaultRecoveryRates(ctx, db, node, now, defaults))
	require.NoError(t, seed.EnsureDefaultRecoveryRates(ctx, db, node, now, config.RecoveryRateDefaults{Pt: 1, Pd: 1, Rh: 1}))

	rates, err := svc.GetActiveRecoveryRates(ctx)
	require.NoError(t, err)
	assert.False(t, rates.IsDefault)
	assert.True(t, rates.Pd.Equal(dec("92.5")))

	var count int64
	require.NoError(t, db.Raw("SELECT COUNT(1) FROM recovery_rates").Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateReplacesActiveRow(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, recoveryratedomain.UpdateRequest{Pt: dec("96"), Pd: dec("94"), Rh: dec("80")})
	require.NoError(t, err)

	first, err := svc.GetActiveRecoveryRates(ctx)
	require.NoError(t, err)
	assert.True(t, first.Pt.Equal(dec("96")))

	updated, err := svc.Update(ctx, recoveryratedomain.UpdateRequest{Pt: dec("97.5"), Pd: dec("94"), Rh: dec("81")})
	require.NoError(t, err)

	current, err := svc.GetActiveRecoveryRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated.ID, current.ID)
	assert.True(t, current.Pt.Equal(dec("97.5")))

	var active int64
	require.NoError(t, db.Raw("SELECT COUNT(1) FROM recovery_rates WHERE active = TRUE").Scan(&active).Error)
	assert.Equal(t, int64(1), active)
}

func TestUpdateRejectsOutOfRangeRates(t *testing.T) {
	svc, _, _ := setup(t)

	for _, req := range []recoveryratedomain.UpdateRequest{
		{Pt: dec("-1"), Pd: dec("90"), Rh: dec("90")},
		{Pt: dec("90"), Pd: dec("100.01"), Rh: dec("90")},
	} {
		_, err := svc.Update(context.Background(), req)
		assert.ErrorIs(t, err, recoveryratedomain.ErrInvalidRate)
	}

	_, err := svc.Update(context.Background(), recoveryratedomain.UpdateRequest{Pt: dec("100"), Pd: dec("0"), Rh: dec("100")})
	assert.NoError(t, err)
}
