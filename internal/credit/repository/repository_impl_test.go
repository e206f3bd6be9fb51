package repository

import (
	"context"
	"testing"
	"time"

	creditdomain "github.com/smallbiznis/catalyser/internal/credit/domain"
	"github.com/smallbiznis/catalyser/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebitBalanceGuardsInsideTheUpdate(t *testing.T) {
	db := testutil.OpenSQLite(t)
	r := Provide()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.InsertBalance(ctx, db, &creditdomain.CreditBalance{
		UserID: "guarded", Available: 3, LifetimeEarned: 3, LastSequence: 1, CreatedAt: now, UpdatedAt: now,
	}))

	rows, err := r.DebitBalance(ctx, db, "guarded", 4, now)
	require.NoError(t, err)
	assert.Zero(t, rows)

	balance, err := r.FindBalance(ctx, db, "guarded")
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance.Available)
	assert.Zero(t, balance.LifetimeSpent)
	assert.Equal(t, int64(1), balance.LastSequence)

	rows, err = r.DebitBalance(ctx, db, "guarded", 3, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = r.DebitBalance(ctx, db, "guarded", 1, now)
	require.NoError(t, err)
	assert.Zero(t, rows)

	balance, err = r.FindBalance(ctx, db, "guarded")
	require.NoError(t, err)
	assert.Zero(t, balance.Available)
	assert.Equal(t, int64(3), balance.LifetimeSpent)
	assert.Equal(t, int64(2), balance.LastSequence)
}

func TestDebitBalanceUnknownUserAffectsNothing(t *testing.T) {
	db := testutil.OpenSQLite(t)
	rows, err := Provide().DebitBalance(context.Background(), db, "nobody", 1, time.Now())
	require.NoError(t, err)
	assert.Zero(t, rows)
}
