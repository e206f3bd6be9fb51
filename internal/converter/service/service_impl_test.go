package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/catalyser/internal/clock"
	converterdomain "github.com/smallbiznis/catalyser/internal/converter/domain"
	"github.com/smallbiznis/catalyser/internal/converter/repository"
	"github.com/smallbiznis/catalyser/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (converterdomain.Service, *gorm.DB) {
	t.Helper()
	db := testutil.OpenSQLite(t)
	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}), db
}

func TestCreateAndGetConverter(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, converterdomain.CreateRequest{
		Code:      " bmw-7512 ",
		Name:      "BMW 7512",
		Make:      "BMW",
		PtContent: "1,2",
		PdContent: "0.8",
		RhContent: "",
		Weight:    "1.5",
	})
	require.NoError(t, err)
	assert.Equal(t, "BMW-7512", created.Code)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)

	content := got.Content()
	assert.True(t, content.Pt.Equal(decimal.RequireFromString("1.2")))
	assert.True(t, content.Rh.IsZero())

	byCode, err := svc.GetByCode(ctx, "bmw-7512")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byCode.ID)
}

func TestCreateConverterValidation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, converterdomain.CreateRequest{Code: "", Name: "x"})
	assert.ErrorIs(t, err, converterdomain.ErrInvalidConverter)

	_, err = svc.Create(ctx, converterdomain.CreateRequest{Code: "A1", Name: "first"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, converterdomain.CreateRequest{Code: "a1", Name: "second"})
	assert.ErrorIs(t, err, converterdomain.ErrConverterExists)
}

func TestGetUnknownConverter(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.Get(context.Background(), 12345)
	assert.ErrorIs(t, err, converterdomain.ErrConverterNotFound)
	_, err = svc.GetByCode(context.Background(), "nope")
	assert.ErrorIs(t, err, converterdomain.ErrConverterNotFound)
}

func TestGetServesCachedConverter(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, converterdomain.CreateRequest{Code: "C1", Name: "cached"})
	require.NoError(t, err)
	_, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)

	require.NoError(t, db.Exec("DELETE FROM converters").Error)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Name)
}

func TestListConvertersPaginates(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, converterdomain.CreateRequest{Code: fmt.Sprintf("C%d", i), Name: "n"})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, converterdomain.ListRequest{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Converters, 3)
	require.True(t, page.HasMore)
	require.NotNil(t, page.NextID)

	rest, err := svc.List(ctx, converterdomain.ListRequest{AfterID: *page.NextID, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, rest.Converters, 2)
	assert.False(t, rest.HasMore)
	assert.Equal(t, "C3", rest.Converters[0].Code)
}
