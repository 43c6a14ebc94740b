package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/expense/domain"
	"github.com/smallbiznis/atelier/internal/migration"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2026, time.July, 3, 9, 0, 0, 0, time.UTC)),
		GenID: node,
	})
}

func TestCreateExpense(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	expense, err := svc.Create(ctx, domain.CreateRequest{
		Title:         "generator fuel",
		Category:      "operations",
		Amount:        5000,
		VAT:           350,
		VATApplicable: true,
		IncurredAt:    time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NotZero(t, expense.ID)
	assert.Equal(t, int64(350), expense.VAT)
	assert.True(t, expense.VATApplicable)

	got, err := svc.GetByID(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, expense.Title, got.Title)
}

func TestCreateExpense_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	incurred := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, domain.CreateRequest{Title: " ", Amount: 100, IncurredAt: incurred})
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)

	_, err = svc.Create(ctx, domain.CreateRequest{Title: "x", Amount: 0, IncurredAt: incurred})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Create(ctx, domain.CreateRequest{Title: "x", Amount: 100, VAT: 200, VATApplicable: true, IncurredAt: incurred})
	assert.ErrorIs(t, err, domain.ErrInvalidVAT)

	_, err = svc.Create(ctx, domain.CreateRequest{Title: "x", Amount: 100, VAT: 5, VATApplicable: false, IncurredAt: incurred})
	assert.ErrorIs(t, err, domain.ErrVATNotApplied)

	_, err = svc.Create(ctx, domain.CreateRequest{Title: "x", Amount: 100})
	assert.ErrorIs(t, err, domain.ErrInvalidTime)
}

func TestListExpenses_Filters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mustCreate := func(category string, incurred time.Time) {
		_, err := svc.Create(ctx, domain.CreateRequest{
			Title:      "expense",
			Category:   category,
			Amount:     100,
			IncurredAt: incurred,
		})
		require.NoError(t, err)
	}

	july := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	august := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	mustCreate("operations", july)
	mustCreate("operations", august)
	mustCreate("materials", july)

	all, err := svc.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ops, err := svc.List(ctx, domain.ListFilter{Category: "operations"})
	require.NoError(t, err)
	assert.Len(t, ops, 2)

	cutoff := time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC)
	early, err := svc.List(ctx, domain.ListFilter{To: &cutoff})
	require.NoError(t, err)
	assert.Len(t, early, 2)
}
