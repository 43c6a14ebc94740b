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

	auditrepo "github.com/smallbiznis/atelier/internal/audit/repository"
	auditservice "github.com/smallbiznis/atelier/internal/audit/service"
	"github.com/smallbiznis/atelier/internal/clock"
	expensedomain "github.com/smallbiznis/atelier/internal/expense/domain"
	"github.com/smallbiznis/atelier/internal/migration"
	notifservice "github.com/smallbiznis/atelier/internal/notification/service"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
	"github.com/smallbiznis/atelier/internal/vatperiod/domain"
)

type testEnv struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   domain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	log := zap.NewNop()
	fakeClock := clock.NewFakeClock(time.Date(2026, time.March, 25, 10, 0, 0, 0, time.UTC))

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  auditrepo.NewRepository(db),
	})
	notifier := notifservice.New(notifservice.Params{
		Log:   log,
		Clock: fakeClock,
	})
	svc := NewService(Params{
		DB:       db,
		Log:      log,
		Clock:    fakeClock,
		GenID:    node,
		Notifier: notifier,
		Audit:    auditSvc,
	})

	return &testEnv{db: db, node: node, clock: fakeClock, svc: svc}
}

func (e *testEnv) insertOrder(t *testing.T, status orderdomain.OrderStatus, vat int64, createdAt time.Time) {
	t.Helper()
	id := e.node.Generate()
	order := orderdomain.Order{
		ID:             id,
		OrderNumber:    fmt.Sprintf("ORD-%d", id),
		Kind:           orderdomain.OrderKindRegular,
		ItemsKind:      orderdomain.ItemsKindSales,
		Status:         status,
		CustomerName:   "Gozie Eze",
		VAT:            vat,
		Total:          vat * 10,
		CurrentHandler: orderdomain.HandlerProduction,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	require.NoError(t, e.db.Create(&order).Error)
}

func (e *testEnv) insertExpense(t *testing.T, vat int64, applicable bool, incurredAt time.Time) {
	t.Helper()
	expense := expensedomain.Expense{
		ID:            e.node.Generate(),
		Title:         "fabric purchase",
		Amount:        vat * 10,
		VAT:           vat,
		VATApplicable: applicable,
		IncurredAt:    incurredAt,
		CreatedAt:     incurredAt,
		UpdatedAt:     incurredAt,
	}
	if expense.Amount == 0 {
		expense.Amount = 100
	}
	require.NoError(t, e.db.Create(&expense).Error)
}

func TestCurrentPeriodAt(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name      string
		at        time.Time
		wantMonth int
		wantYear  int
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "mid period after boundary",
			at:        time.Date(2026, time.March, 25, 10, 0, 0, 0, time.UTC),
			wantMonth: 3, wantYear: 2026,
			wantStart: time.Date(2026, time.March, 22, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, time.April, 21, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "closing day still belongs to the period it ends",
			at:        time.Date(2026, time.March, 21, 23, 59, 59, 0, time.UTC),
			wantMonth: 2, wantYear: 2026,
			wantStart: time.Date(2026, time.February, 22, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, time.March, 21, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "boundary day opens the new period",
			at:        time.Date(2026, time.March, 22, 0, 0, 0, 0, time.UTC),
			wantMonth: 3, wantYear: 2026,
			wantStart: time.Date(2026, time.March, 22, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, time.April, 21, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "early january belongs to december",
			at:        time.Date(2026, time.January, 5, 8, 0, 0, 0, time.UTC),
			wantMonth: 12, wantYear: 2025,
			wantStart: time.Date(2025, time.December, 22, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, time.January, 21, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "december period crosses into january",
			at:        time.Date(2025, time.December, 23, 0, 0, 0, 0, time.UTC),
			wantMonth: 12, wantYear: 2025,
			wantStart: time.Date(2025, time.December, 22, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, time.January, 21, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			period := env.svc.CurrentPeriodAt(tc.at)
			assert.Equal(t, tc.wantMonth, period.Month)
			assert.Equal(t, tc.wantYear, period.Year)
			assert.True(t, period.Start.Equal(tc.wantStart), "start %v", period.Start)
			assert.True(t, period.End.Equal(tc.wantEnd), "end %v", period.End)
			assert.True(t, period.WindowEnd().Equal(tc.wantEnd.AddDate(0, 0, 1)), "window end %v", period.WindowEnd())
		})
	}
}

// Orders created on the closing day itself still belong to the period; the
// aggregation window is [start, end+1day).
func TestAggregate_ClosingDayIsInsideWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	closing := time.Date(2026, time.April, 21, 12, 0, 0, 0, time.UTC)
	nextOpen := time.Date(2026, time.April, 22, 0, 0, 0, 0, time.UTC)
	env.insertOrder(t, orderdomain.OrderStatusDelivered, 400, closing)
	env.insertOrder(t, orderdomain.OrderStatusDelivered, 999, nextOpen)

	period := env.svc.CurrentPeriodAt(time.Date(2026, time.March, 25, 10, 0, 0, 0, time.UTC))
	totals, err := env.svc.Aggregate(ctx, period.Start, period.WindowEnd())
	require.NoError(t, err)

	assert.Equal(t, int64(400), totals.OutputVAT)
	assert.Equal(t, int64(1), totals.OrderCount)
}

func TestAggregate_RealizedStatusesOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inside := time.Date(2026, time.March, 25, 12, 0, 0, 0, time.UTC)
	outside := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	env.insertOrder(t, orderdomain.OrderStatusDelivered, 750, inside)
	env.insertOrder(t, orderdomain.OrderStatusApproved, 300, inside)
	env.insertOrder(t, orderdomain.OrderStatusPending, 999, inside)
	env.insertOrder(t, orderdomain.OrderStatusCancelled, 888, inside)
	env.insertOrder(t, orderdomain.OrderStatusDelivered, 500, outside)

	env.insertExpense(t, 200, true, inside)
	env.insertExpense(t, 400, false, inside)
	env.insertExpense(t, 300, true, outside)

	period := env.svc.CurrentPeriodAt(inside)
	totals, err := env.svc.Aggregate(ctx, period.Start, period.WindowEnd())
	require.NoError(t, err)

	assert.Equal(t, int64(10500), totals.TotalSales)
	assert.Equal(t, int64(1050), totals.OutputVAT)
	assert.Equal(t, int64(2000), totals.DeductibleAmount)
	assert.Equal(t, int64(200), totals.InputVAT)
	assert.Equal(t, int64(850), totals.VATPayable)
	assert.Equal(t, int64(2), totals.OrderCount)
}

func TestAggregate_PayableNeverNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inside := time.Date(2026, time.March, 25, 12, 0, 0, 0, time.UTC)

	env.insertOrder(t, orderdomain.OrderStatusDelivered, 100, inside)
	env.insertExpense(t, 900, true, inside)

	period := env.svc.CurrentPeriodAt(inside)
	totals, err := env.svc.Aggregate(ctx, period.Start, period.WindowEnd())
	require.NoError(t, err)

	assert.Equal(t, int64(100), totals.OutputVAT)
	assert.Equal(t, int64(900), totals.InputVAT)
	assert.Equal(t, int64(0), totals.VATPayable)
}

func TestRollover_InsertsThenUpdatesInPlace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	today := env.clock.Now()

	env.insertOrder(t, orderdomain.OrderStatusDelivered, 750, today)

	first, err := env.svc.Rollover(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 3, first.PeriodMonth)
	assert.Equal(t, 2026, first.PeriodYear)
	assert.True(t, first.PeriodEnd.Equal(time.Date(2026, time.April, 21, 0, 0, 0, 0, time.UTC)), "period end %v", first.PeriodEnd)
	assert.Equal(t, int64(7500), first.TotalSales)
	assert.Equal(t, int64(750), first.OutputVAT)
	assert.Equal(t, domain.RecordStatusActive, first.Status)

	env.insertOrder(t, orderdomain.OrderStatusApproved, 250, today)
	env.insertExpense(t, 100, true, today)

	second, err := env.svc.Rollover(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(10000), second.TotalSales)
	assert.Equal(t, int64(1000), second.OutputVAT)
	assert.Equal(t, int64(1000), second.Deductible)
	assert.Equal(t, int64(100), second.InputVAT)

	var count int64
	require.NoError(t, env.db.Model(&domain.Record{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestArchive_FreezesRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	today := env.clock.Now()

	_, err := env.svc.Archive(ctx, 3, 2026)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	_, err = env.svc.Rollover(ctx, today)
	require.NoError(t, err)

	archived, err := env.svc.Archive(ctx, 3, 2026)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordStatusArchived, archived.Status)
	require.NotNil(t, archived.ArchivedAt)

	_, err = env.svc.Archive(ctx, 3, 2026)
	assert.ErrorIs(t, err, domain.ErrPeriodArchived)

	// Rollover must never rewrite a frozen period.
	_, err = env.svc.Rollover(ctx, today)
	assert.ErrorIs(t, err, domain.ErrPeriodArchived)

	_, err = env.svc.Archive(ctx, 13, 2026)
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

func TestAnnualTotal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	march := time.Date(2026, time.March, 25, 10, 0, 0, 0, time.UTC)
	april := time.Date(2026, time.April, 25, 10, 0, 0, 0, time.UTC)

	env.insertOrder(t, orderdomain.OrderStatusDelivered, 750, march)
	env.insertOrder(t, orderdomain.OrderStatusDelivered, 250, april)

	_, err := env.svc.Rollover(ctx, march)
	require.NoError(t, err)
	_, err = env.svc.Rollover(ctx, april)
	require.NoError(t, err)

	total, err := env.svc.AnnualTotal(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), total)

	empty, err := env.svc.AnnualTotal(ctx, 2020)
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := env.clock.Now()

	env.insertOrder(t, orderdomain.OrderStatusDelivered, 750, now)

	period, totals, err := env.svc.Snapshot(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 3, period.Month)
	assert.Equal(t, int64(750), totals.OutputVAT)

	// Snapshot is read-only.
	var count int64
	require.NoError(t, env.db.Model(&domain.Record{}).Count(&count).Error)
	assert.Zero(t, count)
}
