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
	"github.com/smallbiznis/atelier/internal/handoff/domain"
	messagedomain "github.com/smallbiznis/atelier/internal/message/domain"
	messageservice "github.com/smallbiznis/atelier/internal/message/service"
	"github.com/smallbiznis/atelier/internal/migration"
	notifservice "github.com/smallbiznis/atelier/internal/notification/service"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
)

type testEnv struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	handoff  domain.Service
	messages messagedomain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	log := zap.NewNop()
	fakeClock := clock.NewFakeClock(time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC))

	messages := messageservice.NewService(messageservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
	})
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
	handoffSvc := NewService(Params{
		DB:       db,
		Log:      log,
		Clock:    fakeClock,
		Messages: messages,
		Notifier: notifier,
		Audit:    auditSvc,
	})

	return &testEnv{
		db:       db,
		node:     node,
		clock:    fakeClock,
		handoff:  handoffSvc,
		messages: messages,
	}
}

func (e *testEnv) insertOrder(t *testing.T, status orderdomain.OrderStatus) orderdomain.Order {
	t.Helper()
	order := orderdomain.Order{
		ID:             e.node.Generate(),
		OrderNumber:    fmt.Sprintf("ORD-%d", e.node.Generate()),
		Kind:           orderdomain.OrderKindRegular,
		ItemsKind:      orderdomain.ItemsKindSales,
		Status:         status,
		CustomerName:   "Funke Alabi",
		CurrentHandler: orderdomain.HandlerProduction,
		CreatedAt:      e.clock.Now(),
		UpdatedAt:      e.clock.Now(),
	}
	require.NoError(t, e.db.Create(&order).Error)
	return order
}

func TestHandoff_TransfersOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.insertOrder(t, orderdomain.OrderStatusReadyForDelivery)

	courier := "courier"
	result, err := env.handoff.Handoff(ctx, domain.HandoffRequest{
		OrderID:        order.ID.String(),
		DeliveryOption: &courier,
	})
	require.NoError(t, err)

	assert.False(t, result.AlreadyDone)
	assert.Equal(t, orderdomain.HandlerLogistics, result.Order.CurrentHandler)
	require.NotNil(t, result.Order.HandoffAt)
	require.NotNil(t, result.Order.DeliveryOption)
	assert.Equal(t, "courier", *result.Order.DeliveryOption)
	require.NotNil(t, result.Message)
	assert.Equal(t, messagedomain.MessageKindSystem, result.Message.Kind)
	assert.NoError(t, result.SideEffectErr)
}

func TestHandoff_RepeatIsAbsorbed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.insertOrder(t, orderdomain.OrderStatusReadyForDelivery)

	_, err := env.handoff.Handoff(ctx, domain.HandoffRequest{OrderID: order.ID.String()})
	require.NoError(t, err)
	firstAt := env.mustLoad(t, order.ID).HandoffAt

	env.clock.Advance(time.Hour)
	pickup := "pickup"
	repeat, err := env.handoff.Handoff(ctx, domain.HandoffRequest{
		OrderID:        order.ID.String(),
		DeliveryOption: &pickup,
	})
	require.NoError(t, err)

	assert.True(t, repeat.AlreadyDone)
	assert.Nil(t, repeat.Message)
	// Only the delivery option moves on a repeat.
	require.NotNil(t, repeat.Order.DeliveryOption)
	assert.Equal(t, "pickup", *repeat.Order.DeliveryOption)
	require.NotNil(t, repeat.Order.HandoffAt)
	assert.True(t, repeat.Order.HandoffAt.Equal(*firstAt))

	messages, err := env.messages.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestHandoff_RequiresReadyWithProduction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pending := env.insertOrder(t, orderdomain.OrderStatusPending)
	_, err := env.handoff.Handoff(ctx, domain.HandoffRequest{OrderID: pending.ID.String()})
	assert.ErrorIs(t, err, domain.ErrOrderNotReady)

	_, err = env.handoff.Handoff(ctx, domain.HandoffRequest{OrderID: "12345"})
	assert.ErrorIs(t, err, orderdomain.ErrNotFound)
}

func TestGrantHistoryAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.insertOrder(t, orderdomain.OrderStatusReadyForDelivery)

	_, err := env.handoff.GrantHistoryAccess(ctx, domain.GrantHistoryAccessRequest{
		OrderID: order.ID.String(),
		Allow:   true,
	})
	assert.ErrorIs(t, err, domain.ErrNotHandedOff)

	_, err = env.handoff.Handoff(ctx, domain.HandoffRequest{OrderID: order.ID.String()})
	require.NoError(t, err)

	granted, err := env.handoff.GrantHistoryAccess(ctx, domain.GrantHistoryAccessRequest{
		OrderID: order.ID.String(),
		Allow:   true,
	})
	require.NoError(t, err)
	assert.True(t, granted.LogisticsHistoryAccess)

	revoked, err := env.handoff.GrantHistoryAccess(ctx, domain.GrantHistoryAccessRequest{
		OrderID: order.ID.String(),
		Allow:   false,
	})
	require.NoError(t, err)
	assert.False(t, revoked.LogisticsHistoryAccess)

	// One handoff marker plus one message per grant invocation.
	messages, err := env.messages.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 3)
}

func (e *testEnv) mustLoad(t *testing.T, id snowflake.ID) orderdomain.Order {
	t.Helper()
	var order orderdomain.Order
	require.NoError(t, e.db.First(&order, "id = ?", id).Error)
	return order
}
