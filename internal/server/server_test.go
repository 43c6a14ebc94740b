package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditrepo "github.com/smallbiznis/atelier/internal/audit/repository"
	auditservice "github.com/smallbiznis/atelier/internal/audit/service"
	"github.com/smallbiznis/atelier/internal/clock"
	handoffservice "github.com/smallbiznis/atelier/internal/handoff/service"
	messageservice "github.com/smallbiznis/atelier/internal/message/service"
	"github.com/smallbiznis/atelier/internal/migration"
	notifservice "github.com/smallbiznis/atelier/internal/notification/service"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
	vatperiodservice "github.com/smallbiznis/atelier/internal/vatperiod/service"
)

type serverEnv struct {
	server *Server
	db     *gorm.DB
	node   *snowflake.Node
	clock  *clock.FakeClock
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(5)
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
	messages := messageservice.NewService(messageservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
	})
	handoffSvc := handoffservice.NewService(handoffservice.Params{
		DB:       db,
		Log:      log,
		Clock:    fakeClock,
		Messages: messages,
		Notifier: notifier,
		Audit:    auditSvc,
	})
	vatSvc := vatperiodservice.NewService(vatperiodservice.Params{
		DB:       db,
		Log:      log,
		Clock:    fakeClock,
		GenID:    node,
		Notifier: notifier,
		Audit:    auditSvc,
	})

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	s := &Server{
		engine:     engine,
		db:         db,
		log:        log,
		clock:      fakeClock,
		handoffSvc: handoffSvc,
		messageSvc: messages,
		vatSvc:     vatSvc,
		auditSvc:   auditSvc,
	}
	s.registerRoutes()

	return &serverEnv{server: s, db: db, node: node, clock: fakeClock}
}

func (e *serverEnv) insertOrder(t *testing.T, status orderdomain.OrderStatus) orderdomain.Order {
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

func TestHandoffEndpoint_AcceptsEmptyBody(t *testing.T) {
	env := newServerEnv(t)
	order := env.insertOrder(t, orderdomain.OrderStatusReadyForDelivery)

	req := httptest.NewRequest(http.MethodPost, "/v1/orders/"+order.ID.String()+"/handoff", nil)
	rec := httptest.NewRecorder()
	env.server.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data orderdomain.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, orderdomain.HandlerLogistics, resp.Data.CurrentHandler)
	assert.Nil(t, resp.Data.DeliveryOption)
}

func TestHistoryAccessEndpoint_AcceptsEmptyBody(t *testing.T) {
	env := newServerEnv(t)
	order := env.insertOrder(t, orderdomain.OrderStatusReadyForDelivery)

	handoff := httptest.NewRequest(http.MethodPost, "/v1/orders/"+order.ID.String()+"/handoff", nil)
	rec := httptest.NewRecorder()
	env.server.Engine().ServeHTTP(rec, handoff)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// No body means allow=false, an explicit revoke.
	revoke := httptest.NewRequest(http.MethodPost, "/v1/orders/"+order.ID.String()+"/history-access", nil)
	rec = httptest.NewRecorder()
	env.server.Engine().ServeHTTP(rec, revoke)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data orderdomain.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Data.LogisticsHistoryAccess)
}

func TestCurrentPeriodEndpoint_UsesInjectedClock(t *testing.T) {
	env := newServerEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/vat/current", nil)
	rec := httptest.NewRecorder()
	env.server.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Period struct {
			Month int       `json:"month"`
			Year  int       `json:"year"`
			End   time.Time `json:"end"`
		} `json:"period"`
		Totals struct {
			TotalSales       int64 `json:"total_sales_amount"`
			DeductibleAmount int64 `json:"deductible_expenses_amount"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Period.Month)
	assert.Equal(t, 2026, resp.Period.Year)
	assert.True(t, resp.Period.End.Equal(time.Date(2026, time.April, 21, 0, 0, 0, 0, time.UTC)), "end %v", resp.Period.End)
	assert.Zero(t, resp.Totals.TotalSales)
	assert.Zero(t, resp.Totals.DeductibleAmount)

	// The clock is the injected one, so moving it moves the period.
	env.clock.Set(time.Date(2026, time.July, 23, 9, 0, 0, 0, time.UTC))
	rec = httptest.NewRecorder()
	env.server.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/vat/current", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Period.Month)
}
