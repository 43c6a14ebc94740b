// Package server exposes the admin and read HTTP surface over gin.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/atelier/internal/audit"
	auditdomain "github.com/smallbiznis/atelier/internal/audit/domain"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/expense"
	expensedomain "github.com/smallbiznis/atelier/internal/expense/domain"
	"github.com/smallbiznis/atelier/internal/handoff"
	handoffdomain "github.com/smallbiznis/atelier/internal/handoff/domain"
	"github.com/smallbiznis/atelier/internal/invoice"
	invoicedomain "github.com/smallbiznis/atelier/internal/invoice/domain"
	"github.com/smallbiznis/atelier/internal/message"
	messagedomain "github.com/smallbiznis/atelier/internal/message/domain"
	"github.com/smallbiznis/atelier/internal/notification"
	"github.com/smallbiznis/atelier/internal/observability"
	obsmiddleware "github.com/smallbiznis/atelier/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	obstracing "github.com/smallbiznis/atelier/internal/observability/tracing"
	"github.com/smallbiznis/atelier/internal/order"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
	"github.com/smallbiznis/atelier/internal/pricing"
	"github.com/smallbiznis/atelier/internal/scheduler"
	"github.com/smallbiznis/atelier/internal/vatperiod"
	vatperioddomain "github.com/smallbiznis/atelier/internal/vatperiod/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	notification.Module,
	message.Module,
	pricing.Module,
	invoice.Module,
	expense.Module,
	order.Module,
	handoff.Module,
	vatperiod.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	orderSvc   orderdomain.Service
	handoffSvc handoffdomain.Service
	messageSvc messagedomain.Service
	invoiceSvc invoicedomain.Service
	expenseSvc expensedomain.Service
	vatSvc     vatperioddomain.Service
	auditSvc   auditdomain.Service
}

type ServerParams struct {
	fx.In

	Engine     *gin.Engine
	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	OrderSvc   orderdomain.Service
	HandoffSvc handoffdomain.Service
	MessageSvc messagedomain.Service
	InvoiceSvc invoicedomain.Service
	ExpenseSvc expensedomain.Service
	VATSvc     vatperioddomain.Service
	AuditSvc   auditdomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Engine,
		db:         p.DB,
		log:        p.Log.Named("server"),
		clock:      p.Clock,
		orderSvc:   p.OrderSvc,
		handoffSvc: p.HandoffSvc,
		messageSvc: p.MessageSvc,
		invoiceSvc: p.InvoiceSvc,
		expenseSvc: p.ExpenseSvc,
		vatSvc:     p.VATSvc,
		auditSvc:   p.AuditSvc,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	orders := v1.Group("/orders")
	orders.POST("", s.CreateOrder)
	orders.GET("", s.ListOrders)
	orders.GET("/:id", s.GetOrder)
	orders.POST("/:id/approve", s.ApproveOrder)
	orders.POST("/:id/start-production", s.StartProduction)
	orders.POST("/:id/mark-ready", s.MarkReady)
	orders.POST("/:id/mark-delivered", s.MarkDelivered)
	orders.POST("/:id/cancel", s.CancelOrder)
	orders.POST("/:id/verify-payment", s.VerifyPayment)
	orders.PATCH("/:id/items/:item_id/quantity", s.UpdateQuantity)
	orders.POST("/:id/handoff", s.HandoffOrder)
	orders.POST("/:id/history-access", s.GrantHistoryAccess)
	orders.GET("/:id/messages", s.ListMessages)
	orders.POST("/:id/messages", s.AppendMessage)
	orders.GET("/:id/invoice", s.GetOrderInvoice)

	v1.POST("/pricing/quote", s.QuotePrice)

	vat := v1.Group("/vat")
	vat.GET("/current", s.CurrentPeriod)
	vat.GET("/records/:year/:month", s.GetPeriodRecord)
	vat.POST("/records/:year/:month/archive", s.ArchivePeriod)
	vat.GET("/annual/:year", s.AnnualTotal)

	expenses := v1.Group("/expenses")
	expenses.POST("", s.CreateExpense)
	expenses.GET("", s.ListExpenses)
	expenses.GET("/:id", s.GetExpense)

	v1.GET("/audit-logs", s.ListAuditLogs)
}
