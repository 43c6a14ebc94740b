package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/atelier/internal/audit/domain"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/handoff/domain"
	messagedomain "github.com/smallbiznis/atelier/internal/message/domain"
	notifdomain "github.com/smallbiznis/atelier/internal/notification/domain"
	"github.com/smallbiznis/atelier/internal/observability/logger"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
	"github.com/smallbiznis/atelier/pkg/db/option"
	"github.com/smallbiznis/atelier/pkg/repository"
)

// handoffMarkerBody is the canonical system message recorded once per
// handoff. Its presence on the thread is the idempotency marker: a repeated
// handoff call finds it and skips everything except the delivery option.
const handoffMarkerBody = "Order handed off to logistics."

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Messages messagedomain.Service
	Notifier notifdomain.Service
	Audit    auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	messages messagedomain.Service
	notifier notifdomain.Service
	audit    auditdomain.Service
	orders   repository.Repository[orderdomain.Order]
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("handoff.service"),
		clock:    p.Clock,
		messages: p.Messages,
		notifier: p.Notifier,
		audit:    p.Audit,
		orders:   repository.ProvideStore[orderdomain.Order](p.DB),
	}
}

func (s *Service) Handoff(ctx context.Context, req domain.HandoffRequest) (domain.HandoffResult, error) {
	orderID, err := snowflake.ParseString(req.OrderID)
	if err != nil {
		return domain.HandoffResult{}, orderdomain.ErrNotFound
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.HandoffResult{}, err
	}

	marker, err := s.messages.FindSystemByBody(ctx, orderID, handoffMarkerBody)
	if err != nil {
		return domain.HandoffResult{}, err
	}
	if marker != nil {
		return s.repeatHandoff(ctx, orderID, req)
	}

	if order.CurrentHandler != orderdomain.HandlerProduction {
		return domain.HandoffResult{}, domain.ErrWrongHandler
	}
	if order.Status != orderdomain.OrderStatusReadyForDelivery {
		return domain.HandoffResult{}, domain.ErrOrderNotReady
	}

	now := s.clock.Now()
	updates := map[string]any{
		"current_handler": orderdomain.HandlerLogistics,
		"handoff_at":      now,
		"updated_at":      now,
	}
	if req.DeliveryOption != nil {
		updates["delivery_option"] = *req.DeliveryOption
	}

	result := s.db.WithContext(ctx).Model(&orderdomain.Order{}).
		Where("id = ? AND current_handler = ?", orderID, orderdomain.HandlerProduction).
		Updates(updates)
	if result.Error != nil {
		return domain.HandoffResult{}, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race to a concurrent handoff; report its outcome.
		return s.repeatHandoff(ctx, orderID, req)
	}

	updated, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.HandoffResult{}, err
	}

	out := domain.HandoffResult{Order: updated}
	// The marker write happens after the handler switch committed. A failure
	// here is logged, not rolled back: the next Handoff call will find the
	// handler already moved and converge without a duplicate transfer.
	msg, msgErr := s.messages.Append(ctx, messagedomain.Message{
		OrderID: orderID,
		Kind:    messagedomain.MessageKindSystem,
		Body:    handoffMarkerBody,
	})
	if msgErr != nil {
		logger.FromContext(ctx).Error("handoff marker write failed",
			zap.String("order_number", updated.OrderNumber), zap.Error(msgErr))
		out.SideEffectErr = msgErr
	} else {
		out.Message = &msg
	}

	if notifyErr := s.notifier.Notify(ctx, notifdomain.EventOrderHandoff, updated.OrderNumber, map[string]any{
		"delivery_option": updated.DeliveryOption,
	}); notifyErr != nil && out.SideEffectErr == nil {
		out.SideEffectErr = notifyErr
	}

	targetID := orderID.String()
	if auditErr := s.audit.AuditLog(ctx, "admin", nil, "order.handoff", "order", &targetID, map[string]any{
		"order_number": updated.OrderNumber,
	}); auditErr != nil {
		s.log.Warn("audit write failed", zap.Error(auditErr))
	}
	return out, nil
}

// repeatHandoff applies the legitimately-mutable fields of a handoff request
// to an order that is already with logistics.
func (s *Service) repeatHandoff(ctx context.Context, orderID snowflake.ID, req domain.HandoffRequest) (domain.HandoffResult, error) {
	if req.DeliveryOption != nil {
		err := s.db.WithContext(ctx).Model(&orderdomain.Order{}).
			Where("id = ?", orderID).
			Updates(map[string]any{
				"delivery_option": *req.DeliveryOption,
				"updated_at":      s.clock.Now(),
			}).Error
		if err != nil {
			return domain.HandoffResult{}, err
		}
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.HandoffResult{}, err
	}
	return domain.HandoffResult{Order: order, AlreadyDone: true}, nil
}

func (s *Service) GrantHistoryAccess(ctx context.Context, req domain.GrantHistoryAccessRequest) (orderdomain.Order, error) {
	orderID, err := snowflake.ParseString(req.OrderID)
	if err != nil {
		return orderdomain.Order{}, orderdomain.ErrNotFound
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return orderdomain.Order{}, err
	}
	if order.CurrentHandler != orderdomain.HandlerLogistics {
		return orderdomain.Order{}, domain.ErrNotHandedOff
	}

	if err := s.db.WithContext(ctx).Model(&orderdomain.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"logistics_history_access": req.Allow,
			"updated_at":               s.clock.Now(),
		}).Error; err != nil {
		return orderdomain.Order{}, err
	}

	verb := "granted"
	if !req.Allow {
		verb = "revoked"
	}
	if _, msgErr := s.messages.Append(ctx, messagedomain.Message{
		OrderID: orderID,
		Kind:    messagedomain.MessageKindSystem,
		Body:    fmt.Sprintf("Logistics history access %s.", verb),
	}); msgErr != nil {
		logger.FromContext(ctx).Error("history access message write failed",
			zap.String("order_number", order.OrderNumber), zap.Error(msgErr))
	}

	updated, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return orderdomain.Order{}, err
	}
	targetID := orderID.String()
	if auditErr := s.audit.AuditLog(ctx, "admin", nil, "order.grant_history_access", "order", &targetID, map[string]any{
		"order_number": updated.OrderNumber,
		"allow":        req.Allow,
	}); auditErr != nil {
		s.log.Warn("audit write failed", zap.Error(auditErr))
	}
	return updated, nil
}

func (s *Service) loadOrder(ctx context.Context, orderID snowflake.ID) (orderdomain.Order, error) {
	order, err := s.orders.FindOne(ctx, &orderdomain.Order{ID: orderID}, option.WithPreload("Items"))
	if err != nil {
		return orderdomain.Order{}, err
	}
	if order == nil {
		return orderdomain.Order{}, orderdomain.ErrNotFound
	}
	return *order, nil
}
