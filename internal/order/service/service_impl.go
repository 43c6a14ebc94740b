package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/atelier/internal/audit/domain"
	"github.com/smallbiznis/atelier/internal/clock"
	invoicedomain "github.com/smallbiznis/atelier/internal/invoice/domain"
	messagedomain "github.com/smallbiznis/atelier/internal/message/domain"
	notifdomain "github.com/smallbiznis/atelier/internal/notification/domain"
	"github.com/smallbiznis/atelier/internal/observability/logger"
	"github.com/smallbiznis/atelier/internal/order/domain"
	"github.com/smallbiznis/atelier/internal/pricing"
	"github.com/smallbiznis/atelier/pkg/db/option"
	"github.com/smallbiznis/atelier/pkg/repository"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	GenID      *snowflake.Node
	Calculator *pricing.Calculator
	Invoices   invoicedomain.Service
	Messages   messagedomain.Service
	Notifier   notifdomain.Service
	Audit      auditdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	genID      *snowflake.Node
	calculator *pricing.Calculator
	invoices   invoicedomain.Service
	messages   messagedomain.Service
	notifier   notifdomain.Service
	audit      auditdomain.Service
	orders     repository.Repository[domain.Order]
	items      repository.Repository[domain.OrderItem]
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		clock:      p.Clock,
		genID:      p.GenID,
		calculator: p.Calculator,
		invoices:   p.Invoices,
		messages:   p.Messages,
		notifier:   p.Notifier,
		audit:      p.Audit,
		orders:     repository.ProvideStore[domain.Order](p.DB),
		items:      repository.ProvideStore[domain.OrderItem](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	if strings.TrimSpace(req.CustomerName) == "" {
		return domain.Order{}, domain.ErrInvalidCustomerName
	}
	if len(req.Items) == 0 {
		return domain.Order{}, domain.ErrEmptyItems
	}
	if req.ShippingCost < 0 {
		return domain.Order{}, domain.ErrInvalidShippingCost
	}
	kind := req.Kind
	if kind == "" {
		kind = domain.OrderKindRegular
	}

	now := s.clock.Now()
	orderID := s.genID.Generate()

	orderItems := make([]domain.OrderItem, 0, len(req.Items))
	pricingItems := make([]pricing.Item, 0, len(req.Items))
	for _, line := range req.Items {
		if line.UnitPrice < 0 || math.IsNaN(line.UnitPrice) || math.IsInf(line.UnitPrice, 0) {
			return domain.Order{}, pricing.ErrNegativeUnitPrice
		}
		if line.Quantity < 1 {
			return domain.Order{}, pricing.ErrInvalidQuantity
		}
		mode := line.Mode
		if mode == "" {
			mode = domain.ItemModeBuy
		}
		if mode == domain.ItemModeRent && line.RentalDays < 1 {
			return domain.Order{}, domain.ErrInvalidRentalDays
		}
		unitPrice := int64(math.Round(line.UnitPrice))
		orderItems = append(orderItems, domain.OrderItem{
			ID:         s.genID.Generate(),
			OrderID:    orderID,
			Name:       strings.TrimSpace(line.Name),
			Quantity:   line.Quantity,
			UnitPrice:  unitPrice,
			Mode:       mode,
			RentalDays: line.RentalDays,
			CreatedAt:  now,
		})
		pricingItems = append(pricingItems, pricing.Item{
			UnitPrice: unitPrice,
			Quantity:  line.Quantity,
			Rental:    mode == domain.ItemModeRent,
		})
	}

	breakdown, err := s.calculator.ComputeItemsBreakdown(pricingItems)
	if err != nil {
		return domain.Order{}, err
	}
	cautionFee, err := s.calculator.ComputeCautionFee(pricingItems)
	if err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:                    orderID,
		OrderNumber:           fmt.Sprintf("ORD-%d", orderID),
		Kind:                  kind,
		ItemsKind:             domain.DeriveItemsKind(orderItems),
		Status:                domain.OrderStatusPending,
		CustomerName:          strings.TrimSpace(req.CustomerName),
		CustomerEmail:         strings.TrimSpace(req.CustomerEmail),
		Subtotal:              breakdown.Subtotal,
		DiscountPercentage:    breakdown.DiscountPercentage,
		DiscountAmount:        breakdown.DiscountAmount,
		SubtotalAfterDiscount: breakdown.SubtotalAfterDiscount,
		VAT:                   breakdown.VAT,
		CautionFee:            cautionFee,
		ShippingCost:          req.ShippingCost,
		Total:                 breakdown.SubtotalAfterDiscount + breakdown.VAT + cautionFee + req.ShippingCost,
		CurrentHandler:        domain.HandlerProduction,
		Metadata:              datatypes.JSONMap(req.Metadata),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orders.WithTrx(tx).Create(ctx, &order); err != nil {
			return err
		}
		itemPtrs := make([]*domain.OrderItem, len(orderItems))
		for i := range orderItems {
			itemPtrs[i] = &orderItems[i]
		}
		return s.items.WithTrx(tx).BatchCreate(ctx, itemPtrs)
	})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = orderItems

	s.auditLog(ctx, "order.create", order.ID, map[string]any{
		"order_number": order.OrderNumber,
		"kind":         string(order.Kind),
		"total":        order.Total,
	})
	return order, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Order, error) {
	orderID, err := snowflake.ParseString(id)
	if err != nil {
		return domain.Order{}, domain.ErrNotFound
	}
	return s.loadOrder(ctx, orderID)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (domain.Order, error) {
	order, err := s.orders.FindOne(ctx, &domain.Order{OrderNumber: number}, option.WithPreload("Items"))
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}
	return *order, nil
}

func (s *Service) List(ctx context.Context, req domain.ListOrderRequest) (domain.ListOrderResponse, error) {
	query := &domain.Order{}
	if req.Status != nil {
		query.Status = *req.Status
	}
	if req.Handler != nil {
		query.CurrentHandler = *req.Handler
	}

	rows, err := s.orders.Find(ctx, query,
		option.WithPreload("Items"),
		option.WithSortBy(option.QuerySortBy{
			Allow:   map[string]bool{"created_at": true, "updated_at": true, "total": true},
			SortBy:  req.SortBy,
			OrderBy: req.OrderBy,
		}),
	)
	if err != nil {
		return domain.ListOrderResponse{}, err
	}

	resp := domain.ListOrderResponse{Orders: make([]domain.Order, 0, len(rows))}
	for _, row := range rows {
		if row == nil {
			continue
		}
		resp.Orders = append(resp.Orders, *row)
	}
	return resp, nil
}

func (s *Service) Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResponse, error) {
	breakdown, err := s.calculator.ComputeBreakdown(req.UnitPrice, req.Quantity)
	if err != nil {
		return domain.QuoteResponse{}, err
	}
	return domain.QuoteResponse{Breakdown: breakdown}, nil
}

// Approve moves a pending order to APPROVED. Re-approving with the payment
// reference already recorded on an approved order is a no-op success; any
// other conflicting write surfaces as ErrStaleState.
func (s *Service) Approve(ctx context.Context, req domain.ApproveRequest) (domain.TransitionResult, error) {
	orderID, err := snowflake.ParseString(req.OrderID)
	if err != nil {
		return domain.TransitionResult{}, domain.ErrNotFound
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.TransitionResult{}, err
	}

	reference := strings.TrimSpace(req.PaymentReference)
	if order.Status == domain.OrderStatusApproved &&
		order.PaymentReference != nil && reference != "" && *order.PaymentReference == reference {
		return domain.TransitionResult{Order: order}, nil
	}
	if !domain.CanTransition(order.Status, domain.OrderStatusApproved) {
		return domain.TransitionResult{}, domain.ErrInvalidTransition
	}
	if !order.PaymentVerified && !req.AdminOverride {
		return domain.TransitionResult{}, domain.ErrPaymentNotVerified
	}

	now := s.clock.Now()
	updates := map[string]any{
		"status":     domain.OrderStatusApproved,
		"updated_at": now,
	}
	if reference != "" {
		updates["payment_reference"] = reference
	}
	if err := s.guardedUpdate(ctx, orderID, domain.OrderStatusPending, updates); err != nil {
		// A concurrent approval with the same reference already won; treat
		// it as this caller's success.
		if errors.Is(err, domain.ErrStaleState) {
			current, readErr := s.loadOrder(ctx, orderID)
			if readErr == nil && current.Status == domain.OrderStatusApproved &&
				current.PaymentReference != nil && reference != "" && *current.PaymentReference == reference {
				return domain.TransitionResult{Order: current}, nil
			}
		}
		return domain.TransitionResult{}, err
	}

	order, err = s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.TransitionResult{}, err
	}

	result := domain.TransitionResult{Order: order}
	if _, invErr := s.invoices.GenerateForOrder(ctx, &order); invErr != nil {
		logger.FromContext(ctx).Error("invoice generation failed after approval",
			zap.String("order_number", order.OrderNumber), zap.Error(invErr))
		result.SideEffectErr = invErr
	}
	if notifyErr := s.notifier.Notify(ctx, notifdomain.EventOrderApproved, order.OrderNumber, map[string]any{
		"customer_name":  order.CustomerName,
		"customer_email": order.CustomerEmail,
		"total":          order.Total,
	}); notifyErr != nil && result.SideEffectErr == nil {
		result.SideEffectErr = notifyErr
	}

	s.auditLog(ctx, "order.approve", order.ID, map[string]any{
		"order_number":      order.OrderNumber,
		"payment_reference": reference,
		"admin_override":    req.AdminOverride,
	})
	return result, nil
}

// UpdateQuantity changes one line's quantity on a pending custom order and
// reprices the whole order in the same transaction.
func (s *Service) UpdateQuantity(ctx context.Context, req domain.UpdateQuantityRequest) (domain.QuantityChange, error) {
	orderID, err := snowflake.ParseString(req.OrderID)
	if err != nil {
		return domain.QuantityChange{}, domain.ErrNotFound
	}
	itemID, err := snowflake.ParseString(req.ItemID)
	if err != nil {
		return domain.QuantityChange{}, domain.ErrItemNotFound
	}
	if req.NewQuantity < 1 {
		return domain.QuantityChange{}, pricing.ErrInvalidQuantity
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.QuantityChange{}, err
	}
	if order.Kind != domain.OrderKindCustom {
		return domain.QuantityChange{}, domain.ErrNotCustomOrder
	}
	if order.Status != domain.OrderStatusPending {
		return domain.QuantityChange{}, domain.ErrInvalidTransition
	}

	var target *domain.OrderItem
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			target = &order.Items[i]
			break
		}
	}
	if target == nil {
		return domain.QuantityChange{}, domain.ErrItemNotFound
	}

	oldQuantity := target.Quantity
	oldTotal := order.Total
	target.Quantity = req.NewQuantity

	pricingItems := make([]pricing.Item, 0, len(order.Items))
	for _, item := range order.Items {
		pricingItems = append(pricingItems, pricing.Item{
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Rental:    item.Mode == domain.ItemModeRent,
		})
	}
	breakdown, err := s.calculator.ComputeItemsBreakdown(pricingItems)
	if err != nil {
		return domain.QuantityChange{}, err
	}
	cautionFee, err := s.calculator.ComputeCautionFee(pricingItems)
	if err != nil {
		return domain.QuantityChange{}, err
	}

	now := s.clock.Now()
	newTotal := breakdown.SubtotalAfterDiscount + breakdown.VAT + cautionFee + order.ShippingCost

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.OrderItem{}).
			Where("id = ? AND order_id = ?", itemID, orderID).
			Update("quantity", req.NewQuantity)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrItemNotFound
		}

		guarded := tx.Model(&domain.Order{}).
			Where("id = ? AND status = ?", orderID, domain.OrderStatusPending).
			Updates(map[string]any{
				"subtotal":                breakdown.Subtotal,
				"discount_percentage":     breakdown.DiscountPercentage,
				"discount_amount":         breakdown.DiscountAmount,
				"subtotal_after_discount": breakdown.SubtotalAfterDiscount,
				"vat":                     breakdown.VAT,
				"caution_fee":             cautionFee,
				"total":                   newTotal,
				"updated_at":              now,
			})
		if guarded.Error != nil {
			return guarded.Error
		}
		if guarded.RowsAffected == 0 {
			return domain.ErrStaleState
		}
		return nil
	})
	if err != nil {
		return domain.QuantityChange{}, err
	}

	summary := fmt.Sprintf("Quantity of %s changed from %d to %d. Order total changed from %d to %d.",
		target.Name, oldQuantity, req.NewQuantity, oldTotal, newTotal)
	if _, msgErr := s.messages.Append(ctx, messagedomain.Message{
		OrderID: orderID,
		Kind:    messagedomain.MessageKindSystem,
		Body:    summary,
	}); msgErr != nil {
		logger.FromContext(ctx).Error("system message append failed after quantity update",
			zap.String("order_number", order.OrderNumber), zap.Error(msgErr))
	}

	updated, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.QuantityChange{}, err
	}

	s.auditLog(ctx, "order.update_quantity", orderID, map[string]any{
		"item_id":      req.ItemID,
		"old_quantity": oldQuantity,
		"new_quantity": req.NewQuantity,
		"old_total":    oldTotal,
		"new_total":    newTotal,
	})

	return domain.QuantityChange{
		Order:       updated,
		OldQuantity: oldQuantity,
		NewQuantity: req.NewQuantity,
		OldTotal:    oldTotal,
		NewTotal:    newTotal,
		Summary:     summary,
	}, nil
}

func (s *Service) StartProduction(ctx context.Context, id string) (domain.Order, error) {
	return s.simpleTransition(ctx, id, domain.OrderStatusApproved, domain.OrderStatusInProduction, "order.start_production")
}

func (s *Service) MarkReady(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.simpleTransition(ctx, id, domain.OrderStatusInProduction, domain.OrderStatusReadyForDelivery, "order.mark_ready")
	if err != nil {
		return domain.Order{}, err
	}
	if notifyErr := s.notifier.Notify(ctx, notifdomain.EventOrderReady, order.OrderNumber, map[string]any{
		"customer_email": order.CustomerEmail,
	}); notifyErr != nil {
		logger.FromContext(ctx).Warn("ready notification failed", zap.Error(notifyErr))
	}
	return order, nil
}

func (s *Service) MarkDelivered(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.simpleTransition(ctx, id, domain.OrderStatusReadyForDelivery, domain.OrderStatusDelivered, "order.mark_delivered")
	if err != nil {
		return domain.Order{}, err
	}
	if notifyErr := s.notifier.Notify(ctx, notifdomain.EventOrderDelivered, order.OrderNumber, map[string]any{
		"customer_email": order.CustomerEmail,
	}); notifyErr != nil {
		logger.FromContext(ctx).Warn("delivered notification failed", zap.Error(notifyErr))
	}
	return order, nil
}

// Cancel is allowed from any non-terminal status. When payment was already
// verified the cancellation raises a refund-consideration event; refunds
// themselves are handled outside this system.
func (s *Service) Cancel(ctx context.Context, req domain.CancelRequest) (domain.TransitionResult, error) {
	orderID, err := snowflake.ParseString(req.OrderID)
	if err != nil {
		return domain.TransitionResult{}, domain.ErrNotFound
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if order.IsTerminal() {
		return domain.TransitionResult{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	reason := strings.TrimSpace(req.Reason)
	updates := map[string]any{
		"status":     domain.OrderStatusCancelled,
		"updated_at": now,
	}
	if reason != "" {
		updates["cancel_reason"] = reason
	}
	if err := s.guardedUpdate(ctx, orderID, order.Status, updates); err != nil {
		return domain.TransitionResult{}, err
	}

	updated, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.TransitionResult{}, err
	}

	result := domain.TransitionResult{Order: updated}
	payload := map[string]any{
		"customer_email": updated.CustomerEmail,
		"reason":         reason,
		"total":          updated.Total,
	}
	if notifyErr := s.notifier.Notify(ctx, notifdomain.EventOrderCancelled, updated.OrderNumber, payload); notifyErr != nil {
		result.SideEffectErr = notifyErr
	}
	// A verified payment additionally flags the cancellation for refund review.
	if updated.PaymentVerified {
		if notifyErr := s.notifier.Notify(ctx, notifdomain.EventRefundConsider, updated.OrderNumber, payload); notifyErr != nil && result.SideEffectErr == nil {
			result.SideEffectErr = notifyErr
		}
	}

	s.auditLog(ctx, "order.cancel", orderID, map[string]any{
		"order_number": updated.OrderNumber,
		"reason":       reason,
		"was_paid":     updated.PaymentVerified,
	})
	return result, nil
}

// VerifyPayment is one-way: once verified an order never becomes unverified.
func (s *Service) VerifyPayment(ctx context.Context, req domain.VerifyPaymentRequest) (domain.Order, error) {
	orderID, err := snowflake.ParseString(req.OrderID)
	if err != nil {
		return domain.Order{}, domain.ErrNotFound
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.PaymentVerified {
		return order, nil
	}

	now := s.clock.Now()
	updates := map[string]any{
		"payment_verified":    true,
		"payment_verified_at": now,
		"updated_at":          now,
	}
	if reference := strings.TrimSpace(req.PaymentReference); reference != "" {
		updates["payment_reference"] = reference
	}
	if err := s.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error; err != nil {
		return domain.Order{}, err
	}

	updated, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	s.auditLog(ctx, "order.verify_payment", orderID, map[string]any{
		"order_number":      updated.OrderNumber,
		"payment_reference": req.PaymentReference,
	})
	return updated, nil
}

func (s *Service) simpleTransition(ctx context.Context, id string, from, to domain.OrderStatus, action string) (domain.Order, error) {
	orderID, err := snowflake.ParseString(id)
	if err != nil {
		return domain.Order{}, domain.ErrNotFound
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == to {
		return order, nil
	}
	if order.Status != from || !domain.CanTransition(from, to) {
		return domain.Order{}, domain.ErrInvalidTransition
	}

	if err := s.guardedUpdate(ctx, orderID, from, map[string]any{
		"status":     to,
		"updated_at": s.clock.Now(),
	}); err != nil {
		return domain.Order{}, err
	}

	updated, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	s.auditLog(ctx, action, orderID, map[string]any{
		"order_number": updated.OrderNumber,
		"from":         string(from),
		"to":           string(to),
	})
	return updated, nil
}

// guardedUpdate applies updates only while the persisted status still equals
// the status the caller read. Zero rows affected means another writer moved
// the order first.
func (s *Service) guardedUpdate(ctx context.Context, orderID snowflake.ID, expected domain.OrderStatus, updates map[string]any) error {
	result := s.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ?", orderID, expected).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.loadOrder(ctx, orderID); err != nil {
			return err
		}
		return domain.ErrStaleState
	}
	return nil
}

func (s *Service) loadOrder(ctx context.Context, orderID snowflake.ID) (domain.Order, error) {
	order, err := s.orders.FindOne(ctx, &domain.Order{ID: orderID}, option.WithPreload("Items"))
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}
	return *order, nil
}

func (s *Service) auditLog(ctx context.Context, action string, orderID snowflake.ID, metadata map[string]any) {
	targetID := orderID.String()
	if err := s.audit.AuditLog(ctx, "admin", nil, action, "order", &targetID, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}
