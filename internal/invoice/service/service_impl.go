package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		clock: p.Clock,
		genID: p.GenID,
	}
}

// GenerateForOrder snapshots the order's persisted amounts into an invoice.
// The insert is idempotent on order_id, so concurrent approvals of the same
// order converge on a single invoice row.
func (s *service) GenerateForOrder(ctx context.Context, order *orderdomain.Order) (*domain.Invoice, error) {
	if order == nil {
		return nil, domain.ErrOrderNotEligible
	}
	if order.Status != orderdomain.OrderStatusApproved && order.Status != orderdomain.OrderStatusInProduction &&
		order.Status != orderdomain.OrderStatusReadyForDelivery && order.Status != orderdomain.OrderStatusDelivered {
		return nil, domain.ErrOrderNotEligible
	}

	now := s.clock.Now()
	inv := domain.Invoice{
		ID:                    s.genID.Generate(),
		OrderID:               order.ID,
		InvoiceYear:           now.Year(),
		CustomerName:          order.CustomerName,
		Subtotal:              order.Subtotal,
		DiscountAmount:        order.DiscountAmount,
		SubtotalAfterDiscount: order.SubtotalAfterDiscount,
		VAT:                   order.VAT,
		CautionFee:            order.CautionFee,
		ShippingCost:          order.ShippingCost,
		Total:                 order.Total,
		IssuedAt:              now,
		Metadata:              datatypes.JSONMap{"order_number": order.OrderNumber},
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.nextInvoiceNumber(ctx, tx, inv.InvoiceYear)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number
		return s.insertInvoice(ctx, tx, inv)
	})
	if err != nil {
		return nil, err
	}

	// Re-read to cover the duplicate case: the stored row may belong to an
	// earlier generation attempt.
	return s.GetByOrderID(ctx, order.ID)
}

func (s *service) GetByOrderID(ctx context.Context, orderID snowflake.ID) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// nextInvoiceNumber resets to 1 each calendar year.
func (s *service) nextInvoiceNumber(ctx context.Context, tx *gorm.DB, year int) (int64, error) {
	var next int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(invoice_number), 0) + 1
		 FROM invoices
		 WHERE invoice_year = ?`,
		year,
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *service) insertInvoice(ctx context.Context, tx *gorm.DB, inv domain.Invoice) error {
	result := tx.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, order_id, invoice_number, invoice_year, customer_name,
			subtotal, discount_amount, subtotal_after_discount, vat,
			caution_fee, shipping_cost, total, issued_at, metadata,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (order_id) DO NOTHING`,
		inv.ID,
		inv.OrderID,
		inv.InvoiceNumber,
		inv.InvoiceYear,
		inv.CustomerName,
		inv.Subtotal,
		inv.DiscountAmount,
		inv.SubtotalAfterDiscount,
		inv.VAT,
		inv.CautionFee,
		inv.ShippingCost,
		inv.Total,
		inv.IssuedAt,
		inv.Metadata,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Debug("invoice already exists for order", zap.Int64("order_id", int64(inv.OrderID)))
	}
	return nil
}
