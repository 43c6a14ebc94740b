package domain

import (
	"context"

	"github.com/smallbiznis/atelier/internal/pricing"
)

// Service owns order lifecycle transitions. Every mutating call validates the
// requested transition against the currently persisted status and rejects
// concurrent conflicting writes with ErrStaleState.
type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (Order, error)
	GetByID(ctx context.Context, id string) (Order, error)
	GetByNumber(ctx context.Context, number string) (Order, error)
	List(ctx context.Context, req ListOrderRequest) (ListOrderResponse, error)

	Quote(ctx context.Context, req QuoteRequest) (QuoteResponse, error)

	Approve(ctx context.Context, req ApproveRequest) (TransitionResult, error)
	UpdateQuantity(ctx context.Context, req UpdateQuantityRequest) (QuantityChange, error)
	StartProduction(ctx context.Context, id string) (Order, error)
	MarkReady(ctx context.Context, id string) (Order, error)
	MarkDelivered(ctx context.Context, id string) (Order, error)
	Cancel(ctx context.Context, req CancelRequest) (TransitionResult, error)
	VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (Order, error)
}

type CreateOrderLine struct {
	Name       string   `json:"name"`
	Quantity   int64    `json:"quantity"`
	UnitPrice  float64  `json:"unit_price"`
	Mode       ItemMode `json:"mode"`
	RentalDays int64    `json:"rental_days"`
}

type CreateOrderRequest struct {
	Kind          OrderKind         `json:"kind"`
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
	Items         []CreateOrderLine `json:"items"`
	ShippingCost  int64             `json:"shipping_cost"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
}

type ListOrderRequest struct {
	Status  *OrderStatus
	Handler *Handler
	SortBy  string
	OrderBy string
}

type ListOrderResponse struct {
	Orders []Order `json:"orders"`
}

type QuoteRequest struct {
	UnitPrice float64 `json:"unit_price"`
	Quantity  int64   `json:"quantity"`
}

type QuoteResponse struct {
	Breakdown pricing.Breakdown `json:"breakdown"`
}

type ApproveRequest struct {
	OrderID          string `json:"order_id"`
	PaymentReference string `json:"payment_reference"`
	AdminOverride    bool   `json:"admin_override"`
}

type UpdateQuantityRequest struct {
	OrderID     string `json:"order_id"`
	ItemID      string `json:"item_id"`
	NewQuantity int64  `json:"new_quantity"`
}

type CancelRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type VerifyPaymentRequest struct {
	OrderID          string `json:"order_id"`
	PaymentReference string `json:"payment_reference"`
}

// TransitionResult carries the updated order plus any collaborator failure
// that occurred after the transition committed. The primary mutation is never
// rolled back for a side-effect failure.
type TransitionResult struct {
	Order         Order `json:"order"`
	SideEffectErr error `json:"-"`
}

// QuantityChange summarizes a quantity update for the audit trail.
type QuantityChange struct {
	Order       Order  `json:"order"`
	OldQuantity int64  `json:"old_quantity"`
	NewQuantity int64  `json:"new_quantity"`
	OldTotal    int64  `json:"old_total"`
	NewTotal    int64  `json:"new_total"`
	Summary     string `json:"summary"`
}
