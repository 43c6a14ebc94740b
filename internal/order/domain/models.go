// Package domain contains the order entity and its lifecycle contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// OrderStatus represents order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "PENDING"
	OrderStatusApproved         OrderStatus = "APPROVED"
	OrderStatusInProduction     OrderStatus = "IN_PRODUCTION"
	OrderStatusReadyForDelivery OrderStatus = "READY_FOR_DELIVERY"
	OrderStatusDelivered        OrderStatus = "DELIVERED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
)

// OrderKind distinguishes made-to-measure work from catalogue sales.
type OrderKind string

const (
	OrderKindCustom  OrderKind = "CUSTOM"
	OrderKindRegular OrderKind = "REGULAR"
)

// ItemsKind is derived from the line items' modes.
type ItemsKind string

const (
	ItemsKindSales  ItemsKind = "SALES"
	ItemsKindRental ItemsKind = "RENTAL"
	ItemsKindMixed  ItemsKind = "MIXED"
)

// Handler is the domain currently responsible for the order.
type Handler string

const (
	HandlerProduction Handler = "PRODUCTION"
	HandlerLogistics  Handler = "LOGISTICS"
)

// ItemMode marks a line as a sale or a rental.
type ItemMode string

const (
	ItemModeBuy  ItemMode = "BUY"
	ItemModeRent ItemMode = "RENT"
)

// Order is the central entity. All monetary fields are whole currency units
// and satisfy total == subtotal_after_discount + vat + caution_fee +
// shipping_cost on every persisted write.
type Order struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderNumber string       `gorm:"type:text;not null;uniqueIndex" json:"order_number"`
	Kind        OrderKind    `gorm:"type:text;not null" json:"kind"`
	ItemsKind   ItemsKind    `gorm:"type:text;not null" json:"items_kind"`
	Status      OrderStatus  `gorm:"type:text;not null;default:'PENDING';index" json:"status"`

	CustomerName  string `gorm:"type:text;not null" json:"customer_name"`
	CustomerEmail string `gorm:"type:text" json:"customer_email"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`

	Subtotal              int64 `gorm:"not null;default:0" json:"subtotal"`
	DiscountPercentage    int64 `gorm:"not null;default:0" json:"discount_percentage"`
	DiscountAmount        int64 `gorm:"not null;default:0" json:"discount_amount"`
	SubtotalAfterDiscount int64 `gorm:"not null;default:0" json:"subtotal_after_discount"`
	VAT                   int64 `gorm:"column:vat;not null;default:0" json:"vat"`
	CautionFee            int64 `gorm:"not null;default:0" json:"caution_fee"`
	ShippingCost          int64 `gorm:"not null;default:0" json:"shipping_cost"`
	Total                 int64 `gorm:"not null;default:0" json:"total"`

	CurrentHandler         Handler    `gorm:"type:text;not null;default:'PRODUCTION'" json:"current_handler"`
	HandoffAt              *time.Time `gorm:"" json:"handoff_at,omitempty"`
	LogisticsHistoryAccess bool       `gorm:"not null;default:false" json:"logistics_history_access"`
	DeliveryOption         *string    `gorm:"type:text" json:"delivery_option,omitempty"`

	PaymentReference  *string    `gorm:"type:text;index" json:"payment_reference,omitempty"`
	PaymentVerified   bool       `gorm:"not null;default:false" json:"payment_verified"`
	PaymentVerifiedAt *time.Time `gorm:"" json:"payment_verified_at,omitempty"`

	CancelReason *string `gorm:"type:text" json:"cancel_reason,omitempty"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// IsTerminal reports whether the order can no longer transition.
func (o Order) IsTerminal() bool {
	return o.Status == OrderStatusDelivered || o.Status == OrderStatusCancelled
}

// OrderItem is one line on an order. Lines are immutable once the order
// leaves PENDING, except through the quantity-update transition.
type OrderItem struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID    snowflake.ID `gorm:"not null;index" json:"order_id"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	Quantity   int64        `gorm:"not null" json:"quantity"`
	UnitPrice  int64        `gorm:"not null" json:"unit_price"`
	Mode       ItemMode     `gorm:"type:text;not null" json:"mode"`
	RentalDays int64        `gorm:"not null;default:0" json:"rental_days"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrderItem) TableName() string { return "order_items" }

// DeriveItemsKind classifies an order by its line modes.
func DeriveItemsKind(items []OrderItem) ItemsKind {
	var sales, rentals bool
	for _, item := range items {
		switch item.Mode {
		case ItemModeRent:
			rentals = true
		default:
			sales = true
		}
	}
	switch {
	case sales && rentals:
		return ItemsKindMixed
	case rentals:
		return ItemsKindRental
	default:
		return ItemsKindSales
	}
}
