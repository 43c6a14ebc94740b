package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Invoice is an immutable financial snapshot of an approved order. Amounts
// are copied verbatim from the order at generation time and never recomputed.
type Invoice struct {
	ID                    snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	OrderID               snowflake.ID      `gorm:"uniqueIndex;not null" json:"order_id,string"`
	InvoiceNumber         int64             `gorm:"not null;index:idx_invoices_year_number" json:"invoice_number"`
	InvoiceYear           int               `gorm:"not null;index:idx_invoices_year_number" json:"invoice_year"`
	CustomerName          string            `gorm:"not null" json:"customer_name"`
	Subtotal              int64             `gorm:"not null" json:"subtotal"`
	DiscountAmount        int64             `gorm:"not null" json:"discount_amount"`
	SubtotalAfterDiscount int64             `gorm:"not null" json:"subtotal_after_discount"`
	VAT                   int64             `gorm:"not null" json:"vat"`
	CautionFee            int64             `gorm:"not null" json:"caution_fee"`
	ShippingCost          int64             `gorm:"not null" json:"shipping_cost"`
	Total                 int64             `gorm:"not null" json:"total"`
	IssuedAt              time.Time         `gorm:"not null" json:"issued_at"`
	Metadata              datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}
