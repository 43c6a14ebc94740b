package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Expense records a business outgoing. VAT is caller-provided, not derived:
// only expenses that actually carried VAT contribute input VAT to a period.
type Expense struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	Title         string            `gorm:"not null" json:"title"`
	Category      string            `gorm:"index" json:"category"`
	Amount        int64             `gorm:"not null" json:"amount"`
	VAT           int64             `gorm:"not null;default:0" json:"vat"`
	VATApplicable bool              `gorm:"not null;default:false" json:"vat_applicable"`
	IncurredAt    time.Time         `gorm:"not null;index" json:"incurred_at"`
	Notes         string            `json:"notes,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (Expense) TableName() string {
	return "expenses"
}
