package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type RecordStatus string

const (
	RecordStatusActive   RecordStatus = "ACTIVE"
	RecordStatusArchived RecordStatus = "ARCHIVED"
)

// Period is one accounting cycle: it opens on the 22nd of its labeled month
// and closes on the 21st of the following month, inclusive. The label is
// always the month the period opened in.
type Period struct {
	Month int       `json:"month"`
	Year  int       `json:"year"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WindowEnd is the first instant after the period, the exclusive upper bound
// for aggregation queries. End itself is the inclusive closing day.
func (p Period) WindowEnd() time.Time {
	return p.End.AddDate(0, 0, 1)
}

// Record is the persisted VAT reconciliation for one period. An ACTIVE record
// is recomputed in place on every rollover; an ARCHIVED record is frozen and
// never rewritten.
type Record struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id,string"`
	PeriodMonth int          `gorm:"not null;uniqueIndex:ux_vat_period" json:"period_month"`
	PeriodYear  int          `gorm:"not null;uniqueIndex:ux_vat_period" json:"period_year"`
	PeriodStart time.Time    `gorm:"not null" json:"period_start"`
	PeriodEnd   time.Time    `gorm:"not null" json:"period_end"`
	TotalSales  int64        `gorm:"column:total_sales_amount;not null;default:0" json:"total_sales_amount"`
	OutputVAT   int64        `gorm:"not null;default:0" json:"output_vat"`
	Deductible  int64        `gorm:"column:deductible_expenses_amount;not null;default:0" json:"deductible_expenses_amount"`
	InputVAT    int64        `gorm:"not null;default:0" json:"input_vat"`
	VATPayable  int64        `gorm:"not null;default:0" json:"vat_payable"`
	OrderCount  int64        `gorm:"not null;default:0" json:"order_count"`
	Status      RecordStatus `gorm:"type:text;not null;default:'ACTIVE'" json:"status"`
	ArchivedAt  *time.Time   `json:"archived_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (Record) TableName() string {
	return "vat_period_records"
}
