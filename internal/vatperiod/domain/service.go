package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRecordNotFound = errors.New("vat_period_record_not_found")
	ErrPeriodArchived = errors.New("vat_period_already_archived")
	ErrInvalidPeriod  = errors.New("invalid_vat_period")
)

// Totals is the aggregation result for one time window before persistence.
type Totals struct {
	TotalSales       int64 `json:"total_sales_amount"`
	OutputVAT        int64 `json:"output_vat"`
	DeductibleAmount int64 `json:"deductible_expenses_amount"`
	InputVAT         int64 `json:"input_vat"`
	VATPayable       int64 `json:"vat_payable"`
	OrderCount       int64 `json:"order_count"`
}

type Service interface {
	// CurrentPeriodAt resolves the accounting period containing the instant.
	CurrentPeriodAt(t time.Time) Period

	// Aggregate computes output VAT from realized orders and input VAT from
	// VAT-applicable expenses inside [start, end).
	Aggregate(ctx context.Context, start, end time.Time) (Totals, error)

	// Rollover recomputes and stores the record for the period containing
	// today. It updates an existing ACTIVE record in place and refuses to
	// touch an ARCHIVED one.
	Rollover(ctx context.Context, today time.Time) (*Record, error)

	// Archive freezes a period's record. Archiving twice fails.
	Archive(ctx context.Context, month, year int) (*Record, error)

	// GetRecord returns the stored record for a labeled period.
	GetRecord(ctx context.Context, month, year int) (*Record, error)

	// Snapshot aggregates the period containing now without persisting.
	Snapshot(ctx context.Context, now time.Time) (Period, Totals, error)

	// AnnualTotal sums vatPayable across all records labeled with the year.
	AnnualTotal(ctx context.Context, year int) (int64, error)
}
