package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound       = errors.New("expense_not_found")
	ErrInvalidTitle   = errors.New("expense_title_required")
	ErrInvalidAmount  = errors.New("expense_amount_must_be_positive")
	ErrInvalidVAT     = errors.New("expense_vat_exceeds_amount")
	ErrVATNotApplied  = errors.New("expense_vat_set_but_not_applicable")
	ErrInvalidTime    = errors.New("expense_incurred_at_required")
)

type CreateRequest struct {
	Title         string         `json:"title"`
	Category      string         `json:"category"`
	Amount        int64          `json:"amount"`
	VAT           int64          `json:"vat"`
	VATApplicable bool           `json:"vat_applicable"`
	IncurredAt    time.Time      `json:"incurred_at"`
	Notes         string         `json:"notes"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type ListFilter struct {
	Category string
	From     *time.Time
	To       *time.Time
	Limit    int
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Expense, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Expense, error)
	List(ctx context.Context, filter ListFilter) ([]*Expense, error)
}
