package domain

import "errors"

var (
	ErrNotFound        = errors.New("invoice_not_found")
	ErrOrderNotEligible = errors.New("order_not_eligible_for_invoice")
)
