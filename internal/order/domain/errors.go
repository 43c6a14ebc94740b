package domain

import "errors"

var (
	ErrNotFound            = errors.New("order_not_found")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrStaleState          = errors.New("stale_state")
	ErrPaymentNotVerified  = errors.New("payment_not_verified")
	ErrNotCustomOrder      = errors.New("not_custom_order")
	ErrItemNotFound        = errors.New("order_item_not_found")
	ErrInvalidCustomerName = errors.New("invalid_customer_name")
	ErrEmptyItems          = errors.New("empty_items")
	ErrInvalidShippingCost = errors.New("invalid_shipping_cost")
	ErrInvalidRentalDays   = errors.New("invalid_rental_days")
)
