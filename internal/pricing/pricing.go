// Package pricing is the single computation site for order money figures.
// Quoting, order creation and invoicing all consume the breakdown this
// package produces; no caller re-derives any of these numbers.
package pricing

import (
	"errors"
	"math"
)

var (
	ErrNegativeUnitPrice = errors.New("negative_unit_price")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
)

// Tier maps a minimum quantity to a discount percentage.
type Tier struct {
	MinQuantity int64
	Percentage  int64
}

// Rates holds the rates the calculator applies. Tiers must be sorted by
// descending MinQuantity; lookup is first-match top-down.
type Rates struct {
	VATRate        float64
	CautionFeeRate float64
	Tiers          []Tier
}

func DefaultRates() Rates {
	return Rates{
		VATRate:        0.075,
		CautionFeeRate: 0.5,
		Tiers: []Tier{
			{MinQuantity: 10, Percentage: 10},
			{MinQuantity: 6, Percentage: 7},
			{MinQuantity: 3, Percentage: 5},
		},
	}
}

// Breakdown is the canonical set of derived monetary fields for one pricing
// event. Every figure is already rounded to a whole currency unit; the sum of
// the displayed parts always equals the displayed total.
type Breakdown struct {
	UnitPrice             int64 `json:"unit_price"`
	Quantity              int64 `json:"quantity"`
	Subtotal              int64 `json:"subtotal"`
	DiscountPercentage    int64 `json:"discount_percentage"`
	DiscountAmount        int64 `json:"discount_amount"`
	SubtotalAfterDiscount int64 `json:"subtotal_after_discount"`
	VAT                   int64 `json:"vat"`
	Total                 int64 `json:"total"`
}

// Item is a priced order line as the calculator sees it.
type Item struct {
	UnitPrice int64
	Quantity  int64
	Rental    bool
}

// RatesProvider supplies the active rates; backed by the hot-reloadable
// pricing config in production and by fixed rates in tests.
type RatesProvider func() Rates

type Calculator struct {
	rates RatesProvider
}

func NewCalculator(rates RatesProvider) *Calculator {
	if rates == nil {
		rates = DefaultRates
	}
	return &Calculator{rates: rates}
}

// ComputeBreakdown prices a single line: subtotal, tiered discount, VAT and
// total, rounding each intermediate figure to a whole unit. Inputs are in
// minor-unit-free currency terms already; a fractional unit price is rounded
// first. Negative or non-finite inputs indicate upstream corruption and are
// rejected rather than clamped.
func (c *Calculator) ComputeBreakdown(unitPrice float64, quantity int64) (Breakdown, error) {
	if math.IsNaN(unitPrice) || math.IsInf(unitPrice, 0) || unitPrice < 0 {
		return Breakdown{}, ErrNegativeUnitPrice
	}
	if quantity < 1 {
		return Breakdown{}, ErrInvalidQuantity
	}

	rates := c.rates()
	price := int64(math.Round(unitPrice))
	subtotal := price * quantity
	return c.breakdownFromSubtotal(price, quantity, subtotal, rates), nil
}

// ComputeItemsBreakdown prices a multi-line order through the same steps as
// ComputeBreakdown: line subtotals are summed and the discount tier is looked
// up from the summed quantity. The reported unit price is the first line's.
func (c *Calculator) ComputeItemsBreakdown(items []Item) (Breakdown, error) {
	if len(items) == 0 {
		return Breakdown{}, ErrInvalidQuantity
	}

	var subtotal, quantity int64
	for _, item := range items {
		if item.UnitPrice < 0 {
			return Breakdown{}, ErrNegativeUnitPrice
		}
		if item.Quantity < 1 {
			return Breakdown{}, ErrInvalidQuantity
		}
		subtotal += item.UnitPrice * item.Quantity
		quantity += item.Quantity
	}

	return c.breakdownFromSubtotal(items[0].UnitPrice, quantity, subtotal, c.rates()), nil
}

// ComputeCautionFee returns the refundable deposit on an order's rental
// lines: a fixed share of the rental-only subtotal. Purchase lines never
// contribute.
func (c *Calculator) ComputeCautionFee(items []Item) (int64, error) {
	var rentalSubtotal int64
	for _, item := range items {
		if !item.Rental {
			continue
		}
		if item.UnitPrice < 0 {
			return 0, ErrNegativeUnitPrice
		}
		if item.Quantity < 1 {
			return 0, ErrInvalidQuantity
		}
		rentalSubtotal += item.UnitPrice * item.Quantity
	}
	return roundMoney(float64(rentalSubtotal) * c.rates().CautionFeeRate), nil
}

// DiscountPercentage exposes the tier lookup for a quantity.
func (c *Calculator) DiscountPercentage(quantity int64) int64 {
	return tierLookup(quantity, c.rates().Tiers)
}

func (c *Calculator) breakdownFromSubtotal(unitPrice, quantity, subtotal int64, rates Rates) Breakdown {
	discountPct := tierLookup(quantity, rates.Tiers)
	discountAmount := roundMoney(float64(subtotal) * float64(discountPct) / 100)
	afterDiscount := subtotal - discountAmount
	vat := roundMoney(float64(afterDiscount) * rates.VATRate)

	return Breakdown{
		UnitPrice:             unitPrice,
		Quantity:              quantity,
		Subtotal:              subtotal,
		DiscountPercentage:    discountPct,
		DiscountAmount:        discountAmount,
		SubtotalAfterDiscount: afterDiscount,
		VAT:                   vat,
		Total:                 afterDiscount + vat,
	}
}

// tierLookup is a step function: first tier whose minimum the quantity meets
// wins. Tiers are pre-sorted by descending minimum.
func tierLookup(quantity int64, tiers []Tier) int64 {
	for _, tier := range tiers {
		if quantity >= tier.MinQuantity {
			return tier.Percentage
		}
	}
	return 0
}

func roundMoney(v float64) int64 {
	return int64(math.Round(v))
}
