package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator() *Calculator {
	return NewCalculator(DefaultRates)
}

func TestComputeBreakdown_TenUnits(t *testing.T) {
	calc := newTestCalculator()

	breakdown, err := calc.ComputeBreakdown(1000, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(10000), breakdown.Subtotal)
	assert.Equal(t, int64(10), breakdown.DiscountPercentage)
	assert.Equal(t, int64(1000), breakdown.DiscountAmount)
	assert.Equal(t, int64(9000), breakdown.SubtotalAfterDiscount)
	assert.Equal(t, int64(675), breakdown.VAT)
	assert.Equal(t, int64(9675), breakdown.Total)
}

func TestComputeBreakdown_DiscountTiers(t *testing.T) {
	calc := newTestCalculator()

	cases := []struct {
		quantity int64
		percent  int64
	}{
		{1, 0},
		{2, 0},
		{3, 5},
		{5, 5},
		{6, 7},
		{9, 7},
		{10, 10},
		{100, 10},
	}
	for _, tc := range cases {
		breakdown, err := calc.ComputeBreakdown(500, tc.quantity)
		require.NoError(t, err)
		assert.Equal(t, tc.percent, breakdown.DiscountPercentage, "quantity %d", tc.quantity)
	}
}

func TestComputeBreakdown_TierLookupIsNonIncreasingDiscount(t *testing.T) {
	calc := newTestCalculator()

	prev := int64(0)
	for q := int64(1); q <= 50; q++ {
		pct := calc.DiscountPercentage(q)
		assert.GreaterOrEqual(t, pct, prev, "discount must never shrink as quantity grows")
		prev = pct
	}
}

func TestComputeBreakdown_TotalNeverBelowDiscountedSubtotal(t *testing.T) {
	calc := newTestCalculator()

	for q := int64(1); q <= 30; q++ {
		breakdown, err := calc.ComputeBreakdown(999, q)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, breakdown.Total, breakdown.SubtotalAfterDiscount)
		assert.Equal(t, breakdown.Total, breakdown.SubtotalAfterDiscount+breakdown.VAT)
		assert.Equal(t, breakdown.Subtotal, breakdown.SubtotalAfterDiscount+breakdown.DiscountAmount)
	}
}

func TestComputeBreakdown_RoundsFractionalUnitPriceFirst(t *testing.T) {
	calc := newTestCalculator()

	breakdown, err := calc.ComputeBreakdown(999.6, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), breakdown.UnitPrice)
	assert.Equal(t, int64(1000), breakdown.Subtotal)
}

func TestComputeBreakdown_RejectsBadInput(t *testing.T) {
	calc := newTestCalculator()

	_, err := calc.ComputeBreakdown(-1, 1)
	assert.ErrorIs(t, err, ErrNegativeUnitPrice)

	_, err = calc.ComputeBreakdown(math.NaN(), 1)
	assert.ErrorIs(t, err, ErrNegativeUnitPrice)

	_, err = calc.ComputeBreakdown(math.Inf(1), 1)
	assert.ErrorIs(t, err, ErrNegativeUnitPrice)

	_, err = calc.ComputeBreakdown(100, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = calc.ComputeBreakdown(100, -4)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestComputeCautionFee_RentalLinesOnly(t *testing.T) {
	calc := newTestCalculator()

	fee, err := calc.ComputeCautionFee([]Item{
		{UnitPrice: 2000, Quantity: 2, Rental: true},
		{UnitPrice: 1000, Quantity: 1, Rental: true},
		{UnitPrice: 500, Quantity: 3, Rental: false},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), fee)
}

func TestComputeCautionFee_NoRentals(t *testing.T) {
	calc := newTestCalculator()

	fee, err := calc.ComputeCautionFee([]Item{
		{UnitPrice: 500, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Zero(t, fee)
}

func TestComputeCautionFee_RejectsBadLines(t *testing.T) {
	calc := newTestCalculator()

	_, err := calc.ComputeCautionFee([]Item{{UnitPrice: -10, Quantity: 1, Rental: true}})
	assert.ErrorIs(t, err, ErrNegativeUnitPrice)

	_, err = calc.ComputeCautionFee([]Item{{UnitPrice: 10, Quantity: 0, Rental: true}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestComputeItemsBreakdown_SumsLinesAndTiersOnTotalQuantity(t *testing.T) {
	calc := newTestCalculator()

	breakdown, err := calc.ComputeItemsBreakdown([]Item{
		{UnitPrice: 1000, Quantity: 4},
		{UnitPrice: 500, Quantity: 6, Rental: true},
	})
	require.NoError(t, err)

	// 4000 + 3000 at 10 units -> 10% tier.
	assert.Equal(t, int64(7000), breakdown.Subtotal)
	assert.Equal(t, int64(10), breakdown.DiscountPercentage)
	assert.Equal(t, int64(700), breakdown.DiscountAmount)
	assert.Equal(t, int64(6300), breakdown.SubtotalAfterDiscount)
	assert.Equal(t, int64(473), breakdown.VAT)
	assert.Equal(t, int64(6773), breakdown.Total)
}

func TestComputeItemsBreakdown_Empty(t *testing.T) {
	calc := newTestCalculator()

	_, err := calc.ComputeItemsBreakdown(nil)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}
