package fixed_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"book-engine/src/fixed"
)

func TestPriceRoundTrip(t *testing.T) {
	cases := []struct {
		value     string
		precision uint8
		expected  string
	}{
		{"150.50", 2, "150.50"},
		{"150.5", 2, "150.50"},
		{"0.00000001", 8, "0.00000001"},
		{"-3.125", 3, "-3.125"},
		{"42", 0, "42"},
		{"1.005", 2, "1.01"},   // half away from zero
		{"-1.005", 2, "-1.01"}, // half away from zero, negative
		{"1.0049", 2, "1.00"},
	}

	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			p, err := fixed.PriceFromString(tc.value, tc.precision)
			require.NoError(t, err)

			want, err := decimal.NewFromString(tc.expected)
			require.NoError(t, err)
			assert.True(t, p.Decimal().Equal(want), "got %s want %s", p.Decimal(), want)
			assert.Equal(t, tc.expected, p.String())
		})
	}
}

func TestPriceUnitsScaling(t *testing.T) {
	p := fixed.MustPrice("150.50", 2)
	assert.Equal(t, int64(15050), p.Units())
	assert.Equal(t, uint8(2), p.Precision())

	q := fixed.MustQuantity("2.5", 8)
	assert.Equal(t, uint64(250000000), q.Units())
}

func TestPriceOutOfRange(t *testing.T) {
	var oor *fixed.OutOfRangeError

	// 9.3e9 scaled by 1e9 exceeds int64
	_, err := fixed.PriceFromString("9300000000", 9)
	require.Error(t, err)
	assert.True(t, errors.As(err, &oor))

	_, err = fixed.PriceFromString("1.0", fixed.MaxPrecision+1)
	require.Error(t, err)
	assert.True(t, errors.As(err, &oor))
}

func TestQuantityRejectsNegative(t *testing.T) {
	var oor *fixed.OutOfRangeError

	_, err := fixed.QuantityFromString("-1", 0)
	require.Error(t, err)
	assert.True(t, errors.As(err, &oor))

	_, err = fixed.NewQuantity(decimal.NewFromFloat(-0.001), 3)
	require.Error(t, err)
	assert.True(t, errors.As(err, &oor))
}

func TestQuantityArithmetic(t *testing.T) {
	a := fixed.MustQuantity("5", 0)
	b := fixed.MustQuantity("3", 0)

	assert.Equal(t, uint64(8), a.Add(b).Units())
	assert.Equal(t, uint64(2), a.Sub(b).Units())
	assert.True(t, b.Equal(a.Min(b)))
	assert.True(t, fixed.ZeroQuantity(0).IsZero())
	assert.False(t, a.IsZero())

	assert.Panics(t, func() { b.Sub(a) }, "underflow must panic")
}

func TestPrecisionMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		fixed.MustPrice("1.00", 2).Cmp(fixed.MustPrice("1.000", 3))
	})
	assert.Panics(t, func() {
		fixed.MustQuantity("1", 0).Add(fixed.MustQuantity("1.0", 1))
	})
}

func TestRescale(t *testing.T) {
	p := fixed.MustPrice("101.25", 2)

	wide, err := p.Rescale(5)
	require.NoError(t, err)
	assert.Equal(t, int64(10125000), wide.Units())
	assert.Equal(t, 0, wide.Cmp(fixed.MustPrice("101.25", 5)))

	back, err := wide.Rescale(2)
	require.NoError(t, err)
	assert.True(t, back.Equal(p))

	// narrowing that drops digits is rejected
	_, err = p.Rescale(1)
	require.Error(t, err)

	q := fixed.MustQuantity("2.50", 2)
	narrow, err := q.Rescale(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), narrow.Units())
}

func TestCmpOrdering(t *testing.T) {
	low := fixed.MustPrice("100.00", 2)
	high := fixed.MustPrice("100.01", 2)

	assert.Equal(t, -1, low.Cmp(high))
	assert.Equal(t, 1, high.Cmp(low))
	assert.Equal(t, 0, low.Cmp(fixed.MustPrice("100", 2)))
	assert.True(t, high.IsPositive())
	assert.False(t, fixed.PriceFromUnits(-5, 2).IsPositive())
}
