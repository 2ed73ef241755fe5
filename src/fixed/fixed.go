// Package fixed provides scaled-integer price and quantity types.
//
// Values are stored as integer units at a declared decimal precision
// (units = decimal_value * 10^precision), so comparisons and accumulation in
// the matching path are plain integer arithmetic with no binary floating
// point involved. Decimals only appear at the construction and display
// boundary.
package fixed

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxPrecision is the largest supported number of decimal digits. At nine
// digits an int64 still holds price magnitudes up to about 9.2 billion whole
// units.
const MaxPrecision = 9

var pow10 = [MaxPrecision + 1]int64{
	1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000, 100_000_000, 1_000_000_000,
}

// OutOfRangeError reports a decimal value that cannot be represented at the
// requested precision, including negative input for Quantity.
type OutOfRangeError struct {
	Value     string
	Precision uint8
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("value %s not representable at precision %d", e.Value, e.Precision)
}

// PrecisionMismatchError reports arithmetic or comparison between values of
// different precisions. Callers must Rescale explicitly first.
type PrecisionMismatchError struct {
	A uint8
	B uint8
}

func (e *PrecisionMismatchError) Error() string {
	return fmt.Sprintf("precision mismatch: %d vs %d", e.A, e.B)
}

// Price is a signed fixed-point price.
type Price struct {
	units     int64
	precision uint8
}

// NewPrice rounds d half away from zero to the given precision and scales it
// into integer units.
func NewPrice(d decimal.Decimal, precision uint8) (Price, error) {
	units, err := scale(d, precision)
	if err != nil {
		return Price{}, err
	}
	return Price{units: units, precision: precision}, nil
}

// PriceFromString parses a decimal string at the given precision.
func PriceFromString(s string, precision uint8) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, err
	}
	return NewPrice(d, precision)
}

// PriceFromFloat converts a float at the given precision.
func PriceFromFloat(f float64, precision uint8) (Price, error) {
	return NewPrice(decimal.NewFromFloat(f), precision)
}

// PriceFromUnits builds a Price directly from scaled units.
func PriceFromUnits(units int64, precision uint8) Price {
	if precision > MaxPrecision {
		panic(&OutOfRangeError{Value: fmt.Sprintf("%d units", units), Precision: precision})
	}
	return Price{units: units, precision: precision}
}

// MustPrice is PriceFromString that panics on error, for fixtures and tests.
func MustPrice(s string, precision uint8) Price {
	p, err := PriceFromString(s, precision)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Price) Units() int64     { return p.units }
func (p Price) Precision() uint8 { return p.precision }
func (p Price) IsPositive() bool { return p.units > 0 }

// Decimal is the exact inverse of NewPrice for any value it produced.
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(p.units, -int32(p.precision))
}

func (p Price) String() string {
	return p.Decimal().StringFixed(int32(p.precision))
}

// Cmp compares two prices of the same precision, returning -1, 0 or 1.
// Mismatched precisions are a caller bug and panic; use Rescale first.
func (p Price) Cmp(o Price) int {
	if p.precision != o.precision {
		panic(&PrecisionMismatchError{A: p.precision, B: o.precision})
	}
	switch {
	case p.units < o.units:
		return -1
	case p.units > o.units:
		return 1
	default:
		return 0
	}
}

func (p Price) Equal(o Price) bool {
	return p.precision == o.precision && p.units == o.units
}

// Rescale converts to another precision. Widening is exact; narrowing fails
// if digits would be dropped, and any direction fails on int64 overflow.
func (p Price) Rescale(precision uint8) (Price, error) {
	units, err := rescaleSigned(p.units, p.precision, precision)
	if err != nil {
		return Price{}, err
	}
	return Price{units: units, precision: precision}, nil
}

// Quantity is an unsigned fixed-point size. Zero is the terminal state of a
// fully filled order; constructors reject negative input.
type Quantity struct {
	units     uint64
	precision uint8
}

// NewQuantity rounds d half away from zero to the given precision and scales
// it into integer units. Negative input is out of range.
func NewQuantity(d decimal.Decimal, precision uint8) (Quantity, error) {
	if d.IsNegative() {
		return Quantity{}, &OutOfRangeError{Value: d.String(), Precision: precision}
	}
	units, err := scale(d, precision)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{units: uint64(units), precision: precision}, nil
}

// QuantityFromString parses a decimal string at the given precision.
func QuantityFromString(s string, precision uint8) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{}, err
	}
	return NewQuantity(d, precision)
}

// QuantityFromUnits builds a Quantity directly from scaled units.
func QuantityFromUnits(units uint64, precision uint8) Quantity {
	if precision > MaxPrecision {
		panic(&OutOfRangeError{Value: fmt.Sprintf("%d units", units), Precision: precision})
	}
	return Quantity{units: units, precision: precision}
}

// ZeroQuantity is the zero value at a given precision.
func ZeroQuantity(precision uint8) Quantity {
	return Quantity{precision: precision}
}

// MustQuantity is QuantityFromString that panics on error, for fixtures and
// tests.
func MustQuantity(s string, precision uint8) Quantity {
	q, err := QuantityFromString(s, precision)
	if err != nil {
		panic(err)
	}
	return q
}

func (q Quantity) Units() uint64    { return q.units }
func (q Quantity) Precision() uint8 { return q.precision }
func (q Quantity) IsZero() bool     { return q.units == 0 }

// Decimal is the exact inverse of NewQuantity for any value it produced.
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.New(int64(q.units), -int32(q.precision))
}

func (q Quantity) String() string {
	return q.Decimal().StringFixed(int32(q.precision))
}

// Cmp compares two quantities of the same precision, returning -1, 0 or 1.
// Mismatched precisions panic; use Rescale first.
func (q Quantity) Cmp(o Quantity) int {
	if q.precision != o.precision {
		panic(&PrecisionMismatchError{A: q.precision, B: o.precision})
	}
	switch {
	case q.units < o.units:
		return -1
	case q.units > o.units:
		return 1
	default:
		return 0
	}
}

func (q Quantity) Equal(o Quantity) bool {
	return q.precision == o.precision && q.units == o.units
}

// Add returns q + o. Precisions must match.
func (q Quantity) Add(o Quantity) Quantity {
	if q.precision != o.precision {
		panic(&PrecisionMismatchError{A: q.precision, B: o.precision})
	}
	return Quantity{units: q.units + o.units, precision: q.precision}
}

// Sub returns q - o. Underflow means a quantity-conservation bug upstream
// and panics.
func (q Quantity) Sub(o Quantity) Quantity {
	if q.precision != o.precision {
		panic(&PrecisionMismatchError{A: q.precision, B: o.precision})
	}
	if o.units > q.units {
		panic(fmt.Sprintf("quantity underflow: %d - %d", q.units, o.units))
	}
	return Quantity{units: q.units - o.units, precision: q.precision}
}

// Min returns the smaller of q and o.
func (q Quantity) Min(o Quantity) Quantity {
	if q.Cmp(o) <= 0 {
		return q
	}
	return o
}

// Rescale converts to another precision. Widening is exact; narrowing fails
// if digits would be dropped.
func (q Quantity) Rescale(precision uint8) (Quantity, error) {
	units, err := rescaleSigned(int64(q.units), q.precision, precision)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{units: uint64(units), precision: precision}, nil
}

func scale(d decimal.Decimal, precision uint8) (int64, error) {
	if precision > MaxPrecision {
		return 0, &OutOfRangeError{Value: d.String(), Precision: precision}
	}
	// decimal.Round is half away from zero, the venue-standard tie rule.
	scaled := d.Round(int32(precision)).Shift(int32(precision))
	units := scaled.BigInt()
	if !units.IsInt64() {
		return 0, &OutOfRangeError{Value: d.String(), Precision: precision}
	}
	return units.Int64(), nil
}

func rescaleSigned(units int64, from, to uint8) (int64, error) {
	if to > MaxPrecision {
		return 0, &OutOfRangeError{Value: fmt.Sprintf("%d units", units), Precision: to}
	}
	if from == to {
		return units, nil
	}
	if to > from {
		factor := pow10[to-from]
		scaled := units * factor
		if scaled/factor != units {
			return 0, &OutOfRangeError{Value: fmt.Sprintf("%d units", units), Precision: to}
		}
		return scaled, nil
	}
	factor := pow10[from-to]
	if units%factor != 0 {
		return 0, fmt.Errorf("rescale from precision %d to %d drops digits: %w",
			from, to, &OutOfRangeError{Value: fmt.Sprintf("%d units", units), Precision: to})
	}
	return units / factor, nil
}
