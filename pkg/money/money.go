package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is an exact amount in the minor currency unit. Totals are never
// summed as floating point.
type Cents int64

// MaxSplitWays bounds even splits; anything beyond this is operator error.
const MaxSplitWays = 50

var hundred = decimal.NewFromInt(100)

// Decimal returns the amount in major units (dollars) as an exact decimal.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Div(hundred)
}

// String formats the amount in major units, e.g. "28.00".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// FromDecimal converts a major-unit decimal to cents, rounding half away
// from zero to the nearest cent.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Mul(hundred).Round(0).IntPart())
}

// Percent applies pct (e.g. 10.5 for 10.5%) to amount, rounding half away
// from zero to the nearest cent.
func Percent(amount Cents, pct decimal.Decimal) Cents {
	return Cents(decimal.NewFromInt(int64(amount)).Mul(pct).Div(hundred).Round(0).IntPart())
}

// PercentBPS applies a basis-point rate (100 bps = 1%) to amount.
func PercentBPS(amount Cents, bps int) Cents {
	if bps == 0 || amount == 0 {
		return 0
	}
	return Cents(decimal.NewFromInt(int64(amount)).Mul(decimal.NewFromInt(int64(bps))).Div(decimal.NewFromInt(10000)).Round(0).IntPart())
}

// ClampFixedDiscount caps a fixed discount so the discounted subtotal never
// goes negative.
func ClampFixedDiscount(subtotal, discount Cents) Cents {
	if discount < 0 {
		return 0
	}
	if discount > subtotal {
		return subtotal
	}
	return discount
}

// SplitEven divides total into n shares that sum to total exactly. The
// rounding remainder is assigned to the first share.
func SplitEven(total Cents, n int) ([]Cents, error) {
	if n < 1 || n > MaxSplitWays {
		return nil, fmt.Errorf("split ways must be between 1 and %d, got %d", MaxSplitWays, n)
	}
	if total < 0 {
		return nil, fmt.Errorf("cannot split negative total %d", total)
	}

	base := decimal.NewFromInt(int64(total)).
		Div(decimal.NewFromInt(int64(n))).
		Floor().
		IntPart()
	remainder := int64(total) - base*int64(n)

	shares := make([]Cents, n)
	for i := range shares {
		shares[i] = Cents(base)
	}
	shares[0] += Cents(remainder)
	return shares, nil
}

// Sum adds amounts without intermediate conversion.
func Sum(amounts ...Cents) Cents {
	var total Cents
	for _, a := range amounts {
		total += a
	}
	return total
}
