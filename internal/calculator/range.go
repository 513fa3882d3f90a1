package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Range returns the highest and lowest of prices.
func Range(prices []decimal.Decimal) (high, low decimal.Decimal, err error) {
	if len(prices) == 0 {
		return decimal.Zero, decimal.Zero, errors.New("no prices provided")
	}
	high, low = prices[0], prices[0]
	for _, p := range prices[1:] {
		if p.GreaterThan(high) {
			high = p
		}
		if p.LessThan(low) {
			low = p
		}
	}
	return high, low, nil
}

// Position returns where current sits within [low, high], clamped to 0..1.
func Position(current, high, low decimal.Decimal) (decimal.Decimal, error) {
	if high.Equal(low) {
		return decimal.NewFromFloat(0.5), nil
	}
	if high.LessThan(low) {
		return decimal.Zero, errors.New("high must be >= low")
	}
	pos := current.Sub(low).Div(high.Sub(low))
	if pos.IsNegative() {
		pos = decimal.Zero
	}
	if pos.GreaterThan(decimal.NewFromInt(1)) {
		pos = decimal.NewFromInt(1)
	}
	return pos, nil
}
