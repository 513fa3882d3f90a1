package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

// SMA computes the simple moving average of the last period prices.
// Prices are ordered oldest first.
func SMA(prices []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 {
		return decimal.Zero, errors.New("period must be positive")
	}
	if len(prices) < period {
		return decimal.Zero, errors.New("not enough data for SMA calculation")
	}
	sum := decimal.Zero
	for i := len(prices) - period; i < len(prices); i++ {
		sum = sum.Add(prices[i])
	}
	return sum.Div(decimal.NewFromInt(int64(period))), nil
}
