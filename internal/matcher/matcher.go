package matcher

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"NFTSentinel/internal/model"
)

// RateLookup returns the multiplicative rate converting one unit of from into to.
type RateLookup interface {
	Rate(ctx context.Context, from, to model.Currency) (decimal.Decimal, error)
}

// RateFunc adapts a plain function to RateLookup.
type RateFunc func(ctx context.Context, from, to model.Currency) (decimal.Decimal, error)

func (f RateFunc) Rate(ctx context.Context, from, to model.Currency) (decimal.Decimal, error) {
	return f(ctx, from, to)
}

// Evaluate decides whether quote crosses alert's threshold. Comparisons are
// inclusive. When the quote is in another currency the price is converted
// with rates; if no usable rate exists Evaluate returns false together with an
// error wrapping model.ErrConversionUnavailable.
func Evaluate(ctx context.Context, alert model.PriceAlert, quote model.Quote, rates RateLookup) (bool, error) {
	price, err := convert(ctx, quote, alert.Currency, rates)
	if err != nil {
		return false, err
	}

	switch alert.ThresholdType {
	case model.ThresholdBelow:
		return price.LessThanOrEqual(alert.ThresholdPrice), nil
	case model.ThresholdAbove:
		return price.GreaterThanOrEqual(alert.ThresholdPrice), nil
	default:
		return false, fmt.Errorf("alert %d: unknown threshold type %q", alert.ID, alert.ThresholdType)
	}
}

func convert(ctx context.Context, quote model.Quote, target model.Currency, rates RateLookup) (decimal.Decimal, error) {
	if quote.Currency == target {
		return quote.Price, nil
	}
	if rates == nil {
		return decimal.Zero, fmt.Errorf("%s->%s: no rate source: %w", quote.Currency, target, model.ErrConversionUnavailable)
	}
	rate, err := rates.Rate(ctx, quote.Currency, target)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s->%s: %v: %w", quote.Currency, target, err, model.ErrConversionUnavailable)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s->%s: non-positive rate %s: %w", quote.Currency, target, rate, model.ErrConversionUnavailable)
	}
	return quote.Price.Mul(rate), nil
}
