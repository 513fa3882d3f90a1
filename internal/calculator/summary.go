package calculator

import (
	"github.com/shopspring/decimal"

	"NFTSentinel/internal/model"
)

// Summary describes a window of price history in a single currency.
type Summary struct {
	Count         int             `json:"count"`
	Currency      model.Currency  `json:"currency,omitempty"`
	Latest        decimal.Decimal `json:"latest"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Average       decimal.Decimal `json:"average"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Position      decimal.Decimal `json:"position"`
}

// Summarize computes a Summary over newest-first history points. Only points
// quoted in the same currency as the newest one are included.
func Summarize(points []model.PriceHistoryPoint) Summary {
	if len(points) == 0 {
		return Summary{}
	}
	cur := points[0].Currency

	// oldest first
	prices := make([]decimal.Decimal, 0, len(points))
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Currency == cur {
			prices = append(prices, points[i].Price)
		}
	}

	s := Summary{Count: len(prices), Currency: cur, Latest: prices[len(prices)-1]}
	s.High, s.Low, _ = Range(prices)
	s.Average, _ = SMA(prices, len(prices))
	s.Position, _ = Position(s.Latest, s.High, s.Low)

	first := prices[0]
	s.Change = s.Latest.Sub(first)
	if !first.IsZero() {
		s.ChangePercent = s.Change.Div(first).Mul(decimal.NewFromInt(100)).Round(2)
	}
	s.Average = s.Average.Round(8)
	return s
}
