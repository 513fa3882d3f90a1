package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"NFTSentinel/internal/model"
)

// OpenSeaQuoter reads floor prices from the OpenSea v2 collection stats API.
type OpenSeaQuoter struct {
	APIKey string
	Client *resty.Client
}

// NewOpenSeaQuoter creates a quoter with optional proxy support.
func NewOpenSeaQuoter(baseURL, apiKey, proxyURL string, timeout time.Duration) *OpenSeaQuoter {
	return &OpenSeaQuoter{APIKey: apiKey, Client: newClient(baseURL, proxyURL, timeout)}
}

func (q *OpenSeaQuoter) Name() string { return "opensea" }

type osStats struct {
	Total struct {
		FloorPrice       *decimal.Decimal `json:"floor_price"`
		FloorPriceSymbol string           `json:"floor_price_symbol"`
	} `json:"total"`
}

func (q *OpenSeaQuoter) Quote(ctx context.Context, collectionName string) (model.Quote, error) {
	if q.APIKey == "" {
		return model.Quote{}, fmt.Errorf("opensea: api key not configured: %w", model.ErrQuoteUnavailable)
	}
	slug := Slug(collectionName)
	if slug == "" {
		return model.Quote{}, fmt.Errorf("opensea: empty collection slug: %w", model.ErrQuoteUnavailable)
	}

	var out osStats
	resp, err := q.Client.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", q.APIKey).
		SetPathParam("slug", slug).
		SetResult(&out).
		Get("/api/v2/collections/{slug}/stats")
	if err != nil {
		return model.Quote{}, fmt.Errorf("opensea: fetch %s: %v: %w", slug, err, model.ErrQuoteUnavailable)
	}
	if err := checkStatus("opensea", resp); err != nil {
		return model.Quote{}, err
	}

	if out.Total.FloorPrice == nil || !out.Total.FloorPrice.IsPositive() {
		return model.Quote{}, fmt.Errorf("opensea: no floor price for %s: %w", slug, model.ErrQuoteUnavailable)
	}
	currency := model.CurrencyETH
	if out.Total.FloorPriceSymbol != "" {
		c, ok := symbolCurrency(out.Total.FloorPriceSymbol)
		if !ok {
			return model.Quote{}, fmt.Errorf("opensea: unsupported floor currency %q: %w", out.Total.FloorPriceSymbol, model.ErrQuoteUnavailable)
		}
		currency = c
	}
	return model.Quote{
		CollectionName: collectionName,
		Price:          *out.Total.FloorPrice,
		Currency:       currency,
		Source:         q.Name(),
	}, nil
}
