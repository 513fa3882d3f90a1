package quote

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"NFTSentinel/internal/model"
)

// CoinGeckoQuoter reads NFT floor prices from the CoinGecko /nfts endpoint.
type CoinGeckoQuoter struct {
	APIKey string
	Client *resty.Client
}

// NewCoinGeckoQuoter creates a quoter with optional proxy support.
func NewCoinGeckoQuoter(baseURL, apiKey, proxyURL string, timeout time.Duration) *CoinGeckoQuoter {
	return &CoinGeckoQuoter{APIKey: apiKey, Client: newClient(baseURL, proxyURL, timeout)}
}

func (q *CoinGeckoQuoter) Name() string { return "coingecko" }

type cgNFT struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	ContractAddress      string `json:"contract_address"`
	NativeCurrencySymbol string `json:"native_currency_symbol"`
	FloorPrice           struct {
		NativeCurrency *decimal.Decimal `json:"native_currency"`
		USD            *decimal.Decimal `json:"usd"`
	} `json:"floor_price"`
}

// Quote prefers the native floor price (ETH or AVAX) and falls back to USD.
func (q *CoinGeckoQuoter) Quote(ctx context.Context, collectionName string) (model.Quote, error) {
	id := Slug(collectionName)
	if id == "" {
		return model.Quote{}, fmt.Errorf("coingecko: empty collection id: %w", model.ErrQuoteUnavailable)
	}

	var out cgNFT
	req := q.Client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out)
	if q.APIKey != "" {
		req.SetHeader("x-cg-demo-api-key", q.APIKey)
	}
	resp, err := req.Get("/nfts/{id}")
	if err != nil {
		return model.Quote{}, fmt.Errorf("coingecko: fetch %s: %v: %w", id, err, model.ErrQuoteUnavailable)
	}
	if err := checkStatus("coingecko", resp); err != nil {
		return model.Quote{}, err
	}

	quote := model.Quote{
		CollectionName:    collectionName,
		CollectionAddress: out.ContractAddress,
		Source:            q.Name(),
	}
	native, nativeOK := symbolCurrency(out.NativeCurrencySymbol)
	if out.NativeCurrencySymbol == "" {
		native, nativeOK = model.CurrencyETH, true
	}
	switch {
	case nativeOK && native != model.CurrencyUSD && out.FloorPrice.NativeCurrency != nil && out.FloorPrice.NativeCurrency.IsPositive():
		quote.Price = *out.FloorPrice.NativeCurrency
		quote.Currency = native
	case out.FloorPrice.USD != nil && out.FloorPrice.USD.IsPositive():
		quote.Price = *out.FloorPrice.USD
		quote.Currency = model.CurrencyUSD
	default:
		return model.Quote{}, fmt.Errorf("coingecko: no floor price for %s: %w", id, model.ErrQuoteUnavailable)
	}
	return quote, nil
}

// coinIDs maps supported currencies to CoinGecko coin ids.
var coinIDs = map[model.Currency]string{
	model.CurrencyETH:  "ethereum",
	model.CurrencyAVAX: "avalanche-2",
}

type usdPrice struct {
	value     decimal.Decimal
	fetchedAt time.Time
}

// CoinGeckoRates converts between supported currencies using CoinGecko USD
// spot prices. Prices are cached for TTL.
type CoinGeckoRates struct {
	APIKey string
	TTL    time.Duration
	Client *resty.Client

	mu    sync.Mutex
	cache map[model.Currency]usdPrice
	now   func() time.Time
}

// NewCoinGeckoRates creates a rate provider with optional proxy support.
func NewCoinGeckoRates(baseURL, apiKey, proxyURL string, ttl, timeout time.Duration) *CoinGeckoRates {
	return &CoinGeckoRates{
		APIKey: apiKey,
		TTL:    ttl,
		Client: newClient(baseURL, proxyURL, timeout),
		cache:  make(map[model.Currency]usdPrice),
		now:    time.Now,
	}
}

// Rate returns how many units of to one unit of from is worth.
func (r *CoinGeckoRates) Rate(ctx context.Context, from, to model.Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	fromUSD, err := r.usd(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	toUSD, err := r.usd(ctx, to)
	if err != nil {
		return decimal.Zero, err
	}
	if !toUSD.IsPositive() {
		return decimal.Zero, fmt.Errorf("rates: zero USD price for %s: %w", to, model.ErrConversionUnavailable)
	}
	return fromUSD.Div(toUSD), nil
}

func (r *CoinGeckoRates) usd(ctx context.Context, c model.Currency) (decimal.Decimal, error) {
	if c == model.CurrencyUSD {
		return decimal.NewFromInt(1), nil
	}
	if _, ok := coinIDs[c]; !ok {
		return decimal.Zero, fmt.Errorf("rates: unsupported currency %q: %w", c, model.ErrConversionUnavailable)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.cache[c]; ok && r.now().Sub(p.fetchedAt) < r.TTL {
		return p.value, nil
	}
	if err := r.refresh(ctx); err != nil {
		return decimal.Zero, err
	}
	p, ok := r.cache[c]
	if !ok {
		return decimal.Zero, fmt.Errorf("rates: no USD price for %s: %w", c, model.ErrConversionUnavailable)
	}
	return p.value, nil
}

func (r *CoinGeckoRates) refresh(ctx context.Context) error {
	ids := make([]string, 0, len(coinIDs))
	for _, cur := range []model.Currency{model.CurrencyETH, model.CurrencyAVAX} {
		ids = append(ids, coinIDs[cur])
	}

	var out map[string]map[string]decimal.Decimal
	req := r.Client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           strings.Join(ids, ","),
			"vs_currencies": "usd",
		}).
		SetResult(&out)
	if r.APIKey != "" {
		req.SetHeader("x-cg-demo-api-key", r.APIKey)
	}
	resp, err := req.Get("/simple/price")
	if err != nil {
		return fmt.Errorf("rates: fetch: %v: %w", err, model.ErrConversionUnavailable)
	}
	if resp.StatusCode() == 429 {
		return fmt.Errorf("rates: %w: %w", errRateLimited, model.ErrConversionUnavailable)
	}
	if resp.IsError() {
		return fmt.Errorf("rates: status %d: %w", resp.StatusCode(), model.ErrConversionUnavailable)
	}

	now := r.now()
	for cur, id := range coinIDs {
		if v, ok := out[id]["usd"]; ok && v.IsPositive() {
			r.cache[cur] = usdPrice{value: v, fetchedAt: now}
		}
	}
	return nil
}
