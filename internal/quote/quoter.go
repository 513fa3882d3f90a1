package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"NFTSentinel/internal/model"
)

// Quoter returns the current floor price of a collection.
type Quoter interface {
	Quote(ctx context.Context, collectionName string) (model.Quote, error)
	Name() string
}

var errRateLimited = errors.New("rate limited")

func newClient(baseURL, proxyURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if proxyURL != "" {
		c.SetProxy(proxyURL)
	}
	return c
}

// Slug turns a display name such as "Bored Ape Yacht Club" into the
// lowercase dash-separated identifier most NFT APIs use.
func Slug(collectionName string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(collectionName)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// checkStatus maps a provider response to an error wrapping model.ErrQuoteUnavailable.
func checkStatus(provider string, resp *resty.Response) error {
	switch {
	case resp.StatusCode() == 429:
		return fmt.Errorf("%s: %w: %w", provider, errRateLimited, model.ErrQuoteUnavailable)
	case resp.IsError():
		return fmt.Errorf("%s: status %d, body: %s: %w", provider, resp.StatusCode(), truncate(resp.String(), 200), model.ErrQuoteUnavailable)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func symbolCurrency(symbol string) (model.Currency, bool) {
	switch strings.ToUpper(strings.TrimSpace(symbol)) {
	case "ETH", "WETH":
		return model.CurrencyETH, true
	case "AVAX", "WAVAX":
		return model.CurrencyAVAX, true
	case "USD", "USDC", "USDT":
		return model.CurrencyUSD, true
	}
	return "", false
}
