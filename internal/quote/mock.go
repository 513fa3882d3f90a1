package quote

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"NFTSentinel/internal/model"
)

// MockQuoter returns controllable fixed quotes for development and testing.
// Each collection plays back its scripted prices in order and then repeats the
// last one.
type MockQuoter struct {
	mu       sync.Mutex
	currency model.Currency
	prices   map[string][]decimal.Decimal
	errs     map[string]error
	calls    map[string]int
}

func NewMockQuoter(currency model.Currency) *MockQuoter {
	return &MockQuoter{
		currency: currency,
		prices:   make(map[string][]decimal.Decimal),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (m *MockQuoter) Name() string { return "mock" }

// Script sets the price sequence returned for a collection.
func (m *MockQuoter) Script(collectionName string, prices ...decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[collectionName] = prices
	delete(m.errs, collectionName)
}

// Fail makes every quote for a collection return err.
func (m *MockQuoter) Fail(collectionName string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[collectionName] = err
}

// Calls reports how many quotes were requested for a collection.
func (m *MockQuoter) Calls(collectionName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[collectionName]
}

func (m *MockQuoter) Quote(ctx context.Context, collectionName string) (model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.calls[collectionName]
	m.calls[collectionName] = n + 1

	if err := ctx.Err(); err != nil {
		return model.Quote{}, fmt.Errorf("mock: %v: %w", err, model.ErrQuoteUnavailable)
	}
	if err, ok := m.errs[collectionName]; ok {
		return model.Quote{}, err
	}
	prices := m.prices[collectionName]
	if len(prices) == 0 {
		return model.Quote{}, fmt.Errorf("mock: no price for %q: %w", collectionName, model.ErrQuoteUnavailable)
	}
	if n >= len(prices) {
		n = len(prices) - 1
	}
	return model.Quote{
		CollectionName: collectionName,
		Price:          prices[n],
		Currency:       m.currency,
		Source:         m.Name(),
	}, nil
}
