package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is a supported pricing unit.
type Currency string

const (
	CurrencyETH  Currency = "ETH"
	CurrencyUSD  Currency = "USD"
	CurrencyAVAX Currency = "AVAX"
)

// Supported reports whether c is one of ETH, USD or AVAX.
func (c Currency) Supported() bool {
	switch c {
	case CurrencyETH, CurrencyUSD, CurrencyAVAX:
		return true
	}
	return false
}

// ParseCurrency normalizes user input such as "eth" to a Currency.
func ParseCurrency(s string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(s)))
}

// ThresholdType selects the crossing direction of an alert.
type ThresholdType string

const (
	ThresholdBelow ThresholdType = "below"
	ThresholdAbove ThresholdType = "above"
)

func (t ThresholdType) Valid() bool {
	return t == ThresholdBelow || t == ThresholdAbove
}

// PriceAlert is a single-shot request to be told when a collection crosses a price.
type PriceAlert struct {
	ID                int64            `json:"id"`
	UserID            string           `json:"userId"`
	CollectionName    string           `json:"collectionName"`
	CollectionAddress string           `json:"collectionAddress,omitempty"`
	ThresholdPrice    decimal.Decimal  `json:"thresholdPrice"`
	ThresholdType     ThresholdType    `json:"thresholdType"`
	Currency          Currency         `json:"currency"`
	IsActive          bool             `json:"isActive"`
	AutoBuy           bool             `json:"autoBuy"`
	AutoBuyPrice      *decimal.Decimal `json:"autoBuyPrice,omitempty"`
	AutoBuyCurrency   *Currency        `json:"autoBuyCurrency,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	TriggeredAt       *time.Time       `json:"triggeredAt,omitempty"`
	LastCheckedAt     *time.Time       `json:"lastCheckedAt,omitempty"`
}

// Validate checks creation input. It returns a *ValidationError naming the first bad field.
func (a *PriceAlert) Validate() error {
	if strings.TrimSpace(a.UserID) == "" {
		return &ValidationError{Field: "userId", Reason: "is required"}
	}
	if strings.TrimSpace(a.CollectionName) == "" {
		return &ValidationError{Field: "collectionName", Reason: "is required"}
	}
	if !a.ThresholdPrice.IsPositive() {
		return &ValidationError{Field: "thresholdPrice", Reason: "must be positive"}
	}
	if !a.ThresholdType.Valid() {
		return &ValidationError{Field: "thresholdType", Reason: `must be "below" or "above"`}
	}
	if !a.Currency.Supported() {
		return &ValidationError{Field: "currency", Reason: "must be ETH, USD, or AVAX"}
	}
	if !a.AutoBuy {
		return nil
	}
	if a.AutoBuyPrice == nil {
		return &ValidationError{Field: "autoBuyPrice", Reason: "is required when autoBuy is set"}
	}
	if a.AutoBuyCurrency == nil {
		return &ValidationError{Field: "autoBuyCurrency", Reason: "is required when autoBuy is set"}
	}
	if !a.AutoBuyPrice.IsPositive() {
		return &ValidationError{Field: "autoBuyPrice", Reason: "must be positive"}
	}
	if !a.AutoBuyCurrency.Supported() {
		return &ValidationError{Field: "autoBuyCurrency", Reason: "must be ETH, USD, or AVAX"}
	}
	return nil
}

// WantsAutoBuy is true only when auto-buy is enabled and fully specified.
func (a *PriceAlert) WantsAutoBuy() bool {
	return a.AutoBuy && a.AutoBuyPrice != nil && a.AutoBuyCurrency != nil
}

// Quote is one price observation for a collection.
type Quote struct {
	CollectionName    string          `json:"collectionName"`
	CollectionAddress string          `json:"collectionAddress,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Currency          Currency        `json:"currency"`
	Source            string          `json:"source"`
}

// PriceHistoryPoint is an append-only record of a quote.
type PriceHistoryPoint struct {
	ID                int64           `json:"id"`
	CollectionName    string          `json:"collectionName"`
	CollectionAddress string          `json:"collectionAddress,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Currency          Currency        `json:"currency"`
	Timestamp         time.Time       `json:"timestamp"`
	Source            string          `json:"source"`
}

// Notification records one successful trigger.
type Notification struct {
	ID              int64           `json:"id"`
	AlertID         int64           `json:"alertId"`
	UserID          string          `json:"userId"`
	CollectionName  string          `json:"collectionName"`
	ThresholdPrice  decimal.Decimal `json:"thresholdPrice"`
	ThresholdType   ThresholdType   `json:"thresholdType"`
	Currency        Currency        `json:"currency"`
	CurrentPrice    decimal.Decimal `json:"currentPrice"`
	CurrentCurrency Currency        `json:"currentCurrency"`
	Message         string          `json:"message"`
	TriggeredAt     time.Time       `json:"triggeredAt"`
}

// Trigger is the outcome of emitting one triggered alert.
type Trigger struct {
	Alert        PriceAlert   `json:"alert"`
	Quote        Quote        `json:"quote"`
	Notification Notification `json:"notification"`
	Purchase     *BuyResult   `json:"purchase,omitempty"`
}
