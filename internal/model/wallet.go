package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BuyRequest is a simulated NFT purchase.
type BuyRequest struct {
	UserID         string
	CollectionName string
	Price          decimal.Decimal
	Currency       Currency
	Quantity       int
	TriggerPrice   *decimal.Decimal
	PurchasePrice  *decimal.Decimal
	PreviousPrice  *decimal.Decimal
}

// BuyResult reports the outcome of a purchase. Error is set when Success is false.
type BuyResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Holding is one NFT owned by a simulated wallet.
type Holding struct {
	Name           string          `json:"name"`
	CollectionName string          `json:"collectionName"`
	TokenID        int             `json:"tokenId"`
	Price          decimal.Decimal `json:"price"`
	Currency       Currency        `json:"currency"`
	AcquiredAt     time.Time       `json:"acquiredAt"`
}

// Transaction is one entry in a simulated wallet's ledger.
type Transaction struct {
	ID             string           `json:"id"`
	Type           string           `json:"type"`
	CollectionName string           `json:"collectionName"`
	Quantity       int              `json:"quantity"`
	Price          decimal.Decimal  `json:"price"`
	Currency       Currency         `json:"currency"`
	Total          decimal.Decimal  `json:"total"`
	TriggerPrice   *decimal.Decimal `json:"triggerPrice,omitempty"`
	PurchasePrice  *decimal.Decimal `json:"purchasePrice,omitempty"`
	PreviousPrice  *decimal.Decimal `json:"previousPrice,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// WalletState is the persisted form of one user's simulated wallet.
type WalletState struct {
	UserID       string                       `json:"userId"`
	Address      string                       `json:"address"`
	Balances     map[Currency]decimal.Decimal `json:"balances"`
	Holdings     []Holding                    `json:"holdings"`
	Transactions []Transaction                `json:"transactions"`
	UpdatedAt    time.Time                    `json:"updatedAt"`
}
