package wallet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"NFTSentinel/internal/model"
)

// TxBuyNFT is the transaction type recorded for purchases.
const TxBuyNFT = "buy_nft"

// DefaultBalances are credited to a wallet when it is first used.
var DefaultBalances = map[model.Currency]decimal.Decimal{
	model.CurrencyETH:  decimal.NewFromInt(10),
	model.CurrencyUSD:  decimal.NewFromInt(10000),
	model.CurrencyAVAX: decimal.NewFromInt(100),
}

// Ledger manages simulated per-user wallets with concurrency safety.
// No real funds or chains are involved.
type Ledger struct {
	mu       sync.Mutex
	book     *Book
	filePath string
	log      *zap.Logger
	now      func() time.Time
}

// NewLedger creates a Ledger, loading existing wallets from filePath.
// An empty filePath keeps wallets in memory only.
func NewLedger(filePath string, log *zap.Logger) (*Ledger, error) {
	if log == nil {
		log = zap.NewNop()
	}
	book, err := LoadState(filePath)
	if err != nil {
		return nil, fmt.Errorf("load wallet state: %w", err)
	}
	return &Ledger{book: book, filePath: filePath, log: log, now: time.Now}, nil
}

// Wallet returns a copy of the user's wallet, creating it on first use.
func (l *Ledger) Wallet(_ context.Context, userID string) (model.WalletState, error) {
	if userID == "" {
		return model.WalletState{}, &model.ValidationError{Field: "userId", Reason: "is required"}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	w, created := l.walletLocked(userID)
	if created {
		l.save()
	}
	return cloneWallet(w), nil
}

// Buy purchases quantity NFTs of a collection at req.Price each. An
// unaffordable or malformed purchase is reported through BuyResult, not error.
func (l *Ledger) Buy(_ context.Context, req model.BuyRequest) (model.BuyResult, error) {
	if req.UserID == "" {
		return model.BuyResult{}, &model.ValidationError{Field: "userId", Reason: "is required"}
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	if !req.Currency.Supported() {
		return model.BuyResult{Error: fmt.Sprintf("Unsupported currency %q", req.Currency)}, nil
	}
	if !req.Price.IsPositive() {
		return model.BuyResult{Error: "Price must be positive"}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, _ := l.walletLocked(req.UserID)
	total := req.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
	balance := w.Balances[req.Currency]
	if balance.LessThan(total) {
		return model.BuyResult{
			Error: fmt.Sprintf("Insufficient %s balance. Required: %s, Available: %s", req.Currency, total, balance),
		}, nil
	}

	now := l.now()
	w.Balances[req.Currency] = balance.Sub(total)
	for i := 0; i < req.Quantity; i++ {
		tokenID := mrand.IntN(10000)
		w.Holdings = append(w.Holdings, model.Holding{
			Name:           fmt.Sprintf("%s #%d", req.CollectionName, tokenID),
			CollectionName: req.CollectionName,
			TokenID:        tokenID,
			Price:          req.Price,
			Currency:       req.Currency,
			AcquiredAt:     now,
		})
	}

	purchase := req.PurchasePrice
	if purchase == nil {
		purchase = &req.Price
	}
	tx := model.Transaction{
		ID:             uuid.NewString(),
		Type:           TxBuyNFT,
		CollectionName: req.CollectionName,
		Quantity:       req.Quantity,
		Price:          req.Price,
		Currency:       req.Currency,
		Total:          total,
		TriggerPrice:   req.TriggerPrice,
		PurchasePrice:  purchase,
		PreviousPrice:  req.PreviousPrice,
		Timestamp:      now,
	}
	w.Transactions = append(w.Transactions, tx)
	w.UpdatedAt = now
	l.save()

	l.log.Info("nft purchased",
		zap.String("user_id", req.UserID),
		zap.String("collection", req.CollectionName),
		zap.String("total", total.String()),
		zap.String("currency", string(req.Currency)),
		zap.String("tx_id", tx.ID))
	return model.BuyResult{Success: true, TransactionID: tx.ID}, nil
}

func (l *Ledger) walletLocked(userID string) (*model.WalletState, bool) {
	if w, ok := l.book.Wallets[userID]; ok {
		return w, false
	}
	w := &model.WalletState{
		UserID:    userID,
		Address:   randomAddress(),
		Balances:  make(map[model.Currency]decimal.Decimal, len(DefaultBalances)),
		UpdatedAt: l.now(),
	}
	for cur, amt := range DefaultBalances {
		w.Balances[cur] = amt
	}
	l.book.Wallets[userID] = w
	return w, true
}

func (l *Ledger) save() {
	if err := SaveState(l.filePath, l.book); err != nil {
		l.log.Error("failed to save wallet state", zap.String("path", l.filePath), zap.Error(err))
	}
}

func randomAddress() string {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		for i := range b {
			b[i] = byte(mrand.IntN(256))
		}
	}
	return "0x" + hex.EncodeToString(b)
}

func cloneWallet(w *model.WalletState) model.WalletState {
	out := *w
	out.Balances = make(map[model.Currency]decimal.Decimal, len(w.Balances))
	for k, v := range w.Balances {
		out.Balances[k] = v
	}
	out.Holdings = append([]model.Holding(nil), w.Holdings...)
	out.Transactions = append([]model.Transaction(nil), w.Transactions...)
	return out
}
