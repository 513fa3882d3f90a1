package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"NFTSentinel/internal/model"
	"NFTSentinel/internal/store"
)

// WalletLedger executes simulated purchases.
type WalletLedger interface {
	Buy(ctx context.Context, req model.BuyRequest) (model.BuyResult, error)
}

// Pusher delivers a trigger to an outside channel such as a chat or a browser.
type Pusher interface {
	Push(ctx context.Context, t model.Trigger) error
	Name() string
}

// Sink records triggered alerts and runs their auto-buy.
type Sink struct {
	Store   store.AlertStore
	Recent  RecentStore
	Wallet  WalletLedger
	Pushers []Pusher
	Log     *zap.Logger

	now func() time.Time
}

func NewSink(st store.AlertStore, recent RecentStore, wallet WalletLedger, log *zap.Logger, pushers ...Pusher) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	if recent == nil {
		recent = NewMemoryRecent(DefaultRecentLimit)
	}
	return &Sink{Store: st, Recent: recent, Wallet: wallet, Pushers: pushers, Log: log, now: time.Now}
}

// Emit persists a notification for a triggered alert, mirrors it into the
// recent buffer, attempts the alert's auto-buy, and fans it out to pushers.
// Failures are joined into the returned error; none of them undo the trigger.
func (s *Sink) Emit(ctx context.Context, alert model.PriceAlert, q model.Quote) (model.Trigger, error) {
	log := s.Log.With(zap.Int64("alert_id", alert.ID), zap.String("user_id", alert.UserID))

	n := model.Notification{
		AlertID:         alert.ID,
		UserID:          alert.UserID,
		CollectionName:  alert.CollectionName,
		ThresholdPrice:  alert.ThresholdPrice,
		ThresholdType:   alert.ThresholdType,
		Currency:        alert.Currency,
		CurrentPrice:    q.Price,
		CurrentCurrency: q.Currency,
		Message:         FormatMessage(alert, q),
		TriggeredAt:     s.now(),
	}

	var errs []error
	if id, err := s.Store.AddNotification(ctx, n); err != nil {
		log.Error("persist notification", zap.Error(err))
		errs = append(errs, err)
	} else {
		n.ID = id
	}

	if err := s.Recent.Push(ctx, n); err != nil {
		log.Warn("push recent notification", zap.Error(err))
	}

	t := model.Trigger{Alert: alert, Quote: q, Notification: n}
	if alert.WantsAutoBuy() {
		res, err := s.autoBuy(ctx, alert, q)
		t.Purchase = res
		if err != nil {
			log.Warn("auto-buy failed", zap.Error(err))
			errs = append(errs, err)
		} else {
			log.Info("auto-buy executed", zap.String("tx_id", res.TransactionID))
		}
	}

	for _, p := range s.Pushers {
		if err := p.Push(ctx, t); err != nil {
			log.Warn("push notification", zap.String("pusher", p.Name()), zap.Error(err))
		}
	}

	return t, errors.Join(errs...)
}

// autoBuy buys at the alert's own auto-buy price, not the triggering quote.
func (s *Sink) autoBuy(ctx context.Context, alert model.PriceAlert, q model.Quote) (*model.BuyResult, error) {
	if s.Wallet == nil {
		return nil, &model.AutoBuyError{AlertID: alert.ID, Err: errors.New("no wallet ledger configured")}
	}

	threshold := alert.ThresholdPrice
	purchase := *alert.AutoBuyPrice
	previous := q.Price
	res, err := s.Wallet.Buy(ctx, model.BuyRequest{
		UserID:         alert.UserID,
		CollectionName: alert.CollectionName,
		Price:          purchase,
		Currency:       *alert.AutoBuyCurrency,
		Quantity:       1,
		TriggerPrice:   &threshold,
		PurchasePrice:  &purchase,
		PreviousPrice:  &previous,
	})
	if err != nil {
		return nil, &model.AutoBuyError{AlertID: alert.ID, Err: err}
	}
	if !res.Success {
		return &res, &model.AutoBuyError{AlertID: alert.ID, Err: fmt.Errorf("purchase rejected: %s", res.Error)}
	}
	return &res, nil
}
