package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"NFTSentinel/internal/calculator"
	"NFTSentinel/internal/model"
	"NFTSentinel/internal/monitor"
	"NFTSentinel/internal/notifier"
	"NFTSentinel/internal/store"
)

// SourceEmulation tags prices injected through EmulatePrice.
const SourceEmulation = "emulation_demo"

const durableNotificationLimit = 20

// Wallets exposes read access to simulated wallets.
type Wallets interface {
	Wallet(ctx context.Context, userID string) (model.WalletState, error)
}

// AlertService is the host-facing API over the alert store and monitoring loop.
type AlertService struct {
	Store    store.AlertStore
	Monitor  *monitor.Monitor
	Recent   notifier.RecentStore
	Wallets  Wallets
	Interval time.Duration
	Log      *zap.Logger
}

func New(st store.AlertStore, mon *monitor.Monitor, recent notifier.RecentStore, wallets Wallets, interval time.Duration, log *zap.Logger) *AlertService {
	if log == nil {
		log = zap.NewNop()
	}
	if recent == nil {
		recent = notifier.NewMemoryRecent(notifier.DefaultRecentLimit)
	}
	return &AlertService{
		Store:    st,
		Monitor:  mon,
		Recent:   recent,
		Wallets:  wallets,
		Interval: interval,
		Log:      log,
	}
}

// CreateAlertRequest is user input for a new alert. Enum fields are matched
// case-insensitively.
type CreateAlertRequest struct {
	UserID            string           `json:"userId"`
	CollectionName    string           `json:"collectionName"`
	CollectionAddress string           `json:"collectionAddress,omitempty"`
	ThresholdPrice    decimal.Decimal  `json:"thresholdPrice"`
	ThresholdType     string           `json:"thresholdType"`
	Currency          string           `json:"currency"`
	AutoBuy           bool             `json:"autoBuy,omitempty"`
	AutoBuyPrice      *decimal.Decimal `json:"autoBuyPrice,omitempty"`
	AutoBuyCurrency   string           `json:"autoBuyCurrency,omitempty"`
}

func (r CreateAlertRequest) toAlert() model.PriceAlert {
	a := model.PriceAlert{
		UserID:            strings.TrimSpace(r.UserID),
		CollectionName:    strings.TrimSpace(r.CollectionName),
		CollectionAddress: strings.TrimSpace(r.CollectionAddress),
		ThresholdPrice:    r.ThresholdPrice,
		ThresholdType:     model.ThresholdType(strings.ToLower(strings.TrimSpace(r.ThresholdType))),
		Currency:          model.ParseCurrency(r.Currency),
		AutoBuy:           r.AutoBuy,
	}
	if r.AutoBuy {
		a.AutoBuyPrice = r.AutoBuyPrice
		if r.AutoBuyCurrency != "" {
			c := model.ParseCurrency(r.AutoBuyCurrency)
			a.AutoBuyCurrency = &c
		}
	}
	return a
}

type CreateAlertResult struct {
	AlertID int64            `json:"alertId"`
	Message string           `json:"message"`
	AutoBuy bool             `json:"autoBuy"`
	Alert   model.PriceAlert `json:"alert"`
}

// CreateAlert validates and stores a new active alert.
func (s *AlertService) CreateAlert(ctx context.Context, req CreateAlertRequest) (*CreateAlertResult, error) {
	a := req.toAlert()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	id, err := s.Store.AddAlert(ctx, a)
	if err != nil {
		return nil, err
	}
	stored, err := s.Store.GetAlert(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload alert %d: %w", id, err)
	}

	var msg string
	if stored.AutoBuy {
		msg = fmt.Sprintf("Auto-buy alert created: Buy %s when %s %s %s", stored.CollectionName, stored.ThresholdType, stored.ThresholdPrice, stored.Currency)
	} else {
		msg = fmt.Sprintf("Price alert created: Notify when %s %s %s %s", stored.CollectionName, stored.ThresholdType, stored.ThresholdPrice, stored.Currency)
	}
	s.Log.Info("alert created",
		zap.Int64("alert_id", id),
		zap.String("user_id", stored.UserID),
		zap.String("collection", stored.CollectionName))
	return &CreateAlertResult{AlertID: id, Message: msg, AutoBuy: stored.AutoBuy, Alert: *stored}, nil
}

// UserAlerts lists a user's active alerts, newest first.
func (s *AlertService) UserAlerts(ctx context.Context, userID string) ([]model.PriceAlert, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &model.ValidationError{Field: "userId", Reason: "is required"}
	}
	alerts, err := s.Store.GetUserAlerts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []model.PriceAlert{}
	}
	return alerts, nil
}

// UserNotifications merges the recent buffer with the latest durable
// notifications, newest first, one entry per alert.
func (s *AlertService) UserNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &model.ValidationError{Field: "userId", Reason: "is required"}
	}
	recent, err := s.Recent.List(ctx, userID)
	if err != nil {
		s.Log.Warn("read recent notifications", zap.String("user_id", userID), zap.Error(err))
	}
	durable, err := s.Store.ListNotifications(ctx, userID, durableNotificationLimit)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(recent)+len(durable))
	out := make([]model.Notification, 0, len(recent)+len(durable))
	for _, list := range [][]model.Notification{recent, durable} {
		for _, n := range list {
			if seen[n.AlertID] {
				continue
			}
			seen[n.AlertID] = true
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	return out, nil
}

// DeleteAlert removes an alert regardless of its state.
func (s *AlertService) DeleteAlert(ctx context.Context, alertID int64) error {
	if _, err := s.Store.GetAlert(ctx, alertID); err != nil {
		return err
	}
	if err := s.Store.DeleteAlert(ctx, alertID); err != nil {
		return err
	}
	s.Log.Info("alert deleted", zap.Int64("alert_id", alertID))
	return nil
}

// MonitoringStatus reports the loop state and the number of active alerts.
type MonitoringStatus struct {
	monitor.Status
	ActiveAlerts int `json:"activeAlerts"`
}

func (s *AlertService) MonitoringStatus(ctx context.Context) (MonitoringStatus, error) {
	active, err := s.Store.GetActiveAlerts(ctx)
	if err != nil {
		return MonitoringStatus{}, err
	}
	return MonitoringStatus{Status: s.Monitor.Status(), ActiveAlerts: len(active)}, nil
}

func (s *AlertService) StartMonitoring() error {
	return s.Monitor.Start(s.Interval)
}

// StopMonitoring stops the timer and waits for an in-flight cycle or ctx.
func (s *AlertService) StopMonitoring(ctx context.Context) error {
	done := s.Monitor.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LatestPrice returns the newest recorded price, or ErrNotFound.
func (s *AlertService) LatestPrice(ctx context.Context, collectionName string) (*model.PriceHistoryPoint, error) {
	p, err := s.Store.GetLatestPrice(ctx, collectionName)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.ErrNotFound
	}
	return p, nil
}

type PriceHistory struct {
	CollectionName string                    `json:"collectionName"`
	Points         []model.PriceHistoryPoint `json:"points"`
	Summary        calculator.Summary        `json:"summary"`
}

// PriceHistory returns up to limit newest-first points with a summary.
func (s *AlertService) PriceHistory(ctx context.Context, collectionName string, limit int) (*PriceHistory, error) {
	if strings.TrimSpace(collectionName) == "" {
		return nil, &model.ValidationError{Field: "collectionName", Reason: "is required"}
	}
	points, err := s.Store.ListPriceHistory(ctx, collectionName, limit)
	if err != nil {
		return nil, err
	}
	if points == nil {
		points = []model.PriceHistoryPoint{}
	}
	return &PriceHistory{CollectionName: collectionName, Points: points, Summary: calculator.Summarize(points)}, nil
}

type EmulatePriceRequest struct {
	UserID         string          `json:"userId"`
	CollectionName string          `json:"collectionName"`
	Price          decimal.Decimal `json:"newPrice"`
	Currency       string          `json:"currency"`
}

type EmulatePriceResult struct {
	CollectionName string          `json:"collectionName"`
	Price          decimal.Decimal `json:"price"`
	Currency       model.Currency  `json:"currency"`
	Checked        int             `json:"checked"`
	Triggered      []model.Trigger `json:"triggered"`
}

// EmulatePrice feeds a hand-entered price for one user's alerts through the
// normal evaluate, update, emit path. Collection names match case-insensitively.
func (s *AlertService) EmulatePrice(ctx context.Context, req EmulatePriceRequest) (*EmulatePriceResult, error) {
	name := strings.TrimSpace(req.CollectionName)
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return nil, &model.ValidationError{Field: "userId", Reason: "is required"}
	case name == "":
		return nil, &model.ValidationError{Field: "collectionName", Reason: "is required"}
	case !req.Price.IsPositive():
		return nil, &model.ValidationError{Field: "newPrice", Reason: "must be positive"}
	}
	cur := model.ParseCurrency(req.Currency)
	if req.Currency == "" {
		cur = model.CurrencyETH
	}
	if !cur.Supported() {
		return nil, &model.ValidationError{Field: "currency", Reason: "must be ETH, USD, or AVAX"}
	}

	alerts, err := s.Store.GetUserAlerts(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	var matched []model.PriceAlert
	for _, a := range alerts {
		if strings.EqualFold(a.CollectionName, name) {
			matched = append(matched, a)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("no active alerts for collection %q: %w", name, model.ErrNotFound)
	}

	q := model.Quote{CollectionName: name, Price: req.Price, Currency: cur, Source: SourceEmulation}
	if err := s.Store.RecordPriceHistory(ctx, model.PriceHistoryPoint{
		CollectionName: name,
		Price:          q.Price,
		Currency:       q.Currency,
		Source:         q.Source,
	}); err != nil {
		s.Log.Warn("record emulated price", zap.Error(err))
	}

	triggers, err := s.Monitor.ApplyQuote(ctx, matched, q)
	if err != nil {
		// Triggers already applied stand; auto-buy and push failures land here too.
		s.Log.Warn("emulated quote applied with errors", zap.Error(err))
		var se *model.StorageError
		if len(triggers) == 0 && errors.As(err, &se) {
			return nil, err
		}
	}
	if triggers == nil {
		triggers = []model.Trigger{}
	}
	return &EmulatePriceResult{
		CollectionName: name,
		Price:          q.Price,
		Currency:       q.Currency,
		Checked:        len(matched),
		Triggered:      triggers,
	}, nil
}

func (s *AlertService) Wallet(ctx context.Context, userID string) (model.WalletState, error) {
	if s.Wallets == nil {
		return model.WalletState{}, fmt.Errorf("wallet: %w", model.ErrNotFound)
	}
	return s.Wallets.Wallet(ctx, userID)
}

// Ready reports whether the store is reachable.
func (s *AlertService) Ready(ctx context.Context) error {
	return s.Store.Ping(ctx)
}
