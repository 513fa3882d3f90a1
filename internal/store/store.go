package store

import (
	"context"

	"github.com/shopspring/decimal"

	"NFTSentinel/internal/model"
)

// AlertStore persists alerts, price history, and notifications.
//
// GetActiveAlerts must return alerts ordered by last check time (never-checked
// first), then by creation time. The monitoring loop relies on that order.
type AlertStore interface {
	AddAlert(ctx context.Context, alert model.PriceAlert) (int64, error)
	GetAlert(ctx context.Context, id int64) (*model.PriceAlert, error)
	GetUserAlerts(ctx context.Context, userID string) ([]model.PriceAlert, error)
	GetActiveAlerts(ctx context.Context) ([]model.PriceAlert, error)
	// UpdateAlertStatus reports whether an active alert was updated. Inactive or
	// missing alerts are left untouched without error.
	UpdateAlertStatus(ctx context.Context, id int64, triggered bool, currentPrice *decimal.Decimal) (bool, error)
	DeleteAlert(ctx context.Context, id int64) error

	RecordPriceHistory(ctx context.Context, point model.PriceHistoryPoint) error
	GetLatestPrice(ctx context.Context, collectionName string) (*model.PriceHistoryPoint, error)
	ListPriceHistory(ctx context.Context, collectionName string, limit int) ([]model.PriceHistoryPoint, error)

	AddNotification(ctx context.Context, n model.Notification) (int64, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)

	Ping(ctx context.Context) error
	Close() error
}
