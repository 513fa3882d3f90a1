package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"NFTSentinel/internal/model"
)

// SQLiteStore is the AlertStore backed by a SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
	now func() time.Time
}

var _ AlertStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL keeps API reads from blocking on the monitor's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, log: log, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite store opened", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_alerts (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id            TEXT NOT NULL,
			collection_name    TEXT NOT NULL,
			collection_address TEXT,
			threshold_price    TEXT NOT NULL,
			threshold_type     TEXT NOT NULL CHECK (threshold_type IN ('below', 'above')),
			currency           TEXT NOT NULL,
			is_active          INTEGER NOT NULL DEFAULT 1,
			auto_buy           INTEGER NOT NULL DEFAULT 0,
			auto_buy_price     TEXT,
			auto_buy_currency  TEXT,
			last_price         TEXT,
			created_at         INTEGER NOT NULL,
			triggered_at       INTEGER,
			last_checked_at    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user_active ON price_alerts(user_id, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_collection ON price_alerts(collection_name)`,

		`CREATE TABLE IF NOT EXISTS price_history (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			collection_name    TEXT NOT NULL,
			collection_address TEXT,
			price              TEXT NOT NULL,
			currency           TEXT NOT NULL,
			timestamp          INTEGER NOT NULL,
			source             TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_collection ON price_history(collection_name, timestamp)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_id         INTEGER NOT NULL,
			user_id          TEXT NOT NULL,
			collection_name  TEXT NOT NULL,
			threshold_price  TEXT NOT NULL,
			threshold_type   TEXT NOT NULL,
			currency         TEXT NOT NULL,
			current_price    TEXT NOT NULL,
			current_currency TEXT NOT NULL,
			message          TEXT NOT NULL,
			triggered_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, triggered_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

const alertColumns = `id, user_id, collection_name, collection_address, threshold_price, threshold_type,
	currency, is_active, auto_buy, auto_buy_price, auto_buy_currency, created_at, triggered_at, last_checked_at`

func (s *SQLiteStore) AddAlert(ctx context.Context, alert model.PriceAlert) (int64, error) {
	if err := alert.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var autoBuyPrice, autoBuyCurrency sql.NullString
	if alert.AutoBuyPrice != nil {
		autoBuyPrice = sql.NullString{String: alert.AutoBuyPrice.String(), Valid: true}
	}
	if alert.AutoBuyCurrency != nil {
		autoBuyCurrency = sql.NullString{String: string(*alert.AutoBuyCurrency), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO price_alerts
		(user_id, collection_name, collection_address, threshold_price, threshold_type, currency,
		 is_active, auto_buy, auto_buy_price, auto_buy_currency, created_at)
		VALUES (?,?,?,?,?,?,1,?,?,?,?)`,
		alert.UserID, alert.CollectionName, nullString(alert.CollectionAddress),
		alert.ThresholdPrice.String(), string(alert.ThresholdType), string(alert.Currency),
		boolInt(alert.AutoBuy), autoBuyPrice, autoBuyCurrency, s.now().UnixMilli(),
	)
	if err != nil {
		return 0, &model.StorageError{Op: "add alert", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &model.StorageError{Op: "add alert", Err: err}
	}
	return id, nil
}

func (s *SQLiteStore) GetAlert(ctx context.Context, id int64) (*model.PriceAlert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM price_alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, &model.StorageError{Op: "get alert", Err: err}
	}
	return a, nil
}

func (s *SQLiteStore) GetUserAlerts(ctx context.Context, userID string) ([]model.PriceAlert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+alertColumns+` FROM price_alerts
		WHERE user_id = ? AND is_active = 1
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, &model.StorageError{Op: "get user alerts", Err: err}
	}
	return collectAlerts(rows, "get user alerts")
}

func (s *SQLiteStore) GetActiveAlerts(ctx context.Context) ([]model.PriceAlert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+alertColumns+` FROM price_alerts
		WHERE is_active = 1
		ORDER BY last_checked_at IS NOT NULL, last_checked_at ASC, created_at ASC, id ASC`)
	if err != nil {
		return nil, &model.StorageError{Op: "get active alerts", Err: err}
	}
	return collectAlerts(rows, "get active alerts")
}

func (s *SQLiteStore) UpdateAlertStatus(ctx context.Context, id int64, triggered bool, currentPrice *decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()
	var price sql.NullString
	if currentPrice != nil {
		price = sql.NullString{String: currentPrice.String(), Valid: true}
	}

	var (
		res sql.Result
		err error
	)
	if triggered {
		res, err = s.db.ExecContext(ctx, `UPDATE price_alerts
			SET is_active = 0, triggered_at = ?, last_checked_at = ?, last_price = COALESCE(?, last_price)
			WHERE id = ? AND is_active = 1`, now, now, price, id)
	} else {
		res, err = s.db.ExecContext(ctx, `UPDATE price_alerts
			SET last_checked_at = ?, last_price = COALESCE(?, last_price)
			WHERE id = ? AND is_active = 1`, now, price, id)
	}
	if err != nil {
		return false, &model.StorageError{Op: "update alert status", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &model.StorageError{Op: "update alert status", Err: err}
	}
	return n > 0, nil
}

func (s *SQLiteStore) DeleteAlert(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM price_alerts WHERE id = ?`, id); err != nil {
		return &model.StorageError{Op: "delete alert", Err: err}
	}
	return nil
}

func (s *SQLiteStore) RecordPriceHistory(ctx context.Context, p model.PriceHistoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := p.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO price_history
		(collection_name, collection_address, price, currency, timestamp, source)
		VALUES (?,?,?,?,?,?)`,
		p.CollectionName, nullString(p.CollectionAddress), p.Price.String(), string(p.Currency),
		ts.UnixMilli(), p.Source,
	)
	if err != nil {
		return &model.StorageError{Op: "record price history", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetLatestPrice(ctx context.Context, collectionName string) (*model.PriceHistoryPoint, error) {
	points, err := s.ListPriceHistory(ctx, collectionName, 1)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}
	return &points[0], nil
}

func (s *SQLiteStore) ListPriceHistory(ctx context.Context, collectionName string, limit int) ([]model.PriceHistoryPoint, error) {
	if limit <= 0 {
		limit = 24
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, collection_name, collection_address, price, currency, timestamp, source
		FROM price_history WHERE collection_name = ?
		ORDER BY timestamp DESC, id DESC LIMIT ?`, collectionName, limit)
	if err != nil {
		return nil, &model.StorageError{Op: "list price history", Err: err}
	}
	defer rows.Close()

	var out []model.PriceHistoryPoint
	for rows.Next() {
		var (
			p        model.PriceHistoryPoint
			address  sql.NullString
			price    string
			currency string
			ts       int64
			source   sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.CollectionName, &address, &price, &currency, &ts, &source); err != nil {
			return nil, &model.StorageError{Op: "list price history", Err: err}
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, &model.StorageError{Op: "list price history", Err: fmt.Errorf("parse price: %w", err)}
		}
		p.CollectionAddress = address.String
		p.Currency = model.Currency(currency)
		p.Timestamp = time.UnixMilli(ts)
		p.Source = source.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "list price history", Err: err}
	}
	return out, nil
}

func (s *SQLiteStore) AddNotification(ctx context.Context, n model.Notification) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := n.TriggeredAt
	if ts.IsZero() {
		ts = s.now()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO notifications
		(alert_id, user_id, collection_name, threshold_price, threshold_type, currency,
		 current_price, current_currency, message, triggered_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		n.AlertID, n.UserID, n.CollectionName, n.ThresholdPrice.String(), string(n.ThresholdType),
		string(n.Currency), n.CurrentPrice.String(), string(n.CurrentCurrency), n.Message, ts.UnixMilli(),
	)
	if err != nil {
		return 0, &model.StorageError{Op: "add notification", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &model.StorageError{Op: "add notification", Err: err}
	}
	return id, nil
}

func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, alert_id, user_id, collection_name, threshold_price, threshold_type,
		currency, current_price, current_currency, message, triggered_at
		FROM notifications WHERE user_id = ?
		ORDER BY triggered_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, &model.StorageError{Op: "list notifications", Err: err}
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n                                  model.Notification
			threshold, thresholdType, currency string
			current, currentCurrency           string
			ts                                 int64
		)
		if err := rows.Scan(&n.ID, &n.AlertID, &n.UserID, &n.CollectionName, &threshold, &thresholdType,
			&currency, &current, &currentCurrency, &n.Message, &ts); err != nil {
			return nil, &model.StorageError{Op: "list notifications", Err: err}
		}
		if n.ThresholdPrice, err = decimal.NewFromString(threshold); err != nil {
			return nil, &model.StorageError{Op: "list notifications", Err: fmt.Errorf("parse threshold: %w", err)}
		}
		if n.CurrentPrice, err = decimal.NewFromString(current); err != nil {
			return nil, &model.StorageError{Op: "list notifications", Err: fmt.Errorf("parse current price: %w", err)}
		}
		n.ThresholdType = model.ThresholdType(thresholdType)
		n.Currency = model.Currency(currency)
		n.CurrentCurrency = model.Currency(currentCurrency)
		n.TriggeredAt = time.UnixMilli(ts)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "list notifications", Err: err}
	}
	return out, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &model.StorageError{Op: "ping", Err: err}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.log.Info("closing sqlite store")
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*model.PriceAlert, error) {
	var (
		a                                  model.PriceAlert
		address                            sql.NullString
		threshold, thresholdType, currency string
		isActive, autoBuy                  int
		autoBuyPrice, autoBuyCurrency      sql.NullString
		createdAt                          int64
		triggeredAt, lastCheckedAt         sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.CollectionName, &address, &threshold, &thresholdType,
		&currency, &isActive, &autoBuy, &autoBuyPrice, &autoBuyCurrency, &createdAt, &triggeredAt, &lastCheckedAt); err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(threshold)
	if err != nil {
		return nil, fmt.Errorf("parse threshold price: %w", err)
	}
	a.ThresholdPrice = price
	a.CollectionAddress = address.String
	a.ThresholdType = model.ThresholdType(thresholdType)
	a.Currency = model.Currency(currency)
	a.IsActive = isActive == 1
	a.AutoBuy = autoBuy == 1
	if autoBuyPrice.Valid {
		p, err := decimal.NewFromString(autoBuyPrice.String)
		if err != nil {
			return nil, fmt.Errorf("parse auto-buy price: %w", err)
		}
		a.AutoBuyPrice = &p
	}
	if autoBuyCurrency.Valid {
		c := model.Currency(autoBuyCurrency.String)
		a.AutoBuyCurrency = &c
	}
	a.CreatedAt = time.UnixMilli(createdAt)
	a.TriggeredAt = millisPtr(triggeredAt)
	a.LastCheckedAt = millisPtr(lastCheckedAt)
	return &a, nil
}

func collectAlerts(rows *sql.Rows, op string) ([]model.PriceAlert, error) {
	defer rows.Close()
	var out []model.PriceAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, &model.StorageError{Op: op, Err: err}
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: op, Err: err}
	}
	return out, nil
}

func millisPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
