package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"NFTSentinel/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "alerts.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeClock returns a controllable time source for SQLiteStore.now.
func fakeClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func coolCats(user string) model.PriceAlert {
	return model.PriceAlert{
		UserID:         user,
		CollectionName: "Cool Cats",
		ThresholdPrice: decimal.RequireFromString("0.2"),
		ThresholdType:  model.ThresholdBelow,
		Currency:       model.CurrencyETH,
	}
}

func TestAddAlert_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	price := decimal.RequireFromString("0.15")
	cur := model.CurrencyETH
	in := coolCats("u1")
	in.CollectionAddress = "0x1a92f7381b9f03921564a437210bb9396471050c"
	in.AutoBuy = true
	in.AutoBuyPrice = &price
	in.AutoBuyCurrency = &cur

	id, err := s.AddAlert(ctx, in)
	if err != nil {
		t.Fatalf("add alert: %v", err)
	}

	alerts, err := s.GetUserAlerts(ctx, "u1")
	if err != nil {
		t.Fatalf("get user alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	got := alerts[0]
	if got.ID != id {
		t.Errorf("id=%d want %d", got.ID, id)
	}
	if got.CreatedAt.IsZero() {
		t.Error("createdAt not set")
	}
	if !got.IsActive {
		t.Error("new alert should be active")
	}
	if got.UserID != in.UserID || got.CollectionName != in.CollectionName || got.CollectionAddress != in.CollectionAddress {
		t.Errorf("identity fields mismatch: %+v", got)
	}
	if !got.ThresholdPrice.Equal(in.ThresholdPrice) || got.ThresholdType != in.ThresholdType || got.Currency != in.Currency {
		t.Errorf("threshold fields mismatch: %+v", got)
	}
	if !got.AutoBuy || got.AutoBuyPrice == nil || !got.AutoBuyPrice.Equal(price) || got.AutoBuyCurrency == nil || *got.AutoBuyCurrency != cur {
		t.Errorf("auto-buy fields mismatch: %+v", got)
	}
	if got.TriggeredAt != nil || got.LastCheckedAt != nil {
		t.Errorf("timestamps should be unset: %+v", got)
	}
}

func TestAddAlert_Validation(t *testing.T) {
	s := newTestStore(t)
	a := coolCats("u1")
	a.Currency = "BTC"
	_, err := s.AddAlert(context.Background(), a)
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	alerts, _ := s.GetUserAlerts(context.Background(), "u1")
	if len(alerts) != 0 {
		t.Errorf("invalid alert was persisted")
	}
}

func TestGetUserAlerts_NewestFirstActiveOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now, advance := fakeClock(time.Unix(1_700_000_000, 0))
	s.now = now

	first, _ := s.AddAlert(ctx, coolCats("u1"))
	advance(time.Second)
	second, _ := s.AddAlert(ctx, coolCats("u1"))
	advance(time.Second)
	third, _ := s.AddAlert(ctx, coolCats("u1"))
	if _, err := s.AddAlert(ctx, coolCats("u2")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateAlertStatus(ctx, second, true, nil); err != nil {
		t.Fatal(err)
	}

	alerts, err := s.GetUserAlerts(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 2 || alerts[0].ID != third || alerts[1].ID != first {
		t.Fatalf("got %+v, want [%d %d]", alerts, third, first)
	}
}

func TestGetActiveAlerts_FairOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now, advance := fakeClock(time.Unix(1_700_000_000, 0))
	s.now = now

	c, _ := s.AddAlert(ctx, coolCats("u1"))
	b, _ := s.AddAlert(ctx, coolCats("u1"))
	a, _ := s.AddAlert(ctx, coolCats("u1"))

	// B checked an hour ago, C a minute ago, A never.
	if _, err := s.UpdateAlertStatus(ctx, b, false, nil); err != nil {
		t.Fatal(err)
	}
	advance(59 * time.Minute)
	if _, err := s.UpdateAlertStatus(ctx, c, false, nil); err != nil {
		t.Fatal(err)
	}
	advance(time.Minute)

	alerts, err := s.GetActiveAlerts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{a, b, c}
	if len(alerts) != len(want) {
		t.Fatalf("got %d alerts, want %d", len(alerts), len(want))
	}
	for i, id := range want {
		if alerts[i].ID != id {
			t.Errorf("position %d: got %d want %d", i, alerts[i].ID, id)
		}
	}
}

func TestGetActiveAlerts_NeverCheckedByCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now, advance := fakeClock(time.Unix(1_700_000_000, 0))
	s.now = now

	older, _ := s.AddAlert(ctx, coolCats("u1"))
	advance(time.Minute)
	newer, _ := s.AddAlert(ctx, coolCats("u2"))

	alerts, err := s.GetActiveAlerts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 2 || alerts[0].ID != older || alerts[1].ID != newer {
		t.Fatalf("got %+v", alerts)
	}
}

func TestUpdateAlertStatus_SingleShot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.AddAlert(ctx, coolCats("u1"))
	price := decimal.RequireFromString("0.18")

	applied, err := s.UpdateAlertStatus(ctx, id, true, &price)
	if err != nil || !applied {
		t.Fatalf("trigger: applied=%v err=%v", applied, err)
	}
	got, err := s.GetAlert(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive || got.TriggeredAt == nil || got.LastCheckedAt == nil {
		t.Fatalf("expected triggered terminal state, got %+v", got)
	}

	active, _ := s.GetActiveAlerts(ctx)
	if len(active) != 0 {
		t.Errorf("triggered alert still returned as active")
	}

	for _, triggered := range []bool{true, false} {
		applied, err := s.UpdateAlertStatus(ctx, id, triggered, nil)
		if err != nil {
			t.Fatalf("update inactive alert (triggered=%v): %v", triggered, err)
		}
		if applied {
			t.Errorf("update on inactive alert should not apply (triggered=%v)", triggered)
		}
	}
	again, _ := s.GetAlert(ctx, id)
	if !again.TriggeredAt.Equal(*got.TriggeredAt) {
		t.Errorf("triggeredAt changed on inactive alert")
	}
}

func TestUpdateAlertStatus_MissingAlert(t *testing.T) {
	s := newTestStore(t)
	applied, err := s.UpdateAlertStatus(context.Background(), 999, false, nil)
	if err != nil || applied {
		t.Fatalf("applied=%v err=%v", applied, err)
	}
}

func TestDeleteAlert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := s.AddAlert(ctx, coolCats("u1"))

	if err := s.DeleteAlert(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetAlert(ctx, id); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteAlert(ctx, id); err != nil {
		t.Errorf("second delete should be silent, got %v", err)
	}
}

func TestPriceHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now, advance := fakeClock(time.Unix(1_700_000_000, 0))
	s.now = now

	latest, err := s.GetLatestPrice(ctx, "Cool Cats")
	if err != nil || latest != nil {
		t.Fatalf("empty history: latest=%v err=%v", latest, err)
	}

	for _, p := range []string{"0.9", "0.65", "0.65"} {
		if err := s.RecordPriceHistory(ctx, model.PriceHistoryPoint{
			CollectionName: "Cool Cats",
			Price:          decimal.RequireFromString(p),
			Currency:       model.CurrencyETH,
			Source:         "test",
		}); err != nil {
			t.Fatal(err)
		}
		advance(time.Minute)
	}
	if err := s.RecordPriceHistory(ctx, model.PriceHistoryPoint{
		CollectionName: "Bored Ape Yacht Club",
		Price:          decimal.NewFromInt(30),
		Currency:       model.CurrencyETH,
	}); err != nil {
		t.Fatal(err)
	}

	points, err := s.ListPriceHistory(ctx, "Cool Cats", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3 (duplicates kept)", len(points))
	}
	latest, err = s.GetLatestPrice(ctx, "Cool Cats")
	if err != nil || latest == nil {
		t.Fatalf("latest=%v err=%v", latest, err)
	}
	if latest.ID != points[0].ID || latest.Source != "test" || !latest.Price.Equal(decimal.RequireFromString("0.65")) {
		t.Errorf("unexpected latest point %+v", latest)
	}
	if !points[2].Price.Equal(decimal.RequireFromString("0.9")) {
		t.Errorf("oldest point=%s want 0.9", points[2].Price)
	}
}

func TestNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now, advance := fakeClock(time.Unix(1_700_000_000, 0))
	s.now = now

	for i := int64(1); i <= 3; i++ {
		if _, err := s.AddNotification(ctx, model.Notification{
			AlertID:         i,
			UserID:          "u1",
			CollectionName:  "Cool Cats",
			ThresholdPrice:  decimal.RequireFromString("0.2"),
			ThresholdType:   model.ThresholdBelow,
			Currency:        model.CurrencyETH,
			CurrentPrice:    decimal.RequireFromString("0.18"),
			CurrentCurrency: model.CurrencyETH,
			Message:         "Cool Cats is now 0.18 ETH! Great time to buy!",
		}); err != nil {
			t.Fatal(err)
		}
		advance(time.Second)
	}

	got, err := s.ListNotifications(ctx, "u1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].AlertID != 3 || got[1].AlertID != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].ThresholdType != model.ThresholdBelow || !got[0].CurrentPrice.Equal(decimal.RequireFromString("0.18")) {
		t.Errorf("fields not round-tripped: %+v", got[0])
	}
	other, _ := s.ListNotifications(ctx, "u2", 20)
	if len(other) != 0 {
		t.Errorf("notifications leaked across users")
	}
}

func TestClosedStoreReturnsStorageError(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "closed.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	_, err = s.GetActiveAlerts(context.Background())
	var storageErr *model.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if storageErr.Op != "get active alerts" {
		t.Errorf("op=%s", storageErr.Op)
	}
}
