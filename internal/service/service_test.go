package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"NFTSentinel/internal/model"
	"NFTSentinel/internal/monitor"
	"NFTSentinel/internal/notifier"
	"NFTSentinel/internal/quote"
	"NFTSentinel/internal/store"
	"NFTSentinel/internal/wallet"
)

type harness struct {
	svc    *AlertService
	store  *store.SQLiteStore
	quoter *quote.MockQuoter
	ledger *wallet.Ledger
	mon    *monitor.Monitor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sentinel.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ledger, err := wallet.NewLedger("", nil)
	if err != nil {
		t.Fatal(err)
	}
	q := quote.NewMockQuoter(model.CurrencyETH)
	recent := notifier.NewMemoryRecent(0)
	sink := notifier.NewSink(st, recent, ledger, nil)
	mon := monitor.New(context.Background(), st, q, nil, sink, nil, monitor.Options{GroupDelay: -1})
	t.Cleanup(func() { <-mon.Stop().Done() })

	return &harness{
		svc:    New(st, mon, recent, ledger, time.Hour, nil),
		store:  st,
		quoter: q,
		ledger: ledger,
		mon:    mon,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func coolCatsRequest() CreateAlertRequest {
	return CreateAlertRequest{
		UserID:         "user_1",
		CollectionName: "Cool Cats",
		ThresholdPrice: dec("0.2"),
		ThresholdType:  "below",
		Currency:       "ETH",
	}
}

func TestCreateAlert_RoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := coolCatsRequest()
	req.ThresholdType = " BELOW "
	req.Currency = "eth"
	res, err := h.svc.CreateAlert(ctx, req)
	if err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}
	if res.AlertID == 0 || res.AutoBuy {
		t.Errorf("result = %+v", res)
	}
	if want := "Price alert created: Notify when Cool Cats below 0.2 ETH"; res.Message != want {
		t.Errorf("message = %q, want %q", res.Message, want)
	}

	alerts, err := h.svc.UserAlerts(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	got := alerts[0]
	if got.ID != res.AlertID || got.CollectionName != "Cool Cats" || got.ThresholdType != model.ThresholdBelow ||
		got.Currency != model.CurrencyETH || !got.ThresholdPrice.Equal(dec("0.2")) || !got.IsActive {
		t.Errorf("listed alert = %+v", got)
	}
}

func TestCreateAlert_AutoBuyMessage(t *testing.T) {
	h := newHarness(t)
	req := coolCatsRequest()
	req.AutoBuy = true
	p := dec("0.15")
	req.AutoBuyPrice = &p
	req.AutoBuyCurrency = "eth"

	res, err := h.svc.CreateAlert(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !res.AutoBuy || !strings.HasPrefix(res.Message, "Auto-buy alert created: Buy Cool Cats when below 0.2 ETH") {
		t.Errorf("result = %+v", res)
	}
	if res.Alert.AutoBuyCurrency == nil || *res.Alert.AutoBuyCurrency != model.CurrencyETH {
		t.Errorf("auto-buy currency = %v", res.Alert.AutoBuyCurrency)
	}
}

func TestCreateAlert_Validation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name  string
		mut   func(*CreateAlertRequest)
		field string
	}{
		{"bad type", func(r *CreateAlertRequest) { r.ThresholdType = "sideways" }, "thresholdType"},
		{"bad currency", func(r *CreateAlertRequest) { r.Currency = "BTC" }, "currency"},
		{"zero price", func(r *CreateAlertRequest) { r.ThresholdPrice = decimal.Zero }, "thresholdPrice"},
		{"auto-buy without price", func(r *CreateAlertRequest) { r.AutoBuy = true; r.AutoBuyCurrency = "ETH" }, "autoBuyPrice"},
		{"missing user", func(r *CreateAlertRequest) { r.UserID = " " }, "userId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := coolCatsRequest()
			tt.mut(&req)
			_, err := h.svc.CreateAlert(context.Background(), req)
			var ve *model.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("err = %v, want ValidationError on %s", err, tt.field)
			}
		})
	}
	alerts, _ := h.store.GetActiveAlerts(context.Background())
	if len(alerts) != 0 {
		t.Errorf("rejected alerts were persisted: %d", len(alerts))
	}
}

func TestEndToEnd_CoolCats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.CreateAlert(ctx, coolCatsRequest())
	if err != nil {
		t.Fatal(err)
	}
	h.quoter.Script("Cool Cats", dec("0.9"), dec("0.65"), dec("0.25"), dec("0.18"))

	for cycle := 1; cycle <= 4; cycle++ {
		report := h.mon.CheckAllAlerts(ctx)
		wantTriggered := 0
		if cycle == 4 {
			wantTriggered = 1
		}
		if report.Triggered != wantTriggered {
			t.Fatalf("cycle %d triggered = %d, want %d", cycle, report.Triggered, wantTriggered)
		}
	}
	// nothing left to check
	if report := h.mon.CheckAllAlerts(ctx); report.Alerts != 0 {
		t.Errorf("fifth cycle alerts = %d, want 0", report.Alerts)
	}

	ns, err := h.svc.UserNotifications(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ns) != 1 || ns[0].AlertID != res.AlertID {
		t.Fatalf("notifications = %+v, want one for alert %d", ns, res.AlertID)
	}
	if ns[0].Message != "Cool Cats is now 0.18 ETH! Great time to buy!" {
		t.Errorf("message = %q", ns[0].Message)
	}

	a, err := h.store.GetAlert(ctx, res.AlertID)
	if err != nil {
		t.Fatal(err)
	}
	if a.IsActive || a.TriggeredAt == nil {
		t.Errorf("alert after trigger = %+v", a)
	}

	hist, err := h.svc.PriceHistory(ctx, "Cool Cats", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist.Points) != 4 || !hist.Summary.High.Equal(dec("0.9")) || !hist.Summary.Latest.Equal(dec("0.18")) {
		t.Errorf("history = %d points, summary %+v", len(hist.Points), hist.Summary)
	}
}

func TestAutoBuy_UsesAlertPrice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := coolCatsRequest()
	req.AutoBuy = true
	p := dec("0.15")
	req.AutoBuyPrice = &p
	req.AutoBuyCurrency = "ETH"
	if _, err := h.svc.CreateAlert(ctx, req); err != nil {
		t.Fatal(err)
	}
	h.quoter.Script("Cool Cats", dec("0.18"))

	if report := h.mon.CheckAllAlerts(ctx); report.Triggered != 1 {
		t.Fatalf("triggered = %d, want 1", report.Triggered)
	}

	w, err := h.svc.Wallet(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(w.Transactions))
	}
	tx := w.Transactions[0]
	if !tx.Price.Equal(dec("0.15")) || !tx.PreviousPrice.Equal(dec("0.18")) || !tx.TriggerPrice.Equal(dec("0.2")) {
		t.Errorf("tx prices = %s prev %s trigger %s", tx.Price, tx.PreviousPrice, tx.TriggerPrice)
	}
	if got := w.Balances[model.CurrencyETH]; !got.Equal(dec("9.85")) {
		t.Errorf("ETH balance = %s, want 9.85", got)
	}
}

func TestAutoBuy_FailureKeepsTrigger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := coolCatsRequest()
	req.AutoBuy = true
	p := dec("50")
	req.AutoBuyPrice = &p
	req.AutoBuyCurrency = "ETH"
	res, err := h.svc.CreateAlert(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	h.quoter.Script("Cool Cats", dec("0.18"))

	if report := h.mon.CheckAllAlerts(ctx); report.Triggered != 1 {
		t.Fatalf("triggered = %d, want 1", report.Triggered)
	}
	a, _ := h.store.GetAlert(ctx, res.AlertID)
	if a.IsActive {
		t.Error("alert must stay triggered when auto-buy fails")
	}
	ns, _ := h.svc.UserNotifications(ctx, "user_1")
	if len(ns) != 1 {
		t.Errorf("notifications = %d, want 1", len(ns))
	}
	w, _ := h.svc.Wallet(ctx, "user_1")
	if len(w.Transactions) != 0 {
		t.Errorf("transactions = %d, want 0", len(w.Transactions))
	}
}

func TestEmulatePrice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.CreateAlert(ctx, coolCatsRequest())
	if err != nil {
		t.Fatal(err)
	}

	out, err := h.svc.EmulatePrice(ctx, EmulatePriceRequest{
		UserID: "user_1", CollectionName: "cool cats", Price: dec("0.25"), Currency: "ETH",
	})
	if err != nil {
		t.Fatalf("EmulatePrice: %v", err)
	}
	if out.Checked != 1 || len(out.Triggered) != 0 {
		t.Errorf("above threshold result = %+v", out)
	}

	out, err = h.svc.EmulatePrice(ctx, EmulatePriceRequest{
		UserID: "user_1", CollectionName: "COOL CATS", Price: dec("0.19"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Triggered) != 1 || out.Triggered[0].Alert.ID != res.AlertID {
		t.Fatalf("triggered = %+v", out.Triggered)
	}
	if a := out.Triggered[0].Alert; a.IsActive || a.TriggeredAt == nil || a.LastCheckedAt == nil {
		t.Errorf("triggered alert = %+v, want inactive with trigger time", a)
	}
	if out.Triggered[0].Quote.Source != SourceEmulation {
		t.Errorf("source = %q", out.Triggered[0].Quote.Source)
	}

	latest, err := h.svc.LatestPrice(ctx, "COOL CATS")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Source != SourceEmulation || !latest.Price.Equal(dec("0.19")) {
		t.Errorf("latest = %+v", latest)
	}

	_, err = h.svc.EmulatePrice(ctx, EmulatePriceRequest{
		UserID: "user_1", CollectionName: "Cool Cats", Price: dec("0.1"),
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err after trigger = %v, want ErrNotFound", err)
	}

	_, err = h.svc.EmulatePrice(ctx, EmulatePriceRequest{UserID: "user_1", CollectionName: "Azuki"})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestDeleteAlert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, _ := h.svc.CreateAlert(ctx, coolCatsRequest())

	if err := h.svc.DeleteAlert(ctx, res.AlertID); err != nil {
		t.Fatalf("DeleteAlert: %v", err)
	}
	if alerts, _ := h.svc.UserAlerts(ctx, "user_1"); len(alerts) != 0 {
		t.Errorf("alerts after delete = %d", len(alerts))
	}
	if err := h.svc.DeleteAlert(ctx, res.AlertID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestMonitoringStartStop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.svc.CreateAlert(ctx, coolCatsRequest())

	if err := h.svc.StartMonitoring(); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.StartMonitoring(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	st, err := h.svc.MonitoringStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Running || st.ActiveAlerts != 1 || st.Interval != "1h0m0s" {
		t.Errorf("status = %+v", st)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.svc.StopMonitoring(stopCtx); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.StopMonitoring(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if st, _ := h.svc.MonitoringStatus(ctx); st.Running {
		t.Error("still running after stop")
	}
}

func TestCommandHandler(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.svc.CreateAlert(ctx, coolCatsRequest())
	h.svc.EmulatePrice(ctx, EmulatePriceRequest{UserID: "user_1", CollectionName: "Cool Cats", Price: dec("0.3")})

	handle := h.svc.CommandHandler("user_1")
	tests := []struct {
		cmd  string
		want string
	}{
		{"/alerts", "Cool Cats: below 0.2 ETH [active]"},
		{"/price Cool Cats", "Floor: 0.3 ETH (emulation_demo)"},
		{"/price@SentinelBot Azuki", "No price recorded for Azuki"},
		{"/price", "Usage"},
		{"/status", "State: stopped"},
		{"/notifications", "No notifications yet."},
		{"/help", "/alerts"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			if got := handle(ctx, tt.cmd); !strings.Contains(got, tt.want) {
				t.Errorf("reply = %q, want it to contain %q", got, tt.want)
			}
		})
	}
	if got := handle(ctx, "hello"); got != "" {
		t.Errorf("non-command reply = %q, want empty", got)
	}
}
