package notifier

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"NFTSentinel/internal/model"
)

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcaster_FiltersByUser(t *testing.T) {
	b := NewBroadcaster(nil)
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	mine := dialWS(t, wsURL+"?userId=user_1")
	other := dialWS(t, wsURL+"?userId=user_2")
	all := dialWS(t, wsURL)

	deadline := time.Now().Add(2 * time.Second)
	for b.Clients() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want 3", b.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}

	tr := model.Trigger{Alert: coolCatsAlert(false), Quote: coolCatsQuote()}
	if err := b.Push(context.Background(), tr); err != nil {
		t.Fatalf("Push: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"mine": mine, "all": all} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("%s read: %v", name, err)
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Type != "alert_triggered" || ev.Data.Alert.ID != 7 {
			t.Errorf("%s event = %+v", name, ev)
		}
	}

	other.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("user_2 should not receive user_1's alert")
	}
}

func TestBroadcaster_DropsClosedClients(t *testing.T) {
	b := NewBroadcaster(nil)
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn := dialWS(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	deadline := time.Now().Add(2 * time.Second)
	for b.Clients() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for b.Clients() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := b.Clients(); n != 0 {
		t.Errorf("clients after close = %d, want 0", n)
	}
}
