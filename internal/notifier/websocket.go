package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"NFTSentinel/internal/model"
)

const wsWriteTimeout = 5 * time.Second

// Event is the JSON frame sent to websocket clients.
type Event struct {
	Type string        `json:"type"`
	Data model.Trigger `json:"data"`
}

// Broadcaster pushes triggered alerts to connected websocket clients.
// A client that connects with ?userId= only receives that user's alerts.
type Broadcaster struct {
	clients  map[*websocket.Conn]string
	mu       sync.Mutex
	upgrader websocket.Upgrader
	log      *zap.Logger
}

var _ Pusher = (*Broadcaster)(nil)

func NewBroadcaster(log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		clients:  make(map[*websocket.Conn]string),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:      log,
	}
}

func (b *Broadcaster) Name() string { return "websocket" }

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Push sends t to every interested client. Clients that fail a write are dropped.
func (b *Broadcaster) Push(_ context.Context, t model.Trigger) error {
	msg, err := json.Marshal(Event{Type: "alert_triggered", Data: t})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c, userID := range b.clients {
		if userID != "" && userID != t.Alert.UserID {
			continue
		}
		_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.log.Warn("websocket write error", zap.Error(err))
			c.Close()
			delete(b.clients, c)
		}
	}
	return nil
}

// Handler returns an http.HandlerFunc to accept websocket connections.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.log.Warn("websocket upgrade error", zap.Error(err))
			return
		}
		b.mu.Lock()
		b.clients[conn] = r.URL.Query().Get("userId")
		b.mu.Unlock()

		// reads only detect disconnects
		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

// Close disconnects all clients.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		c.Close()
		delete(b.clients, c)
	}
}
