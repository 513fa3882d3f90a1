package notifier

import (
	"context"
	"sync"

	"NFTSentinel/internal/model"
)

// DefaultRecentLimit is how many notifications are kept per user.
const DefaultRecentLimit = 10

// RecentStore is a bounded, newest-first read cache of notifications per user.
// The notifications table remains the source of truth.
type RecentStore interface {
	Push(ctx context.Context, n model.Notification) error
	List(ctx context.Context, userID string) ([]model.Notification, error)
}

// MemoryRecent keeps the newest notifications per user in process memory.
type MemoryRecent struct {
	mu    sync.Mutex
	limit int
	items map[string][]model.Notification
}

func NewMemoryRecent(limit int) *MemoryRecent {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &MemoryRecent{limit: limit, items: make(map[string][]model.Notification)}
}

func (m *MemoryRecent) Push(_ context.Context, n model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.items[n.UserID]
	next := make([]model.Notification, 0, min(len(list)+1, m.limit))
	next = append(next, n)
	for _, old := range list {
		if len(next) == m.limit {
			break
		}
		next = append(next, old)
	}
	m.items[n.UserID] = next
	return nil
}

func (m *MemoryRecent) List(_ context.Context, userID string) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.items[userID]
	out := make([]model.Notification, len(list))
	copy(out, list)
	return out, nil
}
