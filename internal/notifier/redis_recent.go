package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"NFTSentinel/internal/model"
)

// RedisRecent keeps the recent-notification buffer in Redis lists so it
// survives restarts and can be shared by several API processes.
type RedisRecent struct {
	client *redis.Client
	limit  int
	prefix string
}

var _ RecentStore = (*RedisRecent)(nil)

func NewRedisRecent(addr, password string, db, limit int) *RedisRecent {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &RedisRecent{client: client, limit: limit, prefix: "nft-sentinel:notifications:"}
}

func (r *RedisRecent) key(userID string) string {
	return r.prefix + userID
}

func (r *RedisRecent) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRecent) Push(ctx context.Context, n model.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	key := r.key(n.UserID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(r.limit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("push recent notification: %w", err)
	}
	return nil
}

func (r *RedisRecent) List(ctx context.Context, userID string) ([]model.Notification, error) {
	raw, err := r.client.LRange(ctx, r.key(userID), 0, int64(r.limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent notifications: %w", err)
	}
	out := make([]model.Notification, 0, len(raw))
	for _, item := range raw {
		var n model.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("unmarshal notification: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *RedisRecent) Close() error {
	return r.client.Close()
}
