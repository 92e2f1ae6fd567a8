package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Markers sets once-only keys that expire on their own.
type Markers struct {
	client *redis.Client
	prefix string
}

func NewMarkers(client *redis.Client, prefix string) *Markers {
	return &Markers{client: client, prefix: prefix}
}

// MarkOnce sets key if absent. It returns true only for the first caller
// within ttl.
func (m *Markers) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := m.client.SetNX(ctx, m.prefix+key, time.Now().UTC().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set marker %s: %w", key, err)
	}
	return ok, nil
}

// Clear removes a marker so a failed action can be retried.
func (m *Markers) Clear(ctx context.Context, key string) error {
	return m.client.Del(ctx, m.prefix+key).Err()
}
