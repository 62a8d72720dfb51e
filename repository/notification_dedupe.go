package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dedupeKeyPrefix  = "enrollment:webhook:event:"
	DefaultDedupeTTL = 72 * time.Hour
)

// NotificationDedupe remembers gateway event ids that were already
// processed so redeliveries can be acknowledged without touching the store.
type NotificationDedupe interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

type RedisNotificationDedupe struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisNotificationDedupe(client *redis.Client, ttl time.Duration) *RedisNotificationDedupe {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisNotificationDedupe{client: client, ttl: ttl}
}

func (d *RedisNotificationDedupe) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	_, err := d.client.Get(ctx, dedupeKeyPrefix+eventID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *RedisNotificationDedupe) MarkProcessed(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	return d.client.Set(ctx, dedupeKeyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), d.ttl).Err()
}
