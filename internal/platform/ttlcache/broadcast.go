package ttlcache

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const invalidationChannel = "planner.cache.invalidate"

// clearToken clears the whole cache when received; a bare pattern cannot
// express "everything" because every key contains the empty string anyway.
const clearToken = "*"

// Broadcaster propagates cache invalidations across workers over Redis
// pub/sub. Each process applies received patterns to its local Cache.
type Broadcaster struct {
	client  *redis.Client
	cache   *Cache
	channel string
	logger  *slog.Logger
}

// NewBroadcaster wires a Redis client to a local cache. A nil client yields
// a broadcaster that only invalidates locally.
func NewBroadcaster(client *redis.Client, cache *Cache, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{client: client, cache: cache, channel: invalidationChannel, logger: logger}
}

// Invalidate drops matching keys locally and publishes the pattern so other
// workers do the same.
func (b *Broadcaster) Invalidate(ctx context.Context, pattern string) error {
	if b == nil || b.cache == nil {
		return nil
	}
	if pattern == "" || pattern == clearToken {
		b.cache.InvalidateAll()
	} else {
		b.cache.Invalidate(pattern)
	}
	if b.client == nil {
		return nil
	}
	payload := pattern
	if payload == "" {
		payload = clearToken
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Listen subscribes to invalidation messages until ctx is cancelled.
func (b *Broadcaster) Listen(ctx context.Context) {
	if b == nil || b.client == nil || b.cache == nil {
		return
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == clearToken {
					b.cache.InvalidateAll()
					continue
				}
				b.cache.Invalidate(msg.Payload)
				if b.logger != nil {
					b.logger.Debug("cache invalidation received", slog.String("pattern", msg.Payload))
				}
			}
		}
	}()
}
