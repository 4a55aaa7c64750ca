package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/ordersync-backend/pkg/redis"
)

// Guard short-circuits duplicate deliveries per consumer using Redis SETNX
// with a TTL. Keys follow `osync:idempotency:evt:processed:<consumer>:<message_id>`.
// It is a fast path only: the inbox table's unique index remains the durable
// guard, so a Redis flush costs one extra DB round-trip per message, not
// correctness.
type Guard struct {
	store redis.DedupStore
	ttl   time.Duration
}

// NewGuard builds a dedup guard that marks messages as processed for the given TTL.
func NewGuard(store redis.DedupStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("dedup store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{
		store: store,
		ttl:   ttl,
	}, nil
}

// CheckAndMarkProcessed returns true if the message was already seen and
// otherwise marks it as processed with the configured TTL.
func (g *Guard) CheckAndMarkProcessed(ctx context.Context, consumer, messageID string) (bool, error) {
	key, err := g.processedKey(consumer, messageID)
	if err != nil {
		return false, err
	}
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Release clears the marker so a nacked message is not mistaken for a
// duplicate when the broker redelivers it.
func (g *Guard) Release(ctx context.Context, consumer, messageID string) error {
	key, err := g.processedKey(consumer, messageID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) processedKey(consumer, messageID string) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if messageID == "" {
		return "", errors.New("message id is required")
	}
	scope := fmt.Sprintf("evt:processed:%s", consumer)
	return g.store.DedupKey(scope, messageID), nil
}
