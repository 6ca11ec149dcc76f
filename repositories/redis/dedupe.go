package redis

import (
	// Go Internal Packages
	"context"
	"fmt"
	"time"

	// External Packages
	"github.com/redis/go-redis/v9"
)

// CallbackDedupe remembers callbacks that were fully handled so that gateway redeliveries
// are acknowledged without touching storage. Storage stays the source of truth.
type CallbackDedupe struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCallbackDedupe(client *redis.Client, ttl time.Duration) *CallbackDedupe {
	return &CallbackDedupe{client: client, ttl: ttl}
}

func dedupeKey(gatewayID, status string) string {
	return fmt.Sprintf("idempotency:callback:%s:%s", gatewayID, status)
}

// Claim returns false when the same gateway id and status is already being or has been handled.
func (d *CallbackDedupe) Claim(ctx context.Context, gatewayID, status string) (bool, error) {
	return d.client.SetNX(ctx, dedupeKey(gatewayID, status), "1", d.ttl).Result()
}

// Release drops a claim after a retryable failure so the redelivery is processed.
func (d *CallbackDedupe) Release(ctx context.Context, gatewayID, status string) error {
	return d.client.Del(ctx, dedupeKey(gatewayID, status)).Err()
}
