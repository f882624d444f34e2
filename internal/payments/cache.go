package payments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusKeyPrefix = "payments:status:"

// StatusCache keeps recent transaction-status lookups in Redis so polling
// clients do not hit the database on every request. Entries are invalidated
// when a payment settles.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusCache instantiates the cache helper. A nil client disables caching.
func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

type cachedStatus struct {
	TransactionID string `json:"transaction_id"`
	Status        Status `json:"status"`
}

// Get returns the cached status for a transaction, ok=false on miss.
func (c *StatusCache) Get(ctx context.Context, transactionID string) (Status, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	raw, err := c.client.Get(ctx, statusKeyPrefix+transactionID).Bytes()
	if err != nil {
		return "", false
	}
	var entry cachedStatus
	if err := json.Unmarshal(raw, &entry); err != nil {
		return "", false
	}
	return entry.Status, true
}

// Set stores the status for a transaction.
func (c *StatusCache) Set(ctx context.Context, transactionID string, status Status) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(cachedStatus{TransactionID: transactionID, Status: status})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statusKeyPrefix+transactionID, raw, c.ttl).Err()
}

// Invalidate drops a cached entry after the payment settles.
func (c *StatusCache) Invalidate(ctx context.Context, transactionID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Del(ctx, statusKeyPrefix+transactionID).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
