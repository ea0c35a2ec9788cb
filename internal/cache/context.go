// internal/cache/context.go
package cache

import (
	"context"
	"encoding/json"
	"time"

	"tender-alerts/internal/common/errors"
	"tender-alerts/internal/models"

	"github.com/redis/go-redis/v9"
)

const tokenPrefix = "tender:ctx:"

// Token derives the context cache key for an announcement. Deterministic,
// so repeated writes for the same announcement are idempotent and
// last-write-wins is harmless.
func Token(processID string) string {
	return tokenPrefix + processID
}

// ContextCache is the short-lived store mapping a context token to an
// announcement's data, read when a user acts on a button.
type ContextCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewContextCache(rdb *redis.Client, ttl time.Duration) *ContextCache {
	return &ContextCache{rdb: rdb, ttl: ttl}
}

// Put stores the announcement under its derived token, TTL-bound.
func (c *ContextCache) Put(ctx context.Context, ann *models.Announcement) error {
	data, err := json.Marshal(ann)
	if err != nil {
		return errors.NewContextCacheError(err)
	}
	if err := c.rdb.Set(ctx, Token(ann.ProcessID), data, c.ttl).Err(); err != nil {
		return errors.NewContextCacheError(err)
	}
	return nil
}

// Get resolves a token back to the cached announcement. A missing or
// expired entry is a ContextNotFound error, distinct from transport faults.
func (c *ContextCache) Get(ctx context.Context, token string) (*models.Announcement, error) {
	val, err := c.rdb.Get(ctx, token).Result()
	if err == redis.Nil {
		return nil, errors.NewContextNotFoundError(token)
	}
	if err != nil {
		return nil, errors.NewContextCacheError(err)
	}

	var ann models.Announcement
	if err := json.Unmarshal([]byte(val), &ann); err != nil {
		return nil, errors.NewContextCacheError(err)
	}
	return &ann, nil
}

// GetByProcessID is a convenience for callers that hold the raw process id.
func (c *ContextCache) GetByProcessID(ctx context.Context, processID string) (*models.Announcement, error) {
	return c.Get(ctx, Token(processID))
}
