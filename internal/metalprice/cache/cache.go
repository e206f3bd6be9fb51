// Package cache keeps the latest metal price snapshot per currency close to
// the pricing hot path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	sharedcache "github.com/smallbiznis/catalyser/internal/cache"
	metalpricedomain "github.com/smallbiznis/catalyser/internal/metalprice/domain"
)

const keyPrefix = "catalyser:metal_prices:current:"

type SnapshotCache interface {
	Get(ctx context.Context, currency string) (*metalpricedomain.Snapshot, bool, error)
	Set(ctx context.Context, snapshot *metalpricedomain.Snapshot, ttl time.Duration) error
	Invalidate(ctx context.Context, currency string) error
}

// New returns a Redis backed cache, or an in-process one when client is nil.
func New(client *redis.Client) SnapshotCache {
	if client == nil {
		return &memoryCache{entries: sharedcache.NewTTLCache[string, metalpricedomain.Snapshot]()}
	}
	return &redisCache{client: client}
}

type redisCache struct {
	client *redis.Client
}

func (c *redisCache) Get(ctx context.Context, currency string) (*metalpricedomain.Snapshot, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+currency).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var snapshot metalpricedomain.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, false, err
	}
	return &snapshot, true, nil
}

func (c *redisCache) Set(ctx context.Context, snapshot *metalpricedomain.Snapshot, ttl time.Duration) error {
	if snapshot == nil || ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+snapshot.Currency, raw, ttl).Err()
}

func (c *redisCache) Invalidate(ctx context.Context, currency string) error {
	return c.client.Del(ctx, keyPrefix+currency).Err()
}

type memoryCache struct {
	entries sharedcache.Cache[string, metalpricedomain.Snapshot]
}

func (c *memoryCache) Get(_ context.Context, currency string) (*metalpricedomain.Snapshot, bool, error) {
	snapshot, ok := c.entries.Get(currency)
	if !ok {
		return nil, false, nil
	}
	return &snapshot, true, nil
}

func (c *memoryCache) Set(_ context.Context, snapshot *metalpricedomain.Snapshot, ttl time.Duration) error {
	if snapshot == nil || ttl <= 0 {
		return nil
	}
	c.entries.Set(snapshot.Currency, *snapshot, ttl)
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, currency string) error {
	c.entries.Delete(currency)
	return nil
}
