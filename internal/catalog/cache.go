package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheKey is the Redis key holding the last fetched listing.
const DefaultCacheKey = "storefront:catalog:listing"

// Cache stores the remote listing as JSON in Redis so restarts survive a
// listing endpoint outage.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	key    string
}

// NewCache constructs a cache helper. A nil client yields a cache that never hits.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, key: DefaultCacheKey}
}

// WithKey overrides the Redis key.
func (c *Cache) WithKey(key string) *Cache {
	if c != nil && key != "" {
		c.key = key
	}
	return c
}

// Get returns the cached listing and whether it was present.
func (c *Cache) Get(ctx context.Context) ([]Item, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

// Set stores the listing with the configured TTL. A zero TTL keeps the key forever.
func (c *Cache) Set(ctx context.Context, items []Item) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key, data, c.ttl).Err()
}
