package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	redis "github.com/redis/go-redis/v9"
)

// ReplayGuard claims webhook fingerprints. Claim reports false when the key was
// seen before. Release forgets a claim whose webhook could not be settled so
// the provider's retry is processed.
type ReplayGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisReplay stores fingerprints in Redis with a TTL.
type RedisReplay struct {
	Client *redis.Client
	TTL    time.Duration
}

// Claim implements ReplayGuard.
func (g RedisReplay) Claim(ctx context.Context, key string) (bool, error) {
	if g.Client == nil {
		return true, nil
	}
	ttl := g.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return g.Client.SetNX(ctx, key, "1", ttl).Result()
}

// Release implements ReplayGuard.
func (g RedisReplay) Release(ctx context.Context, key string) error {
	if g.Client == nil {
		return nil
	}
	return g.Client.Del(ctx, key).Err()
}

// MemoryReplay keeps a bounded set of fingerprints in process.
type MemoryReplay struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, struct{}]
}

// NewMemoryReplay holds up to size fingerprints for ttl each.
func NewMemoryReplay(size int, ttl time.Duration) *MemoryReplay {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryReplay{cache: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// Claim implements ReplayGuard.
func (g *MemoryReplay) Claim(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cache.Contains(key) {
		return false, nil
	}
	g.cache.Add(key, struct{}{})
	return true, nil
}

// Release implements ReplayGuard.
func (g *MemoryReplay) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.Remove(key)
	return nil
}

func replayKey(provider string, body []byte) string {
	sum := sha256.Sum256(body)
	return "storefront:wh:" + provider + ":" + hex.EncodeToString(sum[:])
}
