package ratelimit

import (
	"context"
	"fmt"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Fixed is a fixed-window limiter over a ulule store. It is used when no
// Redis is configured.
type Fixed struct {
	Store limiter.Store
}

// NewMemory returns a Fixed limiter keeping counters in process.
func NewMemory(prefix string) Fixed {
	return Fixed{Store: memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          prefix,
		CleanUpInterval: time.Minute,
	})}
}

// Allow implements Allower.
func (f Fixed) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if f.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	lim := limiter.New(f.Store, limiter.Rate{Period: window, Limit: int64(max)})
	res, err := lim.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), fmt.Errorf("ratelimit: store: %w", err)
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
