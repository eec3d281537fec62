// Package cache adds a TTL response cache in front of the fetch engine.
// Every genuine response costs a cascade run, possibly a browser
// launch, so even short TTLs pay for themselves.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/pahegate/pahegate/internal/logger"
	"github.com/pahegate/pahegate/pkg/fetch"
)

// DefaultTTL matches the upstream's own listing refresh cadence.
const DefaultTTL = 5 * time.Minute

// Fetcher decorates a fetch.Fetcher with an in-memory TTL cache keyed
// by normalized request identity. Only genuine results are cached;
// failures always retry the cascade.
type Fetcher struct {
	next  fetch.Fetcher
	store *gocache.Cache
	ttl   time.Duration
}

// New wraps next with a cache. A zero ttl means DefaultTTL.
func New(next fetch.Fetcher, ttl time.Duration) *Fetcher {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Fetcher{
		next:  next,
		store: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Fetch implements fetch.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error) {
	key := req.Key()
	if v, ok := f.store.Get(key); ok {
		logger.Debug("cache hit", "key", key)
		return v.(fetch.Result), nil
	}

	res, err := f.next.Fetch(ctx, req)
	if err != nil {
		return fetch.Result{}, err
	}

	f.store.Set(key, res, f.ttl)
	return res, nil
}

// Flush drops all cached responses.
func (f *Fetcher) Flush() {
	f.store.Flush()
}

// Len reports the number of cached entries, expired included.
func (f *Fetcher) Len() int {
	return f.store.ItemCount()
}
