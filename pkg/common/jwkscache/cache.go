package jwkscache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Cache provides JWKS retrieval for an external identity provider. Key sets
// are fetched on first use and refreshed in the background.
type Cache interface {
	Get(ctx context.Context, url string) (jwk.Set, error)
	// Refresh forces a fetch, e.g. after a token names an unknown kid.
	Refresh(ctx context.Context, url string) (jwk.Set, error)
}

type autoRefreshCache struct {
	mu         sync.Mutex
	cache      *jwk.Cache
	minRefresh time.Duration
}

// New returns a cache whose background refresh stops when ctx is done.
// minRefresh bounds how often a URL is re-fetched regardless of its
// Cache-Control headers.
func New(ctx context.Context, minRefresh time.Duration) Cache {
	return &autoRefreshCache{
		cache:      jwk.NewCache(ctx),
		minRefresh: minRefresh,
	}
}

func (c *autoRefreshCache) register(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache.IsRegistered(url) {
		return nil
	}
	if err := c.cache.Register(url, jwk.WithMinRefreshInterval(c.minRefresh)); err != nil {
		return fmt.Errorf("jwkscache: register %s: %w", url, err)
	}
	return nil
}

func (c *autoRefreshCache) Get(ctx context.Context, url string) (jwk.Set, error) {
	if err := c.register(url); err != nil {
		return nil, err
	}
	return c.cache.Get(ctx, url)
}

func (c *autoRefreshCache) Refresh(ctx context.Context, url string) (jwk.Set, error) {
	if err := c.register(url); err != nil {
		return nil, err
	}
	return c.cache.Refresh(ctx, url)
}
