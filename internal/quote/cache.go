package quote

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	expiresAt time.Time
	quote     Quote
}

// Cache wraps a Source with a per-symbol TTL. The resolution core stays
// uncached; this sits at the serving boundary so refresh-happy dashboard
// clients do not re-run the waterfall every few seconds.
// Unavailable sentinels are cached too, at a quarter of the TTL, so a
// dead symbol does not hammer the upstream but recovers quickly.
type Cache struct {
	Src Source
	TTL time.Duration

	mu    sync.RWMutex
	items map[string]cacheEntry
}

var _ Source = (*Cache)(nil)

func (c *Cache) Resolve(ctx context.Context, symbol string, at time.Time) (Quote, error) {
	if c.Src == nil || c.TTL <= 0 {
		return c.Src.Resolve(ctx, symbol, at)
	}
	sym := NormalizeSymbol(symbol)
	now := time.Now()

	c.mu.RLock()
	e, ok := c.items[sym]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.quote, nil
	}

	q, err := c.Src.Resolve(ctx, symbol, at)
	if err != nil {
		// Serve the stale entry rather than failing a refresh that the
		// previous cycle answered fine.
		if ok {
			return e.quote, nil
		}
		return Quote{}, err
	}

	ttl := c.TTL
	if q.Unavailable {
		ttl = c.TTL / 4
	}
	c.mu.Lock()
	if c.items == nil {
		c.items = make(map[string]cacheEntry)
	}
	c.items[sym] = cacheEntry{expiresAt: now.Add(ttl), quote: q}
	c.mu.Unlock()
	return q, nil
}
