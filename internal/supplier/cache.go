package supplier

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/bom-enrich/internal/model"
)

// CachedFetcher wraps a Fetcher with an in-memory TTL cache. A fresh hit
// is reported as a normal success with Cached set. When the upstream
// fails and an expired entry still exists, the stale data is served
// alongside the failure status so downstream steps can continue on a
// degraded basis.
type CachedFetcher struct {
	inner Fetcher
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry

	nowFunc func() time.Time
}

type cacheEntry struct {
	data     *model.PartData
	asOf     time.Time
	storedAt time.Time
}

// NewCachedFetcher wraps inner with a TTL cache.
func NewCachedFetcher(inner Fetcher, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		nowFunc: time.Now,
	}
}

func (c *CachedFetcher) Name() string { return c.inner.Name() }

func (c *CachedFetcher) Fetch(ctx context.Context, mpn, manufacturer string) model.SupplierResponse {
	key := mpn + "|" + manufacturer
	now := c.nowFunc()

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	if ok && now.Sub(entry.storedAt) < c.ttl {
		data := *entry.data
		asOf := entry.asOf
		return model.SupplierResponse{
			Supplier: c.inner.Name(),
			Status:   model.SupplierSuccess,
			Data:     &data,
			Cached:   true,
			DataAsOf: &asOf,
		}
	}

	resp := c.inner.Fetch(ctx, mpn, manufacturer)

	if resp.Status == model.SupplierSuccess && resp.Data != nil {
		asOf := now
		if resp.DataAsOf != nil {
			asOf = *resp.DataAsOf
		}
		data := *resp.Data
		c.mu.Lock()
		c.entries[key] = cacheEntry{data: &data, asOf: asOf, storedAt: now}
		c.mu.Unlock()
		return resp
	}

	// Upstream failed: serve the stale entry, if any, without hiding the
	// failure status.
	if ok && (resp.Status == model.SupplierError || resp.Status == model.SupplierRateLimited) {
		data := *entry.data
		asOf := entry.asOf
		resp.Data = &data
		resp.Cached = true
		resp.DataAsOf = &asOf
		zap.L().Info("serving stale supplier data",
			zap.String("supplier", c.inner.Name()),
			zap.String("mpn", mpn),
			zap.Time("as_of", asOf),
		)
	}
	return resp
}
