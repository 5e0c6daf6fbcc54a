// Package query is the request cache behind the dashboard's read models.
//
// Entries are keyed by a logical resource name scoped to one user. A fetch
// with a positive stale time is served from the store while fresh; a zero
// stale time always refetches. Concurrent fetches of one key share a single
// call. Invalidate drops the entry so the next fetch goes to the backend.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/foxzi/coldreach/internal/metrics"
)

// Store holds encoded query results with a time to live
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key names one cached resource for one user
type Key struct {
	Scope    string
	Resource string
}

func (k Key) String() string {
	return "coldreach:query:" + k.Scope + ":" + k.Resource
}

// Client coordinates fetches against a Store
type Client struct {
	store  Store
	logger *slog.Logger
	group  singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

// New creates a query client over store
func New(store Store, logger *slog.Logger) *Client {
	return &Client{
		store:       store,
		logger:      logger.With("component", "query"),
		generations: make(map[string]uint64),
	}
}

func (c *Client) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

// Fetch returns the cached value for key while it is fresh, otherwise it
// calls fn and caches the result for staleTime. Errors are never cached.
func Fetch[T any](ctx context.Context, c *Client, key Key, staleTime time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	k := key.String()

	if staleTime > 0 {
		data, ok, err := c.store.Get(ctx, k)
		if err != nil {
			c.logger.Warn("cache read failed", "key", k, "error", err)
		}
		if ok {
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				metrics.IncCacheLookup(key.Resource, true)
				return v, nil
			}
			c.logger.Warn("cache entry undecodable", "key", k)
		}
	}
	metrics.IncCacheLookup(key.Resource, false)

	gen := c.generation(k)
	res, err, _ := c.group.Do(k, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		v, err := fn(fctx)
		if err != nil {
			return nil, err
		}
		if staleTime > 0 && c.generation(k) == gen {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", key.Resource, err)
			}
			if err := c.store.Set(fctx, k, data, staleTime); err != nil {
				c.logger.Warn("cache write failed", "key", k, "error", err)
			}
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

// Invalidate drops the cached value for key. A fetch already in flight
// for key will not write its result back.
func (c *Client) Invalidate(ctx context.Context, key Key) {
	k := key.String()

	c.mu.Lock()
	c.generations[k]++
	c.mu.Unlock()

	c.group.Forget(k)
	if err := c.store.Delete(ctx, k); err != nil {
		c.logger.Warn("cache invalidate failed", "key", k, "error", err)
	}
	metrics.IncCacheInvalidation(key.Resource)
}

// Close releases the underlying store
func (c *Client) Close() error {
	return c.store.Close()
}
