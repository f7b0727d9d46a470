// Package cache memoizes issue listings.
//
// Keys carry the current value of a namespace version counter. Invalidate
// bumps the counter, which orphans every listing cached under the old value;
// orphans expire through their TTL. The cache is an optimization only: any
// backend failure falls through to computing the result directly.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"civicsync-be/metrics"
)

const (
	DefaultTTL = 10 * time.Minute

	versionKey = "issues:version"
	keyPrefix  = "issues:list"
)

type ListCache struct {
	backend Backend
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*ListCache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *ListCache) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *ListCache) { c.metrics = m }
}

// New returns a list cache over backend. A nil backend disables caching.
func New(backend Backend, opts ...Option) *ListCache {
	c := &ListCache{backend: backend, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key digests the query together with the viewer's scope key, so two viewers
// with different scopes never share an entry. query must be JSON-encodable
// with a stable field order (a struct, not a map).
func Key(scopeKey string, query any) (string, error) {
	b, err := json.Marshal(query)
	if err != nil {
		return "", err
	}
	h := xxhash.New()
	_, _ = h.WriteString(scopeKey)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(b)
	return scopeKey + ":" + strconv.FormatUint(h.Sum64(), 16), nil
}

func (c *ListCache) version(ctx context.Context) (string, error) {
	b, err := c.backend.Get(ctx, versionKey)
	if errors.Is(err, ErrMiss) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetOrCompute returns the cached value for key, or runs compute and stores
// its result. compute's own error is returned as is and nothing is cached.
func GetOrCompute[T any](ctx context.Context, c *ListCache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if c == nil || c.backend == nil {
		return compute(ctx)
	}

	v, err := c.version(ctx)
	if err != nil {
		c.degraded("read cache version", err)
		return compute(ctx)
	}
	fullKey := keyPrefix + ":v" + v + ":" + key

	raw, err := c.backend.Get(ctx, fullKey)
	switch {
	case err == nil:
		var cached T
		decodeErr := json.Unmarshal(raw, &cached)
		if decodeErr == nil {
			c.metrics.CacheLookup("hit")
			return cached, nil
		}
		c.degraded("decode cached listing", decodeErr)
	case errors.Is(err, ErrMiss):
		c.metrics.CacheLookup("miss")
	default:
		c.degraded("read cached listing", err)
	}

	out, err := compute(ctx)
	if err != nil {
		return out, err
	}
	raw, err = json.Marshal(out)
	if err != nil {
		c.degraded("encode listing", err)
		return out, nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := c.backend.Set(ctx, fullKey, raw, ttl); err != nil {
		c.degraded("store listing", err)
	}
	return out, nil
}

// Invalidate drops every cached listing by moving to a new namespace version.
func (c *ListCache) Invalidate(ctx context.Context) {
	if c == nil || c.backend == nil {
		return
	}
	if _, err := c.backend.Incr(ctx, versionKey); err != nil {
		c.degraded("bump cache version", err)
	}
}

func (c *ListCache) degraded(op string, err error) {
	c.metrics.CacheLookup("error")
	c.logger.Warn("list cache degraded", "op", op, "error", err)
}
