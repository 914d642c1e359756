package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/utafrali/finsearch/internal/domain"
)

const (
	// KeyPrefix prefixes the per-shop cache key.
	KeyPrefix = "fin_product_streams_"

	// Tag marks every entry written by this cache.
	Tag = "FINDOLOGIC"

	// DefaultLifetime is how long a resolution stays fresh.
	DefaultLifetime = 24 * time.Hour
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsearch_stream_cache_lookups_total",
			Help: "Product stream cache lookups by result",
		},
		[]string{"result"},
	)
	resolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finsearch_stream_resolve_duration_seconds",
			Help:    "Duration of full product stream resolutions",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)
)

// Resolver computes the stream membership below a set of root categories.
type Resolver interface {
	Resolve(ctx context.Context, roots []*domain.Category, sc domain.ShopContext) (domain.StreamMembership, error)
}

// Config tunes the cache.
type Config struct {
	// Lifetime is counted from the save time. Touching an entry never
	// makes it fresh for longer.
	Lifetime time.Duration
	// LockTTL bounds how long another process may hold the resolution lock
	// of a shop before this one resolves on its own.
	LockTTL time.Duration
}

// DefaultConfig returns the standard lifetime and lock lease.
func DefaultConfig() Config {
	return Config{Lifetime: DefaultLifetime, LockTTL: 2 * time.Minute}
}

// Cache memoizes product stream resolution per shop key.
//
// Concurrent misses for the same shop within one process share a single
// resolution. When the store implements Locker, processes sharing it also
// take turns resolving.
type Cache struct {
	store    Store
	resolver Resolver
	cfg      Config
	logger   *slog.Logger
	group    singleflight.Group
	now      func() time.Time
	poll     time.Duration
}

// New creates a cache. Zero config fields take their defaults.
func New(store Store, resolver Resolver, cfg Config, logger *slog.Logger) *Cache {
	def := DefaultConfig()
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = def.Lifetime
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	return &Cache{
		store:    store,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		poll:     100 * time.Millisecond,
	}
}

// Key returns the store key of a shop.
func Key(shopKey string) string {
	return KeyPrefix + shopKey
}

// GetOrResolve returns the cached membership of shopKey. A fresh entry has
// its store lease extended by its remaining lifetime so the store does not
// evict it before it goes stale; a missing or stale one is resolved and saved.
func (c *Cache) GetOrResolve(ctx context.Context, shopKey string, roots []*domain.Category, sc domain.ShopContext) (domain.StreamMembership, error) {
	key := Key(shopKey)

	m, ok, err := c.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		lookupsTotal.WithLabelValues("hit").Inc()
		return m, nil
	}

	lookupsTotal.WithLabelValues("miss").Inc()
	return c.resolveShared(ctx, key, roots, sc, false)
}

// Refresh resolves shopKey unconditionally and stores the result.
func (c *Cache) Refresh(ctx context.Context, shopKey string, roots []*domain.Category, sc domain.ShopContext) (domain.StreamMembership, error) {
	lookupsTotal.WithLabelValues("refresh").Inc()
	return c.resolveShared(ctx, Key(shopKey), roots, sc, true)
}

// Invalidate drops every cached resolution when the store supports tags.
func (c *Cache) Invalidate(ctx context.Context) error {
	cleaner, ok := c.store.(TagCleaner)
	if !ok {
		return nil
	}
	if err := cleaner.CleanTag(ctx, Tag); err != nil {
		return fmt.Errorf("invalidate product stream cache: %w", err)
	}
	return nil
}

// lookup loads a fresh entry and extends its lease.
func (c *Cache) lookup(ctx context.Context, key string) (domain.StreamMembership, bool, error) {
	modified, ok, err := c.store.Test(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("test %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	remaining := c.cfg.Lifetime - c.now().Sub(modified)
	if remaining <= 0 {
		return nil, false, nil
	}

	data, ok, err := c.store.Load(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var m domain.StreamMembership
	if err := json.Unmarshal(data, &m); err != nil {
		c.logger.WarnContext(ctx, "discarding unreadable cache entry", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false, nil
	}

	if err := c.store.Touch(ctx, key, remaining); err != nil {
		return nil, false, fmt.Errorf("touch %s: %w", key, err)
	}
	return m, true, nil
}

// resolveShared runs one resolution per key at a time in this process.
// Callers arriving during a resolution receive its result.
func (c *Cache) resolveShared(ctx context.Context, key string, roots []*domain.Category, sc domain.ShopContext, force bool) (domain.StreamMembership, error) {
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// A resolution may have finished between our miss and this call.
		if !force {
			if m, ok, err := c.lookup(ctx, key); err != nil || ok {
				return m, err
			}
		}
		return c.resolveLocked(ctx, key, roots, sc, force)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.DebugContext(ctx, "joined running product stream resolution", slog.String("key", key))
	}
	return v.(domain.StreamMembership), nil
}

// resolveLocked takes the store lock when there is one. A process that
// loses the race waits for the winner's entry instead of walking the tree
// itself, unless force is set or the lock lease runs out.
func (c *Cache) resolveLocked(ctx context.Context, key string, roots []*domain.Category, sc domain.ShopContext, force bool) (domain.StreamMembership, error) {
	locker, ok := c.store.(Locker)
	if !ok {
		return c.resolveAndSave(ctx, key, roots, sc)
	}

	release, acquired, err := locker.Lock(ctx, key, c.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if acquired {
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				c.logger.WarnContext(ctx, "failed to release resolution lock", slog.String("key", key), slog.String("error", err.Error()))
			}
		}()
		// Another process may have saved and released just before we locked.
		if !force {
			if m, ok, err := c.lookup(ctx, key); err != nil || ok {
				return m, err
			}
		}
		return c.resolveAndSave(ctx, key, roots, sc)
	}

	if !force {
		if m, ok, err := c.await(ctx, key); err != nil || ok {
			return m, err
		}
	}
	return c.resolveAndSave(ctx, key, roots, sc)
}

// await polls for an entry written by another process until the lock lease
// would have expired.
func (c *Cache) await(ctx context.Context, key string) (domain.StreamMembership, bool, error) {
	deadline := time.NewTimer(c.cfg.LockTTL)
	defer deadline.Stop()
	tick := time.NewTicker(c.poll)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-deadline.C:
			return nil, false, nil
		case <-tick.C:
			m, ok, err := c.lookup(ctx, key)
			if err != nil || ok {
				return m, ok, err
			}
		}
	}
}

func (c *Cache) resolveAndSave(ctx context.Context, key string, roots []*domain.Category, sc domain.ShopContext) (domain.StreamMembership, error) {
	start := time.Now()
	m, err := c.resolver.Resolve(ctx, roots, sc)
	if err != nil {
		return nil, fmt.Errorf("resolve product streams: %w", err)
	}
	resolveDuration.Observe(time.Since(start).Seconds())

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode product streams: %w", err)
	}
	if err := c.store.Save(ctx, key, data, []string{Tag}, c.cfg.Lifetime); err != nil {
		return nil, fmt.Errorf("save %s: %w", key, err)
	}

	c.logger.InfoContext(ctx, "product streams resolved",
		slog.String("key", key),
		slog.Int("products", len(m)),
		slog.Duration("took", time.Since(start)),
	)
	return m, nil
}
