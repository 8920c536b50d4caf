// Package revocation implements a write-behind token-revocation cache:
// reads are served from an in-memory map so the auth middleware's
// hot path never blocks on Redis, while writes land in the map
// immediately and persist to Redis in the background.
package revocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultKeyPrefix = "token:revoked:"

// Cache is a write-behind revocation cache backed by Redis.
type Cache struct {
	client          *redis.Client
	keyPrefix       string
	cleanupInterval time.Duration
	logger          *zap.Logger

	mu    sync.RWMutex
	cache map[string]time.Time

	onRevoke func(tokenID string, expiresAt time.Time)
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithOnRevoke registers a hook invoked synchronously whenever Revoke
// marks a token, before the background Redis persist starts. Intended
// for cross-cutting observers such as audit logging; panics are not
// recovered here, so hooks must not panic.
func WithOnRevoke(hook func(tokenID string, expiresAt time.Time)) Option {
	return func(c *Cache) { c.onRevoke = hook }
}

// WithKeyPrefix overrides the default "token:revoked:" Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) { c.keyPrefix = prefix }
}

// WithCleanupInterval overrides the default 5-minute sweep interval.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *Cache) { c.cleanupInterval = d }
}

// WithLogger attaches a zap logger; a no-op logger is used if omitted.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New constructs a Cache. Call Start to rehydrate from Redis and begin
// the background sweeper.
func New(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{
		client:          client,
		keyPrefix:       defaultKeyPrefix,
		cleanupInterval: 5 * time.Minute,
		logger:          zap.NewNop(),
		cache:           make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start rehydrates the in-memory cache from Redis and launches the
// background expiry sweeper. It returns immediately; rehydration and
// sweeping run in a goroutine for the lifetime of ctx.
func (c *Cache) Start(ctx context.Context) {
	go func() {
		if err := c.rehydrate(ctx); err != nil {
			c.logger.Warn("revocation cache rehydration failed, starting empty", zap.Error(err))
		} else {
			c.logger.Info("revocation cache rehydrated", zap.Int("count", c.Count()))
		}
		c.sweepLoop(ctx)
	}()
}

// IsRevoked reports whether tokenID is currently revoked. This is a
// direct in-memory read and performs no I/O.
func (c *Cache) IsRevoked(tokenID string) bool {
	c.mu.RLock()
	expiresAt, ok := c.cache[tokenID]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	return time.Now().Before(expiresAt)
}

// Revoke marks tokenID as revoked until expiresAt. The in-memory cache
// is updated synchronously; the Redis write happens in a background
// goroutine so callers (e.g. a logout handler) never block on it.
func (c *Cache) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) {
	c.mu.Lock()
	c.cache[tokenID] = expiresAt
	c.mu.Unlock()

	if c.onRevoke != nil {
		c.onRevoke(tokenID, expiresAt)
	}

	go func() {
		if err := c.persist(context.Background(), tokenID, expiresAt); err != nil {
			c.logger.Error("failed to persist token revocation to redis",
				zap.String("token_id", tokenID), zap.Error(err))
		}
	}()
}

// Count returns the number of entries currently cached, including any
// not yet swept after expiry.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Cache) key(tokenID string) string {
	return c.keyPrefix + tokenID
}

func (c *Cache) persist(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.key(tokenID), "1", ttl).Err()
}

func (c *Cache) rehydrate(ctx context.Context) error {
	keys, err := c.client.Keys(ctx, c.keyPrefix+"*").Result()
	if err != nil {
		return fmt.Errorf("scanning revocation keys: %w", err)
	}

	now := time.Now()
	loaded := make(map[string]time.Time, len(keys))
	for _, key := range keys {
		ttl, err := c.client.TTL(ctx, key).Result()
		if err != nil || ttl <= 0 {
			continue
		}
		tokenID := key[len(c.keyPrefix):]
		loaded[tokenID] = now.Add(ttl)
	}

	c.mu.Lock()
	for id, exp := range loaded {
		c.cache[id] = exp
	}
	c.mu.Unlock()
	return nil
}

func (c *Cache) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	removed := 0
	for id, exp := range c.cache {
		if !now.Before(exp) {
			delete(c.cache, id)
			removed++
		}
	}
	remaining := len(c.cache)
	c.mu.Unlock()

	if removed > 0 {
		c.logger.Debug("swept expired token revocations",
			zap.Int("removed", removed), zap.Int("remaining", remaining))
	}
}
