// Package redis provides the Redis-backed cache for per-user task statistics.
// Entries are JSON snapshots keyed by user ID and expire after a TTL; every
// task mutation invalidates the affected user's entry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/tasktrack-api/internal/config"
	"github.com/phrazzld/tasktrack-api/internal/domain"
)

// DefaultPrefix namespaces stats keys.
const DefaultPrefix = "tasktrack:stats:"

// Counters tracks cache effectiveness.
type Counters struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Sets          uint64 `json:"sets"`
	Invalidations uint64 `json:"invalidations"`
	Errors        uint64 `json:"errors"`
}

// StatsCache stores domain.UserStats snapshots in Redis.
type StatsCache struct {
	client   *goredis.Client
	prefix   string
	ttl      time.Duration
	counters Counters
}

// NewClient builds a Redis client from configuration.
func NewClient(cfg config.CacheConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewStatsCache wraps client. An empty prefix uses DefaultPrefix.
func NewStatsCache(client *goredis.Client, prefix string, ttl time.Duration) *StatsCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &StatsCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *StatsCache) key(userID int64) string {
	return c.prefix + strconv.FormatInt(userID, 10)
}

// Get returns the cached stats for userID. A miss is (nil, false, nil).
func (c *StatsCache) Get(ctx context.Context, userID int64) (*domain.UserStats, bool, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			atomic.AddUint64(&c.counters.Misses, 1)
			return nil, false, nil
		}
		atomic.AddUint64(&c.counters.Errors, 1)
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var stats domain.UserStats
	if err := json.Unmarshal(data, &stats); err != nil {
		atomic.AddUint64(&c.counters.Errors, 1)
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	atomic.AddUint64(&c.counters.Hits, 1)
	return &stats, true, nil
}

// Set stores stats under its user ID with the cache TTL.
func (c *StatsCache) Set(ctx context.Context, stats domain.UserStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		atomic.AddUint64(&c.counters.Errors, 1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := c.client.Set(ctx, c.key(stats.UserID), data, c.ttl).Err(); err != nil {
		atomic.AddUint64(&c.counters.Errors, 1)
		return fmt.Errorf("cache set error: %w", err)
	}

	atomic.AddUint64(&c.counters.Sets, 1)
	return nil
}

// Invalidate drops the entry for userID.
func (c *StatsCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		atomic.AddUint64(&c.counters.Errors, 1)
		return fmt.Errorf("cache delete error: %w", err)
	}

	atomic.AddUint64(&c.counters.Invalidations, 1)
	return nil
}

// Snapshot returns the current counters.
func (c *StatsCache) Snapshot() Counters {
	return Counters{
		Hits:          atomic.LoadUint64(&c.counters.Hits),
		Misses:        atomic.LoadUint64(&c.counters.Misses),
		Sets:          atomic.LoadUint64(&c.counters.Sets),
		Invalidations: atomic.LoadUint64(&c.counters.Invalidations),
		Errors:        atomic.LoadUint64(&c.counters.Errors),
	}
}

// Ping checks the Redis connection.
func (c *StatsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *StatsCache) Close() error {
	return c.client.Close()
}
