// Package redisx caches aggregate feed stats in Redis.
package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blackmichael/snippet-feed/internal/domain"
)

const statsKey = "snippet_feed:stats"

// DefaultStatsTTL bounds staleness when an invalidation is missed.
const DefaultStatsTTL = 5 * time.Minute

// Open connects to addr and verifies the connection.
func Open(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// StatsCache implements domain.StatsCache with a single JSON value.
type StatsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStatsCache caches stats in rdb for ttl.
func NewStatsCache(rdb *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &StatsCache{rdb: rdb, ttl: ttl}
}

// GetStats returns the cached stats. A missing key is a miss, not an error.
func (c *StatsCache) GetStats(ctx context.Context) (domain.Stats, bool, error) {
	raw, err := c.rdb.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Stats{}, false, nil
	}
	if err != nil {
		return domain.Stats{}, false, fmt.Errorf("get stats: %w", err)
	}

	var stats domain.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return domain.Stats{}, false, fmt.Errorf("unmarshal stats: %w", err)
	}
	return stats, true, nil
}

// SetStats stores stats with the configured TTL.
func (c *StatsCache) SetStats(ctx context.Context, stats domain.Stats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if err := c.rdb.Set(ctx, statsKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set stats: %w", err)
	}
	return nil
}

// InvalidateStats drops the cached entry.
func (c *StatsCache) InvalidateStats(ctx context.Context) error {
	if err := c.rdb.Del(ctx, statsKey).Err(); err != nil {
		return fmt.Errorf("delete stats: %w", err)
	}
	return nil
}
