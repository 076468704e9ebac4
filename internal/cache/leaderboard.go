// Package cache provides a Redis-backed cache for the leaderboard query.
// The cached totals are invalidated on every ledger append so readers never
// observe a stale leaderboard.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/audithq/contest-engine/internal/models"
)

const (
	leaderboardKey = "contest-engine:leaderboard"
	defaultTTL     = 5 * time.Minute
)

// LeaderboardCache caches rating totals in Redis
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache connects to Redis and returns a leaderboard cache
func NewLeaderboardCache(address, password string, db int) (*LeaderboardCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &LeaderboardCache{client: client, ttl: defaultTTL}, nil
}

// Get returns the cached totals and whether the cache was warm.
// Redis failures are logged and reported as a miss; the caller falls back
// to the repository.
func (c *LeaderboardCache) Get(ctx context.Context) ([]models.RatingTotal, bool) {
	data, err := c.client.Get(ctx, leaderboardKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("leaderboard cache read failed", "error", err)
		}
		return nil, false
	}

	var totals []models.RatingTotal
	if err := json.Unmarshal(data, &totals); err != nil {
		slog.Warn("leaderboard cache decode failed", "error", err)
		return nil, false
	}

	return totals, true
}

// Set stores the totals with a TTL as a safety net against missed
// invalidations
func (c *LeaderboardCache) Set(ctx context.Context, totals []models.RatingTotal) {
	data, err := json.Marshal(totals)
	if err != nil {
		slog.Warn("leaderboard cache encode failed", "error", err)
		return
	}

	if err := c.client.Set(ctx, leaderboardKey, data, c.ttl).Err(); err != nil {
		slog.Warn("leaderboard cache write failed", "error", err)
	}
}

// Invalidate drops the cached leaderboard. Called after every ledger append.
func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, leaderboardKey).Err(); err != nil {
		slog.Warn("leaderboard cache invalidation failed", "error", err)
	}
}

// Ping verifies Redis connectivity
func (c *LeaderboardCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *LeaderboardCache) Close() error {
	return c.client.Close()
}
