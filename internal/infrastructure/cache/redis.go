package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"lending-engine/internal/domain/emi"
)

func OpenRedis(addr string, db int) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return r, nil
}

// RedisStatsCache is a best-effort read-through cache for loan stats.
// Every failure degrades to a cache miss; it never surfaces errors.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisStatsCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStatsCache {
	return &RedisStatsCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "RedisStatsCache"),
	}
}

func statsKey(loanID int64) string {
	return fmt.Sprintf("loan:%d:stats", loanID)
}

func (c *RedisStatsCache) GetStats(ctx context.Context, loanID int64) (*emi.LoanStats, bool) {
	payload, err := c.client.Get(ctx, statsKey(loanID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "Failed to read stats from cache", "loan_id", loanID, "error", err)
		}
		return nil, false
	}

	var stats emi.LoanStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		c.logger.WarnContext(ctx, "Failed to decode cached stats", "loan_id", loanID, "error", err)
		return nil, false
	}
	return &stats, true
}

func (c *RedisStatsCache) SetStats(ctx context.Context, loanID int64, stats *emi.LoanStats) {
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, statsKey(loanID), payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Failed to cache stats", "loan_id", loanID, "error", err)
	}
}

func (c *RedisStatsCache) InvalidateStats(ctx context.Context, loanID int64) {
	if err := c.client.Del(ctx, statsKey(loanID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "Failed to invalidate cached stats", "loan_id", loanID, "error", err)
	}
}
