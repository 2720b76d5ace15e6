// Package cache keeps upstream plan lookups in Redis so batch analysis does
// not hammer the federal portal.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

const keyPrefix = "vigia:plan:"

// Connect opens a client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx2).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// store is the part of *redis.Client the cache uses.
type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type entry struct {
	Absent bool                   `json:"absent"`
	Plan   *amendments.PlanStatus `json:"plan,omitempty"`
	Raw    json.RawMessage        `json:"raw,omitempty"`
}

// PlanCache wraps a PlanSource. Absent plans are cached too; failures are
// not. Redis errors only bypass the cache.
type PlanCache struct {
	next   amendments.PlanSource
	rdb    store
	ttl    time.Duration
	logger *slog.Logger
}

func NewPlanCache(next amendments.PlanSource, rdb store, ttl time.Duration, logger *slog.Logger) *PlanCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanCache{next: next, rdb: rdb, ttl: ttl, logger: logger.With("component", "plan_cache")}
}

func (c *PlanCache) FetchPlanStatus(ctx context.Context, code string) (*amendments.PlanStatus, error) {
	key := keyPrefix + code

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var e entry
		if jerr := json.Unmarshal([]byte(val), &e); jerr == nil {
			if e.Absent {
				return nil, nil
			}
			if e.Plan != nil {
				e.Plan.Raw = e.Raw
				return e.Plan, nil
			}
		}
		c.logger.Warn("discarding unreadable cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("plan cache unavailable", "error", err)
	}

	plan, err := c.next.FetchPlanStatus(ctx, code)
	if err != nil {
		return nil, err
	}

	e := entry{Absent: plan == nil, Plan: plan}
	if plan != nil && len(plan.Raw) > 0 && json.Valid(plan.Raw) {
		e.Raw = plan.Raw
	}
	b, err := json.Marshal(e)
	if err == nil {
		err = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("failed to cache plan", "key", key, "error", err)
	}
	return plan, nil
}
