package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hermitai/server/internal/agent/model"
	errx "github.com/hermitai/server/internal/core/error"
	logx "github.com/hermitai/server/pkg/logger"
)

// RedisToolUsageRepository keeps per-user tool counters in a Redis hash.
type RedisToolUsageRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisToolUsageRepository(rdb redis.Cmdable, ttl time.Duration) *RedisToolUsageRepository {
	return &RedisToolUsageRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisToolUsageRepository) usageKey(userID string) string {
	return fmt.Sprintf("tool_usage:%s", userID)
}

func (r *RedisToolUsageRepository) RecordUse(ctx context.Context, userID, tool string) error {
	key := r.usageKey(userID)

	if err := r.rdb.HIncrBy(ctx, key, tool, 1).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Str("tool_name", tool).Msg("failed to increment tool usage")
		return errx.WrapRedis(err)
	}
	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on tool usage key")
		}
	}
	return nil
}

func (r *RedisToolUsageRepository) Usage(ctx context.Context, userID string) (map[string]int64, error) {
	key := r.usageKey(userID)

	rows, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]int64{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load tool usage from redis")
		return nil, errx.WrapRedis(err)
	}

	out := make(map[string]int64, len(rows))
	for tool, raw := range rows {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logx.Warn().Err(err).Str("key", key).Str("tool_name", tool).Msg("skipping malformed usage counter")
			continue
		}
		out[tool] = n
	}
	return out, nil
}

var _ model.ToolUsageRepository = (*RedisToolUsageRepository)(nil)
