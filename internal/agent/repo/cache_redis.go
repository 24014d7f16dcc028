package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hermitai/server/internal/agent/model"
	errx "github.com/hermitai/server/internal/core/error"
	logx "github.com/hermitai/server/pkg/logger"
)

// RedisToolCache stores successful tool outputs for a short TTL.
type RedisToolCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisToolCache(rdb redis.Cmdable, ttl time.Duration) *RedisToolCache {
	return &RedisToolCache{rdb: rdb, ttl: ttl}
}

// cacheKey hashes the arguments; encoding/json sorts map keys so equal
// argument sets always produce the same key.
func (c *RedisToolCache) cacheKey(tool string, args map[string]string) (string, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal tool args: %w", err)
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("tool_cache:%s:%s", tool, hex.EncodeToString(sum[:])), nil
}

func (c *RedisToolCache) Get(ctx context.Context, tool string, args map[string]string) (string, bool, error) {
	key, err := c.cacheKey(tool, args)
	if err != nil {
		return "", false, err
	}
	out, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to read tool cache")
		return "", false, errx.WrapRedis(err)
	}
	return out, true, nil
}

func (c *RedisToolCache) Set(ctx context.Context, tool string, args map[string]string, output string) error {
	key, err := c.cacheKey(tool, args)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key, output, c.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to write tool cache")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.ToolResultCache = (*RedisToolCache)(nil)
