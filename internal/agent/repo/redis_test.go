package repo

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	errx "github.com/hermitai/server/internal/core/error"
)

// fakeRedis implements the handful of commands the repositories use.
// Unused Cmdable methods panic through the nil embedded interface.
type fakeRedis struct {
	redis.Cmdable

	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	ttls    map[string]time.Duration
	failErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		strings: map[string]string{},
		hashes:  map[string]map[string]string{},
		ttls:    map[string]time.Duration{},
	}
}

func (f *fakeRedis) HIncrBy(_ context.Context, key, field string, incr int64) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return redis.NewIntResult(0, f.failErr)
	}
	if f.hashes[key] == nil {
		f.hashes[key] = map[string]string{}
	}
	n, _ := strconv.ParseInt(f.hashes[key][field], 10, 64)
	n += incr
	f.hashes[key][field] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return redis.NewMapStringStringResult(nil, f.failErr)
	}
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return redis.NewStringResult("", f.failErr)
	}
	v, ok := f.strings[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return redis.NewStatusResult("", f.failErr)
	}
	f.strings[key] = value.(string)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestToolUsageCounts(t *testing.T) {
	rdb := newFakeRedis()
	repo := NewRedisToolUsageRepository(rdb, 24*time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.RecordUse(ctx, "u1", "search_engine"))
	require.NoError(t, repo.RecordUse(ctx, "u1", "search_engine"))
	require.NoError(t, repo.RecordUse(ctx, "u1", "session_stats"))
	require.NoError(t, repo.RecordUse(ctx, "u2", "search_engine"))

	usage, err := repo.Usage(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"search_engine": 2, "session_stats": 1}, usage)
	require.Equal(t, 24*time.Hour, rdb.ttls["tool_usage:u1"])

	empty, err := repo.Usage(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestToolUsageRedisFailure(t *testing.T) {
	rdb := newFakeRedis()
	rdb.failErr = errors.New("connection refused")
	repo := NewRedisToolUsageRepository(rdb, time.Hour)

	err := repo.RecordUse(context.Background(), "u1", "search_engine")
	require.Error(t, err)
	require.Equal(t, 502, errx.StatusOf(err))
}

func TestToolCacheRoundTrip(t *testing.T) {
	rdb := newFakeRedis()
	cache := NewRedisToolCache(rdb, 10*time.Minute)
	ctx := context.Background()
	args := map[string]string{"query": "X price", "engine": "google"}

	_, hit, err := cache.Get(ctx, "search_engine", args)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, cache.Set(ctx, "search_engine", args, `{"organic":[]}`))

	out, hit, err := cache.Get(ctx, "search_engine", map[string]string{"engine": "google", "query": "X price"})
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, `{"organic":[]}`, out)

	_, hit, err = cache.Get(ctx, "search_engine", map[string]string{"query": "Y price"})
	require.NoError(t, err)
	require.False(t, hit)

	for key, ttl := range rdb.ttls {
		require.Contains(t, key, "tool_cache:search_engine:")
		require.Equal(t, 10*time.Minute, ttl)
	}
}
