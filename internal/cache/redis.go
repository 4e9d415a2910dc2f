package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mentorhub/matching/internal/config"
)

// TTLs for the read-through caches. The relational store stays the source of
// truth; redis only shields hot reads.
const (
	TopMatchesTTL    = 5 * time.Minute
	OverrideCountTTL = time.Minute
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}

// KeyForTopMatches generates the key holding a subject's cached top-match
// list for one algorithm version.
func (c *RedisCache) KeyForTopMatches(subjectID uint64, version string) string {
	return fmt.Sprintf("matches:top:%d:%s", subjectID, version)
}

// GetTopMatches returns the cached JSON list, or "" on a cache miss.
func (c *RedisCache) GetTopMatches(ctx context.Context, subjectID uint64, version string) (string, error) {
	val, err := c.Client.Get(ctx, c.KeyForTopMatches(subjectID, version)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil // cache miss
	}
	return val, err
}

// SetTopMatches stores a subject's serialized top-match list.
func (c *RedisCache) SetTopMatches(ctx context.Context, subjectID uint64, version, payload string) error {
	return c.Client.Set(ctx, c.KeyForTopMatches(subjectID, version), payload, TopMatchesTTL).Err()
}

// InvalidateTopMatches drops a subject's cached list after recalculation.
func (c *RedisCache) InvalidateTopMatches(ctx context.Context, subjectID uint64, version string) error {
	return c.Client.Del(ctx, c.KeyForTopMatches(subjectID, version)).Err()
}

// KeyForActiveOverrideCount is the coordinator dashboard's queue-depth key.
func (c *RedisCache) KeyForActiveOverrideCount() string {
	return "overrides:active:count"
}

func (c *RedisCache) UpdateActiveOverrideCount(ctx context.Context, count int64) error {
	return c.Client.Set(ctx, c.KeyForActiveOverrideCount(), count, OverrideCountTTL).Err()
}

// GetActiveOverrideCount returns (count, found). A miss is not an error;
// callers fall back to the database.
func (c *RedisCache) GetActiveOverrideCount(ctx context.Context) (int64, bool, error) {
	val, err := c.Client.Get(ctx, c.KeyForActiveOverrideCount()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil // treat garbage as a miss
	}
	return n, true, nil
}

// InvalidateActiveOverrideCount drops the cached queue depth after any write
// that changes it (create or decide).
func (c *RedisCache) InvalidateActiveOverrideCount(ctx context.Context) error {
	return c.Client.Del(ctx, c.KeyForActiveOverrideCount()).Err()
}
