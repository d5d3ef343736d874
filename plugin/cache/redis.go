package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the Redis connection configuration.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection URL.
	URL        string
	KeyPrefix  string
	DefaultTTL time.Duration
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        "redis://localhost:6379/0",
		KeyPrefix:  "parksense:",
		DefaultTTL: time.Hour,
	}
}

// RedisCache is the shared second cache tier.
type RedisCache struct {
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Redis URL")
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	slog.InfoContext(ctx, "Redis cache connected", "addr", opts.Addr, "db", opts.DB)
	return NewRedisCacheWithClient(client, cfg), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, cfg RedisConfig) *RedisCache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	return &RedisCache{
		client:     client,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}
}

// Get returns the cached value. Connection failures are logged and reported
// as a miss.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "redis get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set stores value for ttl.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if err := r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Invalidate deletes key, or scans and deletes every key under a "prefix*" pattern.
func (r *RedisCache) Invalidate(ctx context.Context, pattern string) error {
	full := r.keyPrefix + pattern
	prefix, wildcard := cutWildcard(full)
	if !wildcard {
		return errors.Wrap(r.client.Del(ctx, full).Err(), "redis del")
	}

	iter := r.client.Scan(ctx, 0, escapeGlob(prefix)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "redis scan")
	}
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(r.client.Del(ctx, keys...).Err(), "redis del")
}

// Close closes the Redis connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

var _ CacheService = (*RedisCache)(nil)
