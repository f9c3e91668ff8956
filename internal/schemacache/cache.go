package schemacache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a best-effort read-through cache for schema text. Misses and
// backend failures both read as absence; callers recompute and write back.
// Two concurrent requests may both recompute and write the same schema; the
// duplicate write is harmless and tolerated.
type Cache interface {
	Get(ctx context.Context, sourceID string) (string, bool)
	Set(ctx context.Context, sourceID, schemaText string)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(cfg RedisConfig) *RedisCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: ttl,
	}
}

func (c *RedisCache) Get(ctx context.Context, sourceID string) (string, bool) {
	value, err := c.client.Get(ctx, key(sourceID)).Result()
	if err != nil {
		// A broken cache is indistinguishable from a cold one.
		return "", false
	}
	return value, true
}

func (c *RedisCache) Set(ctx context.Context, sourceID, schemaText string) {
	_ = c.client.Set(ctx, key(sourceID), schemaText, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func key(sourceID string) string {
	return "querychat:schema:" + sourceID
}

// Noop disables caching; the schema is recomputed per request.
type Noop struct{}

func (Noop) Get(_ context.Context, _ string) (string, bool) { return "", false }
func (Noop) Set(_ context.Context, _, _ string)             {}
