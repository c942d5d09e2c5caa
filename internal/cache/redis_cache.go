package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = TranscriptTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Lookup(ctx context.Context, audio []byte) (string, bool, error) {
	s, err := c.rdb.Get(ctx, TranscriptKey(audio)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// an empty entry is useless to the caller; treat as a miss
	if s == "" {
		return "", false, nil
	}
	return s, true, nil
}

func (c *RedisCache) Store(ctx context.Context, audio []byte, text string) error {
	if text == "" {
		return nil
	}
	return c.rdb.Set(ctx, TranscriptKey(audio), text, c.ttl).Err()
}
