package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore 基于 INCR + EXPIRE NX 的计数，多实例共享。
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 使用已有客户端创建 Store。
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "pwreset:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Hit(ctx context.Context, key string, d time.Duration) (int, time.Duration, error) {
	k := s.prefix + key
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, d)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("redis hit: %w", err)
	}
	resetIn := ttl.Val()
	if resetIn < 0 {
		resetIn = d
	}
	return int(incr.Val()), resetIn, nil
}
