// internal/service/promo/infrastructure/redis_cache.go
package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"promohub/internal/pkg/redis"
	"promohub/internal/service/promo/domain"
)

const promoCacheKeyPrefix = "promo:cache:"

// RedisPromoCache 是读路径的旁路缓存，每次提交成功的变更都会让对应键失效。
// 缓存只是加速，任何 Redis 故障都不应该影响主流程，由调用方降级处理。
type RedisPromoCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPromoCache(client *redis.Client, ttl time.Duration) *RedisPromoCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisPromoCache{client: client, ttl: ttl}
}

func (c *RedisPromoCache) Get(ctx context.Context, id string) (*domain.Promo, error) {
	raw, err := c.client.Get(ctx, promoCacheKeyPrefix+id)
	if err != nil {
		return nil, errors.Wrap(err, "promo cache get failed")
	}
	if raw == "" {
		return nil, nil
	}

	var promo domain.Promo
	if err := json.Unmarshal([]byte(raw), &promo); err != nil {
		// 缓存内容损坏按未命中处理，顺手清掉。
		_ = c.client.Del(ctx, promoCacheKeyPrefix+id)
		return nil, nil
	}
	return &promo, nil
}

func (c *RedisPromoCache) Set(ctx context.Context, promo *domain.Promo) error {
	raw, err := json.Marshal(promo)
	if err != nil {
		return errors.Wrap(err, "failed to encode promo for cache")
	}
	return c.client.Set(ctx, promoCacheKeyPrefix+promo.ID, string(raw), c.ttl)
}

func (c *RedisPromoCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, promoCacheKeyPrefix+id)
}
