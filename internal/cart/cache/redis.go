package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fjod/era_store/internal/domain"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces cart entries in a Redis shared with other storefront data.
const KeyPrefix = "storefront:cart:"

const (
	defaultTTL    = 15 * time.Minute
	defaultJitter = 5 * time.Minute
)

// RedisCache stores one JSON document per cart key. Entries expire after ttl plus a random
// jitter so carts filled together do not all miss at once.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	jitter time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    defaultTTL,
		jitter: defaultJitter,
	}
}

func redisKey(cartKey string) string {
	return KeyPrefix + cartKey
}

func (r *RedisCache) expiry() time.Duration {
	if r.jitter <= 0 {
		return r.ttl
	}
	return r.ttl + rand.N(r.jitter)
}

func (r *RedisCache) Get(ctx context.Context, key string) (*domain.StoredCart, error) {
	raw, err := r.client.Get(ctx, redisKey(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("read cached cart %s: %w", key, err)
	}

	stored := &domain.StoredCart{}
	if err := json.Unmarshal(raw, stored); err != nil {
		return nil, fmt.Errorf("decode cached cart %s: %w", key, err)
	}
	return stored, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, stored *domain.StoredCart) error {
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", key, err)
	}
	if err := r.client.Set(ctx, redisKey(key), raw, r.expiry()).Err(); err != nil {
		return fmt.Errorf("cache cart %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("evict cart %s: %w", key, err)
	}
	return nil
}
