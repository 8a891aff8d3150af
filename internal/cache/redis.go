package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisBalances stores decimal balances as strings in Redis.
type RedisBalances struct {
	client *redis.Client
}

// NewRedisBalances wraps client as a ledger balance cache.
func NewRedisBalances(client *redis.Client) *RedisBalances {
	return &RedisBalances{client: client}
}

// Get returns ok == false on a miss.
func (r *RedisBalances) Get(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("decode cached balance %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisBalances) Set(ctx context.Context, key string, value decimal.Decimal, ttl time.Duration) error {
	return r.client.Set(ctx, key, value.String(), ttl).Err()
}

func (r *RedisBalances) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
