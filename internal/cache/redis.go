package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/thejas/flightbook/config"
	"github.com/thejas/flightbook/internal/domain"
)

type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
	dedupeTTL  time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL, dedupeTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL: flightsTTL,
		dedupeTTL:  dedupeTTL,
	}
}

func (c *RedisCache) GetFlights(ctx context.Context) ([]domain.Flight, error) {
	data, err := c.client.Get(ctx, flightsKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var flights []domain.Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, err
	}
	return flights, nil
}

func (c *RedisCache) SetFlights(ctx context.Context, flights []domain.Flight) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, flightsKey(), payload, c.flightsTTL).Err()
}

func (c *RedisCache) InvalidateFlights(ctx context.Context) error {
	return c.client.Del(ctx, flightsKey()).Err()
}

// Seen reports whether key was already marked applied. It is a read only;
// marking happens separately so a crash mid-operation leaves the key
// unmarked and the event retryable.
func (c *RedisCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, seenKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSeen records key as applied. Call only after the underlying effect
// has committed.
func (c *RedisCache) MarkSeen(ctx context.Context, key string) error {
	return c.client.Set(ctx, seenKey(key), "1", c.dedupeTTL).Err()
}

func flightsKey() string {
	return "cache:flights"
}

func seenKey(key string) string {
	return fmt.Sprintf("seen:%s", key)
}
