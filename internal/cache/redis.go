package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nvoronina/flightbooking/config"
	"github.com/nvoronina/flightbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache holds the flight list cache and short-lived advisory seat
// locks. Both are optimizations: losing either never corrupts state,
// the Postgres constraints stay authoritative.
type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL: flightsTTL,
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

func (c *RedisCache) AcquireSeatLock(ctx context.Context, flightID int64, seat string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, seatLockKey(flightID, seat), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseSeatLock(ctx context.Context, flightID int64, seat string) error {
	return c.client.Del(ctx, seatLockKey(flightID, seat)).Err()
}

func flightsKey() string {
	return "cache:flights"
}

func seatLockKey(flightID int64, seat string) string {
	return fmt.Sprintf("lock:flight:%d:seat:%s", flightID, seat)
}
