package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campusride/rideshare/config"
	"github.com/campusride/rideshare/internal/domain"
	"github.com/redis/go-redis/v9"
)

const ridesVersionKey = "cache:rides:version"

type RedisCache struct {
	client     redis.Cmdable
	searchTTL  time.Duration
	profileTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, searchTTL, profileTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		searchTTL, profileTTL,
	)
}

func NewRedisCacheWithClient(client redis.Cmdable, searchTTL, profileTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, searchTTL: searchTTL, profileTTL: profileTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetRides returns (nil, nil) on a miss.
func (c *RedisCache) GetRides(ctx context.Context, filter domain.RideFilter) ([]domain.Ride, error) {
	key, err := c.searchKey(ctx, filter)
	if err != nil {
		return nil, err
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var rides []domain.Ride
	if err := json.Unmarshal(data, &rides); err != nil {
		return nil, err
	}
	return rides, nil
}

func (c *RedisCache) SetRides(ctx context.Context, filter domain.RideFilter, rides []domain.Ride) error {
	key, err := c.searchKey(ctx, filter)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(rides)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.searchTTL).Err()
}

// InvalidateRides bumps the version embedded in every search key; old
// entries are never read again and age out on their TTL.
func (c *RedisCache) InvalidateRides(ctx context.Context) error {
	return c.client.Incr(ctx, ridesVersionKey).Err()
}

func (c *RedisCache) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	data, err := c.client.Get(ctx, profileKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *RedisCache) SetProfile(ctx context.Context, profile *domain.Profile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileKey(profile.UserID), payload, c.profileTTL).Err()
}

func (c *RedisCache) searchKey(ctx context.Context, filter domain.RideFilter) (string, error) {
	version, err := c.client.Get(ctx, ridesVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	// After is truncated to the minute so concurrent searches share entries.
	return fmt.Sprintf("cache:rides:v%d:%s:%s:%d", version,
		strings.ToLower(filter.From), strings.ToLower(filter.To),
		filter.After.Truncate(time.Minute).Unix()), nil
}

func profileKey(userID string) string {
	return "cache:profile:" + userID
}
