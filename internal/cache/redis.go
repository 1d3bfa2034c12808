package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dwelligence/internal/model"

	"github.com/phuslu/log"
	"github.com/redis/go-redis/v9"
)

// RedisCache is a CommuteCache shared between server instances. Expiry is
// delegated to Redis key TTLs.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache wraps a connected client.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// GetMany fetches all keys with a single MGET.
func (c *RedisCache) GetMany(ctx context.Context, keys []Key) (map[Key]model.CommuteRecord, error) {
	found := make(map[Key]model.CommuteRecord, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}

	values, err := c.rdb.MGet(ctx, names...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read commute cache: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var r model.CommuteRecord
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			log.Warn().Err(err).Str("key", names[i]).Msg("dropping undecodable commute cache entry")
			continue
		}
		found[keys[i]] = r
	}
	return found, nil
}

// Set stores a record with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key Key, record model.CommuteRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode commute record: %w", err)
	}
	if err := c.rdb.Set(ctx, key.String(), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write commute cache: %w", err)
	}
	return nil
}
