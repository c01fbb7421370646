package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HatiCode/attendbench/pkg/records"
)

const redisKeyPrefix = "attendbench:cache:"

// RedisCache implements Cache on Redis. Entries are written with SET EX so
// Redis removes them once the TTL elapses; a missing key is a miss.
type RedisCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
	mu      sync.RWMutex
}

// NewRedisCache connects to Redis and verifies the connection with PING.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - ttl: entry lifetime (0 uses DefaultTTL)
func NewRedisCache(addr, password string, db int, enabled bool, ttl time.Duration) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisCache{
		client:  client,
		enabled: enabled,
		ttl:     ttl,
	}, nil
}

func redisKey(key records.Key) string {
	return redisKeyPrefix + key.String()
}

// Get fetches and decodes the rows cached for key.
func (r *RedisCache) Get(ctx context.Context, key records.Key) ([]records.Record, bool, error) {
	if !r.enabled {
		return nil, false, nil
	}

	client, err := r.conn()
	if err != nil {
		return nil, false, err
	}

	data, err := client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cache entry from redis: %w", err)
	}

	var rows []records.Record
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	return rows, true, nil
}

// Put encodes rows as JSON and stores them with the cache TTL.
func (r *RedisCache) Put(ctx context.Context, key records.Key, rows []records.Record) error {
	if !r.enabled {
		return nil
	}

	client, err := r.conn()
	if err != nil {
		return err
	}

	if rows == nil {
		rows = []records.Record{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := client.Set(ctx, redisKey(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry in redis: %w", err)
	}

	return nil
}

// Enabled reports whether the cache stores anything.
func (r *RedisCache) Enabled() bool { return r.enabled }

// TTL returns the entry lifetime passed to SET.
func (r *RedisCache) TTL() time.Duration { return r.ttl }

// Ping checks the Redis connection health.
func (r *RedisCache) Ping(ctx context.Context) error {
	client, err := r.conn()
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
// It is safe to call multiple times (idempotent).
func (r *RedisCache) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}

	return err
}

func (r *RedisCache) conn() (*redis.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return nil, redis.ErrClosed
	}
	return r.client, nil
}
