// Package cache provides the time-bounded result cache that sits in front of
// the attendance range query.
//
// Two backends implement Cache: MemoryCache keeps entries in a process-local
// map and evicts them lazily on read, RedisCache stores them in Redis and lets
// the server expire them. TTL and the enabled flag are fixed at construction;
// a disabled cache never hits and ignores writes.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HatiCode/attendbench/pkg/records"
)

// DefaultTTL is used when a cache is enabled without an explicit TTL.
const DefaultTTL = 60 * time.Second

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Cache stores range query results keyed by records.Key.
// Implementations are safe for concurrent use without external locking.
type Cache interface {
	// Get returns the rows cached for key. found is false when caching is
	// disabled, the key is absent, or the entry is older than the TTL.
	Get(ctx context.Context, key records.Key) (rows []records.Record, found bool, err error)

	// Put stores rows for key with a fresh insertion time, replacing any
	// previous entry. It is a no-op when caching is disabled.
	Put(ctx context.Context, key records.Key, rows []records.Record) error

	Enabled() bool
	TTL() time.Duration
}

// Config selects and configures a cache backend.
type Config struct {
	Enabled bool
	TTL     time.Duration
	// Backend is BackendMemory (the default) or BackendRedis.
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New creates the backend named by cfg.Backend.
func New(cfg Config, logger *slog.Logger) (Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	switch cfg.Backend {
	case "", BackendMemory:
		logger.Info("using in-memory result cache", "enabled", cfg.Enabled, "ttl", cfg.TTL)
		return NewMemoryCache(cfg.Enabled, cfg.TTL), nil
	case BackendRedis:
		logger.Info("using redis result cache",
			"enabled", cfg.Enabled, "ttl", cfg.TTL, "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		rc, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Enabled, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (must be memory or redis)", cfg.Backend)
	}
}

// clone copies rows so cached entries stay immutable snapshots.
func clone(rows []records.Record) []records.Record {
	out := make([]records.Record, len(rows))
	copy(out, rows)
	return out
}
