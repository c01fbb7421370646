// Package config provides configuration parsing for the attendance query service.
//
// It handles both command-line flags and environment variables, with flags taking
// precedence over environment variables. The Config struct contains all runtime
// configuration for the service:
//   - Dataset location and store timeout
//   - Index and cache toggles (USE_INDEX, USE_CACHE accept 0/1 or true/false)
//   - Cache backend and Redis connection settings
//   - Logging and TLS
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	if err := cfg.Validate(); err != nil {
//		// exit
//	}
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/HatiCode/attendbench/pkg/cache"
	"github.com/HatiCode/attendbench/pkg/records"
	"github.com/HatiCode/attendbench/pkg/tls"
)

// Config holds all query service configuration.
type Config struct {
	Listen       string
	DBPath       string
	StoreTimeout time.Duration
	LogFormat    string
	LogLevel     string

	UseIndex bool
	UseCache bool
	// CacheTTL is in whole seconds, matching the CACHE_TTL variable.
	CacheTTL      int
	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TLS tls.Config
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Environment variables are used as fallbacks when flags are not provided.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":5000"), "HTTP listen address")
	flag.StringVar(&cfg.DBPath, "db-path", getEnv("DB_PATH", "data/db_1k.sqlite3"), "SQLite dataset path")
	flag.DurationVar(&cfg.StoreTimeout, "store-timeout", getEnvDuration("STORE_TIMEOUT", records.DefaultTimeout), "Per-query store timeout")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.BoolVar(&cfg.UseIndex, "use-index", getEnvBool("USE_INDEX", false), "Create the (user_id, date) index at start-up; drop it when false")
	flag.BoolVar(&cfg.UseCache, "use-cache", getEnvBool("USE_CACHE", false), "Serve repeated queries from the result cache")
	flag.IntVar(&cfg.CacheTTL, "cache-ttl", getEnvInt("CACHE_TTL", int(cache.DefaultTTL/time.Second)), "Cache entry TTL in seconds")
	flag.StringVar(&cfg.CacheBackend, "cache-backend", getEnv("CACHE_BACKEND", cache.BackendMemory), "Cache backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.Parse()

	return cfg
}

// Validate checks values that flags alone cannot constrain.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address cannot be empty")
	}
	if c.DBPath == "" {
		return errors.New("db path cannot be empty")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("store timeout must be > 0, got %v", c.StoreTimeout)
	}
	if c.UseCache && c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be > 0 seconds when the cache is enabled, got %d", c.CacheTTL)
	}
	if c.CacheBackend != cache.BackendMemory && c.CacheBackend != cache.BackendRedis {
		return fmt.Errorf("invalid cache backend %q (must be memory or redis)", c.CacheBackend)
	}
	if c.CacheBackend == cache.BackendRedis && c.RedisAddr == "" {
		return errors.New("redis address is required when cache backend is redis")
	}
	if err := c.TLS.Validate(true); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	return nil
}

// CacheConfig converts the cache settings for cache.New.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Enabled:       c.UseCache,
		TTL:           time.Duration(c.CacheTTL) * time.Second,
		Backend:       c.CacheBackend,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
