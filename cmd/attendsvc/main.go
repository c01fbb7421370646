// Command attendsvc serves attendance range queries for benchmarking.
//
// At start-up it opens the SQLite dataset, brings the (user_id, date) index
// into the configured state and builds the result cache. Only then does it
// start listening, so no request observes a half-applied configuration.
//
// The service exposes:
//   - GET /attendance?user=<id>&start=<date>&end=<date> - Range query (alias /api/attendance)
//   - GET /plan?user=<id>&start=<date>&end=<date> - Query plan (alias /api/plan)
//   - GET /health - Configuration and store reachability
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	attendsvc -db-path=data/db_100k.sqlite3 -use-index -use-cache -cache-ttl=60
//
// Environment variables:
//
//	LISTEN         - HTTP listen address (default: :5000)
//	DB_PATH        - SQLite dataset (default: data/db_1k.sqlite3)
//	USE_INDEX      - 1 to create the index, 0 to drop it (default: 0)
//	USE_CACHE      - 1 to enable the result cache (default: 0)
//	CACHE_TTL      - Cache TTL in seconds (default: 60)
//	CACHE_BACKEND  - memory or redis (default: memory)
//	REDIS_ADDR     - Redis address for the redis backend
//	STORE_TIMEOUT  - Per-query store timeout (default: 2s)
//	LOG_LEVEL      - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT     - Logging format: text, json (default: text)
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HatiCode/attendbench/cmd/attendsvc/config"
	"github.com/HatiCode/attendbench/cmd/attendsvc/metrics"
	"github.com/HatiCode/attendbench/cmd/attendsvc/router"
	"github.com/HatiCode/attendbench/pkg/cache"
	"github.com/HatiCode/attendbench/pkg/httpx"
	"github.com/HatiCode/attendbench/pkg/logging"
	"github.com/HatiCode/attendbench/pkg/query"
	"github.com/HatiCode/attendbench/pkg/records"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting attendsvc",
		"version", version,
		"db", cfg.DBPath,
		"use_index", cfg.UseIndex,
		"use_cache", cfg.UseCache,
		"cache_ttl", cfg.CacheTTL,
	)

	store, err := records.Open(cfg.DBPath, cfg.StoreTimeout, logger)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			logger.Error("dataset not found; generate it with benchctl seed", "path", cfg.DBPath, "error", err)
		} else {
			logger.Error("failed to open dataset", "path", cfg.DBPath, "error", err)
		}
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	index := records.NewIndexController(store, cfg.UseIndex, logger)
	err = index.Apply(startupCtx)
	cancelStartup()
	if err != nil {
		logger.Error("failed to apply index configuration", "error", err)
		os.Exit(1)
	}

	resultCache, err := cache.New(cfg.CacheConfig(), logger)
	if err != nil {
		logger.Error("failed to create result cache", "error", err)
		os.Exit(1)
	}
	if closer, ok := resultCache.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("failed to close cache", "error", err)
			}
		}()
	}

	svc := query.New(store, index, resultCache, metrics.New(prometheus.DefaultRegisterer), logger)

	mux := router.SetupRoutes(svc, prometheus.DefaultGatherer, logger)
	handler := httpx.Chain(mux,
		httpx.RecoveryMiddleware(logger),
		httpx.RequestIDMiddleware,
		httpx.LoggingMiddleware(logger),
	)
	httpServer := httpx.NewServer("attendsvc", cfg.Listen, handler, logger)

	serverErr := make(chan error, 1)
	if cfg.TLS.Enabled {
		tlsConfig, err := cfg.TLS.ServerConfig()
		if err != nil {
			logger.Error("failed to create TLS config", "error", err)
			os.Exit(1)
		}
		httpServer.SetTLSConfig(tlsConfig)
		go func() {
			serverErr <- httpServer.StartTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		}()
	} else {
		go func() {
			serverErr <- httpServer.Start()
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
