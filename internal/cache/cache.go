/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for shift reports.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/toptech5419/homebake/internal/telemetry"
)

// DefaultReportTTL bounds how stale a cached report may be when an
// invalidation event is missed.
const DefaultReportTTL = 2 * time.Minute

// KeyShiftReport prefixes report keys: + shift + ":" + window start (unix seconds).
const KeyShiftReport = "homebake:cache:report:"

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ReportTTL time.Duration

	// DisableOnError trips the circuit breaker on the first Redis error.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		ReportTTL:      DefaultReportTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A nil or
// disabled Cache reports every lookup as a miss.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New creates a new cache instance. An unreachable Redis yields a disabled
// cache rather than an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.ReportTTL <= 0 {
		cfg.ReportTTL = DefaultReportTTL
	}
	logger = logger.With().Str("component", "cache").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return Disabled(logger), nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")
	return &Cache{client: client, logger: logger, config: cfg}, nil
}

// Disabled returns a cache that never stores anything.
func Disabled(logger zerolog.Logger) *Cache {
	return &Cache{logger: logger, config: DefaultConfig(), disabled: true}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c != nil && c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

// deletePattern deletes all keys matching a pattern using SCAN.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			return nil
		}
	}
}

// ShiftReportKey names the cache entry for one shift window.
func ShiftReportKey(shift string, windowStart time.Time) string {
	return fmt.Sprintf("%s%s:%d", KeyShiftReport, strings.ToLower(shift), windowStart.Unix())
}

// GetShiftReport loads a cached report for the window starting at windowStart into dest.
func (c *Cache) GetShiftReport(ctx context.Context, shift string, windowStart time.Time, dest any) bool {
	if !c.IsAvailable() {
		return false
	}
	found, err := c.get(ctx, ShiftReportKey(shift, windowStart), dest)
	switch {
	case err != nil:
		telemetry.ReportCacheTotal.WithLabelValues("error").Inc()
		return false
	case !found:
		telemetry.ReportCacheTotal.WithLabelValues("miss").Inc()
		return false
	}
	telemetry.ReportCacheTotal.WithLabelValues("hit").Inc()
	c.logger.Debug().Str("shift", shift).Msg("shift report cache hit")
	return true
}

// SetShiftReport caches report for the window starting at windowStart.
func (c *Cache) SetShiftReport(ctx context.Context, shift string, windowStart time.Time, report any) error {
	if !c.IsAvailable() {
		return nil
	}
	return c.set(ctx, ShiftReportKey(shift, windowStart), report, c.config.ReportTTL)
}

// InvalidateShiftReports drops every cached window of shift, or of all
// shifts when shift is empty.
func (c *Cache) InvalidateShiftReports(ctx context.Context, shift string) error {
	pattern := KeyShiftReport + "*"
	if shift != "" {
		pattern = KeyShiftReport + strings.ToLower(shift) + ":*"
	}
	return c.deletePattern(ctx, pattern)
}
