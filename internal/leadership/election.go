/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package leadership elects a single instance, through a Redis lease, to run
// jobs that must not be duplicated across replicas.
package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/toptech5419/homebake/internal/telemetry"
)

const (
	defaultElectionKey     = "homebake:leader:announcer"
	defaultLeaseDuration   = 15 * time.Second
	defaultRenewalInterval = 5 * time.Second
)

// releaseScript deletes the lease only while this instance still owns it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// ElectionConfig configures leader election behavior.
type ElectionConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ElectionKey is the Redis key holding the current leader's instance ID.
	ElectionKey string

	// LeaseDuration is how long a lease stays valid without renewal.
	LeaseDuration time.Duration

	// RenewalInterval is how often the lease is acquired or renewed.
	RenewalInterval time.Duration

	InstanceID string
}

// DefaultConfig returns default election configuration.
func DefaultConfig() ElectionConfig {
	return ElectionConfig{
		RedisAddr:       "localhost:6379",
		ElectionKey:     defaultElectionKey,
		LeaseDuration:   defaultLeaseDuration,
		RenewalInterval: defaultRenewalInterval,
		InstanceID:      uuid.NewString(),
	}
}

// Election manages distributed leader election using Redis.
type Election struct {
	client *redis.Client
	logger zerolog.Logger
	config ElectionConfig

	mu       sync.RWMutex
	isLeader bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewElection connects to Redis and returns an election that has not yet
// campaigned.
func NewElection(config ElectionConfig, logger zerolog.Logger) (*Election, error) {
	defaults := DefaultConfig()
	if config.ElectionKey == "" {
		config.ElectionKey = defaults.ElectionKey
	}
	if config.LeaseDuration <= 0 {
		config.LeaseDuration = defaults.LeaseDuration
	}
	if config.RenewalInterval <= 0 || config.RenewalInterval >= config.LeaseDuration {
		config.RenewalInterval = config.LeaseDuration / 3
	}
	if config.InstanceID == "" {
		config.InstanceID = defaults.InstanceID
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info().
		Str("redis_addr", config.RedisAddr).
		Str("instance_id", config.InstanceID).
		Msg("connected to Redis for leader election")

	return newElection(client, config, logger), nil
}

func newElection(client *redis.Client, config ElectionConfig, logger zerolog.Logger) *Election {
	return &Election{
		client: client,
		logger: logger.With().Str("component", "leader_election").Logger(),
		config: config,
	}
}

// Start campaigns in the background until ctx is done or Stop is called.
func (e *Election) Start(ctx context.Context) {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	e.mu.Unlock()

	e.logger.Info().
		Str("instance_id", e.config.InstanceID).
		Dur("lease_duration", e.config.LeaseDuration).
		Msg("starting leader election")

	go e.campaignLoop(ctx)
}

// Stop ends the campaign, releases a held lease and closes the client.
func (e *Election) Stop() error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	if e.IsLeader() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.client.Eval(ctx, releaseScript, []string{e.config.ElectionKey}, e.config.InstanceID).Err(); err != nil {
			e.logger.Error().Err(err).Msg("failed to release leadership lock")
		}
		e.setLeader(false)
	}

	return e.client.Close()
}

// IsLeader reports whether this instance currently holds the lease.
func (e *Election) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

// InstanceID identifies this instance in the election.
func (e *Election) InstanceID() string {
	return e.config.InstanceID
}

// Leader returns the instance ID holding the lease, empty when vacant.
func (e *Election) Leader(ctx context.Context) (string, error) {
	id, err := e.client.Get(ctx, e.config.ElectionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get leader: %w", err)
	}
	return id, nil
}

func (e *Election) campaignLoop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.config.RenewalInterval)
	defer ticker.Stop()

	e.attempt(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.attempt(ctx)
		}
	}
}

func (e *Election) attempt(ctx context.Context) {
	acquired, err := e.acquire(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Error().Err(err).Msg("failed to acquire leadership lock")
		}
		e.setLeader(false)
		return
	}
	e.setLeader(acquired)
}

// acquire takes the lease when vacant, or renews it when already held.
func (e *Election) acquire(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.config.ElectionKey, e.config.InstanceID, e.config.LeaseDuration).Result()
	if err != nil {
		return false, fmt.Errorf("set lock: %w", err)
	}
	if ok {
		return true, nil
	}

	current, err := e.Leader(ctx)
	if err != nil || current != e.config.InstanceID {
		return false, err
	}
	if err := e.client.Expire(ctx, e.config.ElectionKey, e.config.LeaseDuration).Err(); err != nil {
		return false, fmt.Errorf("renew lock: %w", err)
	}
	return true, nil
}

func (e *Election) setLeader(isLeader bool) {
	e.mu.Lock()
	changed := e.isLeader != isLeader
	e.isLeader = isLeader
	e.mu.Unlock()
	if !changed {
		return
	}

	id := e.config.InstanceID
	if isLeader {
		e.logger.Info().Str("instance_id", id).Msg("acquired leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(id).Set(1)
		telemetry.LeaderElectionChanges.WithLabelValues(id, "acquired").Inc()
	} else {
		e.logger.Warn().Str("instance_id", id).Msg("lost leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(id).Set(0)
		telemetry.LeaderElectionChanges.WithLabelValues(id, "lost").Inc()
	}
}
