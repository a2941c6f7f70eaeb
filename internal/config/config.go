/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	BaseURL       string
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string // shared secret of the hosted auth provider
	TokenTTL      time.Duration
	MetricsBind   string

	// Report cache (Redis)
	CacheEnabled   bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ReportCacheTTL time.Duration

	// Event relay (NATS)
	NATSEnabled bool
	NATSURL     string
	NATSToken   string
	InstanceID  string

	// Shift boundary announcements
	AnnouncerEnabled      bool
	LeaderElectionEnabled bool // requires Redis; only the lease holder announces

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"HOMEBAKE_ENV", "NODE_ENV"}, "development"),
		HTTPBind:      getEnv("HOMEBAKE_HTTP_BIND", "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"HOMEBAKE_HTTP_PORT", "PORT"}, 8080),
		BaseURL:       getEnv("HOMEBAKE_BASE_URL", ""),
		DBBackend:     DatabaseBackend(getEnv("HOMEBAKE_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:         getEnvAny([]string{"HOMEBAKE_DB_DSN", "DATABASE_URL"}, ""),
		JWTSigningKey: getEnvAny([]string{"HOMEBAKE_JWT_SIGNING_KEY", "SUPABASE_JWT_SECRET"}, ""),
		TokenTTL:      time.Duration(getEnvInt("HOMEBAKE_TOKEN_TTL_MINUTES", 60)) * time.Minute,
		MetricsBind:   getEnv("HOMEBAKE_METRICS_BIND", "127.0.0.1:9000"),

		CacheEnabled:   getEnvBoolAny([]string{"HOMEBAKE_CACHE_ENABLED"}, false),
		RedisAddr:      getEnv("HOMEBAKE_REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("HOMEBAKE_REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("HOMEBAKE_REDIS_DB", 0),
		ReportCacheTTL: time.Duration(getEnvInt("HOMEBAKE_REPORT_CACHE_TTL_SECONDS", 60)) * time.Second,

		NATSEnabled: getEnvBoolAny([]string{"HOMEBAKE_NATS_ENABLED"}, false),
		NATSURL:     getEnv("HOMEBAKE_NATS_URL", "nats://localhost:4222"),
		NATSToken:   getEnv("HOMEBAKE_NATS_TOKEN", ""),
		InstanceID:  getEnv("HOMEBAKE_INSTANCE_ID", ""),

		AnnouncerEnabled:      getEnvBoolAny([]string{"HOMEBAKE_ANNOUNCER_ENABLED"}, true),
		LeaderElectionEnabled: getEnvBoolAny([]string{"HOMEBAKE_LEADER_ELECTION_ENABLED"}, false),

		TracingEnabled:    getEnvBoolAny([]string{"HOMEBAKE_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnv("HOMEBAKE_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"HOMEBAKE_TRACING_SAMPLE_RATE"}, 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("HOMEBAKE_DB_DSN or DATABASE_URL must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("HOMEBAKE_JWT_SIGNING_KEY or SUPABASE_JWT_SECRET must be provided")
	}

	if cfg.TracingSampleRate < 0 || cfg.TracingSampleRate > 1 {
		return nil, fmt.Errorf("HOMEBAKE_TRACING_SAMPLE_RATE must be between 0 and 1, got %v", cfg.TracingSampleRate)
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if len(cfg.JWTSigningKey) < 32 {
			return nil, fmt.Errorf("HOMEBAKE_JWT_SIGNING_KEY must be at least 32 characters in production")
		}
		if cfg.DBBackend == DatabaseSQLite {
			return nil, fmt.Errorf("sqlite backend is not supported in production")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c != nil && strings.EqualFold(c.Environment, "development")
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"NEXT_PUBLIC_SUPABASE_URL":      "the data backend is configured with HOMEBAKE_DB_DSN",
		"NEXT_PUBLIC_SUPABASE_ANON_KEY": "anonymous keys are not used; issue API keys instead",
		"SUPABASE_SERVICE_ROLE_KEY":     "service role keys are not used; set HOMEBAKE_JWT_SIGNING_KEY",
		"SUPABASE_JWT_SECRET":           "use HOMEBAKE_JWT_SIGNING_KEY",
		"DATABASE_URL":                  "use HOMEBAKE_DB_DSN",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
