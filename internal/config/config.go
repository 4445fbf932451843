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
	Environment string
	HTTPBind    string
	HTTPPort    int
	InstanceID  string

	// Schedule synchronization
	ScheduleURL         string // EXPO_SCHEDULE_URL: http(s) URL, file:// URL or local path
	ScheduleField       string // EXPO_SCHEDULE_FIELD (default: "presentations")
	FetchTimeout        time.Duration
	PollInterval        time.Duration // EXPO_POLL_INTERVAL_MS (default: 10000)
	TickInterval        time.Duration // EXPO_TICK_INTERVAL_MS (default: 1000)
	SuppressWhileActive bool          // EXPO_SUPPRESS_WHILE_ACTIVE (default: true)

	// Countdown
	PresentationDuration time.Duration // EXPO_PRESENTATION_DURATION_SECONDS (default: 600)

	// Project catalog; empty uses the built-in expo catalog
	ProjectsFile string

	// Poll journal. An empty DSN disables the journal.
	DBBackend DatabaseBackend
	DBDSN     string

	// Operator endpoints are only mounted when a signing key is set.
	JWTSigningKey string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Shared document cache. An empty address disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Event fan-out. An empty URL keeps events in-process.
	NATSURL           string
	NATSToken         string
	NATSSubjectPrefix string

	LogBufferSize int

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"EXPO_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"EXPO_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"EXPO_HTTP_PORT", "PORT"}, 8080),
		InstanceID:  getEnvAny([]string{"EXPO_INSTANCE_ID", "HOSTNAME"}, ""),

		ScheduleURL:         getEnvAny([]string{"EXPO_SCHEDULE_URL"}, ""),
		ScheduleField:       getEnvAny([]string{"EXPO_SCHEDULE_FIELD"}, "presentations"),
		FetchTimeout:        time.Duration(getEnvIntAny([]string{"EXPO_FETCH_TIMEOUT_MS"}, 5000)) * time.Millisecond,
		PollInterval:        time.Duration(getEnvIntAny([]string{"EXPO_POLL_INTERVAL_MS"}, 10000)) * time.Millisecond,
		TickInterval:        time.Duration(getEnvIntAny([]string{"EXPO_TICK_INTERVAL_MS"}, 1000)) * time.Millisecond,
		SuppressWhileActive: getEnvBoolAny([]string{"EXPO_SUPPRESS_WHILE_ACTIVE"}, true),

		PresentationDuration: time.Duration(getEnvIntAny([]string{"EXPO_PRESENTATION_DURATION_SECONDS"}, 600)) * time.Second,

		ProjectsFile: getEnvAny([]string{"EXPO_PROJECTS_FILE"}, ""),

		DBBackend: DatabaseBackend(getEnvAny([]string{"EXPO_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:     getEnvAny([]string{"EXPO_DB_DSN"}, ""),

		JWTSigningKey: getEnvAny([]string{"EXPO_JWT_SIGNING_KEY"}, ""),

		TracingEnabled:    getEnvBoolAny([]string{"EXPO_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"EXPO_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"EXPO_TRACING_SAMPLE_RATE"}, 1.0),

		RedisAddr:     getEnvAny([]string{"EXPO_REDIS_ADDR", "REDIS_ADDR"}, ""),
		RedisPassword: getEnvAny([]string{"EXPO_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"EXPO_REDIS_DB"}, 0),
		CacheTTL:      time.Duration(getEnvIntAny([]string{"EXPO_CACHE_TTL_MS"}, 9000)) * time.Millisecond,

		NATSURL:           getEnvAny([]string{"EXPO_NATS_URL", "NATS_URL"}, ""),
		NATSToken:         getEnvAny([]string{"EXPO_NATS_TOKEN", "NATS_TOKEN"}, ""),
		NATSSubjectPrefix: getEnvAny([]string{"EXPO_NATS_SUBJECT_PREFIX"}, "expo.events"),

		LogBufferSize: getEnvIntAny([]string{"EXPO_LOG_BUFFER_SIZE"}, 1000),
	}

	if cfg.ScheduleURL == "" {
		return nil, fmt.Errorf("EXPO_SCHEDULE_URL must be provided")
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("EXPO_POLL_INTERVAL_MS must be positive")
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("EXPO_TICK_INTERVAL_MS must be positive")
	}
	if cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("EXPO_FETCH_TIMEOUT_MS must be positive")
	}
	if cfg.PresentationDuration <= 0 {
		return nil, fmt.Errorf("EXPO_PRESENTATION_DURATION_SECONDS must be positive")
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.JWTSigningKey == "" {
			return nil, fmt.Errorf("EXPO_JWT_SIGNING_KEY must be provided in production")
		}
		if cfg.TracingSampleRate < 0 || cfg.TracingSampleRate > 1 {
			return nil, fmt.Errorf("EXPO_TRACING_SAMPLE_RATE must be between 0 and 1")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"SCHEDULE_URL":                  "use EXPO_SCHEDULE_URL",
		"POLL_INTERVAL_MS":              "use EXPO_POLL_INTERVAL_MS",
		"TICK_INTERVAL_MS":              "use EXPO_TICK_INTERVAL_MS",
		"PRESENTATION_DURATION_SECONDS": "use EXPO_PRESENTATION_DURATION_SECONDS",
		"JWT_SIGNING_KEY":               "use EXPO_JWT_SIGNING_KEY",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// JournalEnabled reports whether polls are persisted.
func (c *Config) JournalEnabled() bool {
	return c != nil && c.DBDSN != ""
}

// OperatorEnabled reports whether the admin endpoints are mounted.
func (c *Config) OperatorEnabled() bool {
	return c != nil && c.JWTSigningKey != ""
}

// ListenAddr is the HTTP listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
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
