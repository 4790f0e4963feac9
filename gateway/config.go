// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package gateway is the HTTP surface of the gate: validation endpoints,
// the tool registry API, policy rule administration, and the audit trail.
package gateway

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"axonflow/toolgate/shared/types"
)

// Config holds the gateway configuration.
type Config struct {
	// Port is the HTTP listen port.
	// Default: 8080
	Port string `json:"port" yaml:"port"`

	// DatabaseURL is the PostgreSQL connection string. Empty runs the
	// gateway without persistence: policy rules come from built-ins only
	// and the audit trail stays in memory.
	DatabaseURL string `json:"database_url" yaml:"database_url"`

	// QueryBackendDriver is the SQL driver for the guarded query backend,
	// the data source validated queries run against. Supported: postgres,
	// mysql. Default: postgres
	QueryBackendDriver string `json:"query_backend_driver" yaml:"query_backend_driver"`

	// QueryBackendURL is the connection string for the guarded query
	// backend. Empty falls back to DatabaseURL, sharing one database for
	// metadata and data.
	QueryBackendURL string `json:"query_backend_url" yaml:"query_backend_url"`

	// RedisAddr is the Redis address for the shared decision cache.
	// Empty uses the in-process cache.
	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`

	// DecisionCacheTTL is how long cached verdicts live in Redis.
	// Default: 24h
	DecisionCacheTTL time.Duration `json:"decision_cache_ttl" yaml:"decision_cache_ttl"`

	// AuthEnabled requires a bearer token on API routes.
	// Default: false (self-hosted deployments run without auth)
	AuthEnabled bool `json:"auth_enabled" yaml:"auth_enabled"`

	// JWTSecret signs and verifies bearer tokens. Required when
	// AuthEnabled is true.
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`

	// PolicyDisabled turns off capability policy entirely. This is an
	// explicit operator decision; scripts still get structure-checked.
	// Default: false
	PolicyDisabled bool `json:"policy_disabled" yaml:"policy_disabled"`

	// MaxScriptSteps bounds interpreter steps per script call.
	// Zero means unbounded. Default: 10000000
	MaxScriptSteps uint64 `json:"max_script_steps" yaml:"max_script_steps"`

	// AuditQueueSize is the async audit queue depth. Negative means
	// synchronous writes. Default: 1000
	AuditQueueSize int `json:"audit_queue_size" yaml:"audit_queue_size"`

	// AuditWorkers is the number of async audit writers. Default: 2
	AuditWorkers int `json:"audit_workers" yaml:"audit_workers"`

	// AllowedOrigins is the CORS allow list. Default: ["*"]
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Port:               "8080",
		QueryBackendDriver: "postgres",
		DecisionCacheTTL:   24 * time.Hour,
		MaxScriptSteps:     10_000_000,
		AuditQueueSize:     1000,
		AuditWorkers:       2,
		AllowedOrigins:     []string{"*"},
	}
}

// Environment variable names for gateway configuration.
const (
	EnvPort               = "TOOLGATE_PORT"
	EnvDatabaseURL        = "TOOLGATE_DATABASE_URL"
	EnvQueryBackendDriver = "TOOLGATE_QUERY_BACKEND_DRIVER"
	EnvQueryBackendURL    = "TOOLGATE_QUERY_BACKEND_URL"
	EnvRedisAddr          = "TOOLGATE_REDIS_ADDR"
	EnvAuthEnabled        = "TOOLGATE_AUTH_ENABLED"
	EnvJWTSecret          = "TOOLGATE_JWT_SECRET"
	EnvPolicyDisabled     = "TOOLGATE_POLICY_DISABLED"
	EnvMaxScriptSteps     = "TOOLGATE_MAX_SCRIPT_STEPS"
)

// LoadConfig reads a YAML config file over the defaults, then applies
// environment overrides. A missing path loads defaults plus environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	// Managed deployments never run open: auth on, verdicts shared.
	if deployment := types.DetectDeployment(); deployment.RequireAuth {
		cfg.AuthEnabled = true
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPort); v != "" {
		c.Port = v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv(EnvQueryBackendDriver); v != "" {
		c.QueryBackendDriver = v
	}
	if v := os.Getenv(EnvQueryBackendURL); v != "" {
		c.QueryBackendURL = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv(EnvAuthEnabled); v != "" {
		c.AuthEnabled = isTruthy(v)
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv(EnvPolicyDisabled); v != "" {
		c.PolicyDisabled = isTruthy(v)
	}
	if v := os.Getenv(EnvMaxScriptSteps); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.MaxScriptSteps = n
		}
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	switch c.QueryBackendDriver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported query backend driver %q", c.QueryBackendDriver)
	}
	if c.AuthEnabled && c.JWTSecret == "" {
		return fmt.Errorf("auth is enabled but no JWT secret is configured")
	}
	if c.AuthEnabled && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret too short (%d chars, need 32+)", len(c.JWTSecret))
	}
	return nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
