// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/toolgate/shared/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.AuthEnabled)
	assert.False(t, cfg.PolicyDisabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
policy_disabled: true
allowed_origins:
  - https://console.example.com
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.PolicyDisabled)
	assert.Equal(t, []string{"https://console.example.com"}, cfg.AllowedOrigins)
	// Untouched fields keep defaults.
	assert.Equal(t, DefaultConfig().MaxScriptSteps, cfg.MaxScriptSteps)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9090\"\n"), 0o600))

	t.Setenv(EnvPort, "7070")
	t.Setenv(EnvPolicyDisabled, "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.True(t, cfg.PolicyDisabled)
}

func TestQueryBackendConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "postgres", cfg.QueryBackendDriver)

	t.Setenv(EnvQueryBackendDriver, "mysql")
	t.Setenv(EnvQueryBackendURL, "analyst:pw@tcp(db:3306)/warehouse")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.QueryBackendDriver)
	assert.Equal(t, "analyst:pw@tcp(db:3306)/warehouse", cfg.QueryBackendURL)

	cfg.QueryBackendDriver = "sqlite3"
	assert.Error(t, cfg.Validate())
}

func TestValidateAuthRequiresSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AuthEnabled = true
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "short"
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestManagedDeploymentForcesAuth(t *testing.T) {
	t.Setenv(types.EnvDeploymentMode, "managed")

	// Managed mode without a secret must refuse to start.
	_, err := LoadConfig("")
	require.Error(t, err)

	t.Setenv(EnvJWTSecret, "0123456789abcdef0123456789abcdef")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.AuthEnabled)
}
