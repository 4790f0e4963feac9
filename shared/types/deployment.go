// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package types provides shared type definitions used across toolgate
// components. This file defines deployment mode configuration for
// self-hosted vs managed deployments.
package types

import "os"

// DeploymentMode represents the deployment type
type DeploymentMode string

const (
	// DeploymentModeSelfHosted is a single-operator deployment where the
	// gate and its callers share a trust boundary.
	DeploymentModeSelfHosted DeploymentMode = "selfhosted"

	// DeploymentModeManaged is a hosted deployment serving multiple
	// personas; API authentication is mandatory.
	DeploymentModeManaged DeploymentMode = "managed"
)

// EnvDeploymentMode selects the deployment mode at startup.
const EnvDeploymentMode = "TOOLGATE_DEPLOYMENT_MODE"

// String returns the string representation of the DeploymentMode
func (m DeploymentMode) String() string {
	return string(m)
}

// IsValid returns true if the DeploymentMode is a valid known value
func (m DeploymentMode) IsValid() bool {
	switch m {
	case DeploymentModeSelfHosted, DeploymentModeManaged:
		return true
	default:
		return false
	}
}

// DeploymentConfig contains deployment-specific settings that control
// authentication and cache sharing behavior.
type DeploymentConfig struct {
	// Mode is the deployment type (selfhosted or managed)
	Mode DeploymentMode `json:"mode"`

	// RequireAuth makes bearer tokens mandatory on API routes.
	RequireAuth bool `json:"require_auth"`

	// SharedDecisionCache indicates verdicts should be shared across
	// instances (Redis) rather than kept in-process.
	SharedDecisionCache bool `json:"shared_decision_cache"`
}

// DefaultSelfHostedConfig returns the default configuration for
// self-hosted deployments: no auth requirement, in-process caching.
func DefaultSelfHostedConfig() DeploymentConfig {
	return DeploymentConfig{
		Mode:                DeploymentModeSelfHosted,
		RequireAuth:         false,
		SharedDecisionCache: false,
	}
}

// DefaultManagedConfig returns the default configuration for managed
// deployments: mandatory auth, shared verdict cache.
func DefaultManagedConfig() DeploymentConfig {
	return DeploymentConfig{
		Mode:                DeploymentModeManaged,
		RequireAuth:         true,
		SharedDecisionCache: true,
	}
}

// DetectDeployment reads the deployment mode from the environment.
// Unset or invalid values fall back to self-hosted, the permissive
// default appropriate for local evaluation.
func DetectDeployment() DeploymentConfig {
	mode := DeploymentMode(os.Getenv(EnvDeploymentMode))
	if mode == DeploymentModeManaged {
		return DefaultManagedConfig()
	}
	return DefaultSelfHostedConfig()
}
