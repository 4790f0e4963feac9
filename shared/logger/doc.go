// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package logger provides structured JSON logging for toolgate components.

# Overview

Log entries are written as single-line JSON to stdout, ready for whatever
aggregation system captures container logs.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (gateway, registry, runtime)
  - Instance ID and container name
  - Persona (the policy scope the request was evaluated under)
  - Request ID (for correlating the entries of one gate decision)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("gateway")

Log messages with persona and request context:

	log.Info("analyst", "req-456", "query accepted", map[string]interface{}{
	    "tier": "ast",
	})

Log a validation rejection with its reason code:

	log.Rejection("analyst", "req-456", "script rejected", "forbidden_module", nil)

# Environment Variables

  - INSTANCE_ID: deployment instance identifier

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
