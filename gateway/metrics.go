// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics
var (
	promValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_validations_total",
			Help: "Total number of validation requests by content type and outcome",
		},
		[]string{"type", "outcome"},
	)
	promValidationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolgate_validation_duration_milliseconds",
			Help:    "Validation duration in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
		},
		[]string{"type"},
	)
	promBlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_blocked_total",
			Help: "Total number of rejections by reason code",
		},
		[]string{"reason"},
	)
	promExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_tool_executions_total",
			Help: "Total number of tool executions by kind and status",
		},
		[]string{"kind", "status"},
	)
)

func init() {
	prometheus.MustRegister(promValidationsTotal)
	prometheus.MustRegister(promValidationDuration)
	prometheus.MustRegister(promBlockedTotal)
	prometheus.MustRegister(promExecutionsTotal)
}
