// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the agent API.
//
// Metrics cover request outcomes, turn latency, tool executions, and
// active streaming connections. All operations are thread-safe via
// Prometheus's internal locking; expose them through /metrics.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "oracle"
	agentSubsystem   = "agent"
)

// AgentMetrics holds the Prometheus instruments for the agent API.
type AgentMetrics struct {
	// RequestsTotal counts API requests.
	// Labels: endpoint (chat, stream, markets_search, arbitrage), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// TurnDurationSeconds measures full conversation-turn latency.
	// Labels: endpoint (chat, stream)
	TurnDurationSeconds *prometheus.HistogramVec

	// ToolCallsTotal counts tool executions per turn, summed.
	// Labels: endpoint
	ToolCallsTotal *prometheus.CounterVec

	// ActiveStreams tracks open SSE connections.
	ActiveStreams prometheus.Gauge

	// SessionsActive tracks live conversation sessions.
	SessionsActive prometheus.Gauge

	// ClientDisconnectsTotal counts streams cut by the client.
	ClientDisconnectsTotal prometheus.Counter
}

// DefaultMetrics is the process-wide instance, set by InitMetrics.
var DefaultMetrics *AgentMetrics

var initOnce sync.Once

// InitMetrics registers the metrics with the default registry. Safe to
// call more than once; registration happens on the first call only.
func InitMetrics() *AgentMetrics {
	initOnce.Do(func() {
		DefaultMetrics = &AgentMetrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: agentSubsystem,
					Name:      "requests_total",
					Help:      "API requests by endpoint and status",
				},
				[]string{"endpoint", "status"},
			),
			TurnDurationSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: agentSubsystem,
					Name:      "turn_duration_seconds",
					Help:      "Full conversation turn latency",
					Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
				},
				[]string{"endpoint"},
			),
			ToolCallsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: agentSubsystem,
					Name:      "tool_calls_total",
					Help:      "Tool executions by endpoint",
				},
				[]string{"endpoint"},
			),
			ActiveStreams: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: agentSubsystem,
					Name:      "active_streams",
					Help:      "Open SSE connections",
				},
			),
			SessionsActive: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: agentSubsystem,
					Name:      "sessions_active",
					Help:      "Live conversation sessions",
				},
			),
			ClientDisconnectsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: agentSubsystem,
					Name:      "client_disconnects_total",
					Help:      "Streams terminated by the client",
				},
			),
		}
	})
	return DefaultMetrics
}

// ObserveRequest records one request outcome, tolerating an
// uninitialized metrics instance for tests.
func ObserveRequest(endpoint string, err error) {
	if DefaultMetrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.RequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// ObserveTurn records the latency of one complete turn.
func ObserveTurn(endpoint string, seconds float64) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.TurnDurationSeconds.WithLabelValues(endpoint).Observe(seconds)
}
