// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the hub service.
//
// Metrics cover the realtime surface (connections, routed messages, dropped
// frames), the summary cache (refresh outcomes), and the memory-service
// collaborator (call errors, insight fan-out latency). All of them are
// exposed on /metrics.
//
// All methods are nil-receiver safe so the hub can run without metrics in
// tests.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "huddle"

const hubSubsystem = "hub"

// HubMetrics holds all Prometheus metrics for the hub.
type HubMetrics struct {
	// ConnectionsActive tracks currently open WebSocket connections.
	ConnectionsActive prometheus.Gauge

	// MessagesRoutedTotal counts messages routed by kind.
	// Labels: kind (chat, agent_response, agent_data, system, join, leave)
	MessagesRoutedTotal *prometheus.CounterVec

	// FramesDroppedTotal counts outbound frames dropped because a
	// connection's send buffer was full.
	FramesDroppedTotal prometheus.Counter

	// SummaryRefreshesTotal counts summary refresh attempts by outcome.
	// Labels: outcome (success, empty, error, skipped)
	SummaryRefreshesTotal *prometheus.CounterVec

	// MemoryErrorsTotal counts failed memory-service calls by operation.
	// Labels: operation (register_peer, remove_peer, ingest, summary, ask)
	MemoryErrorsTotal *prometheus.CounterVec

	// InsightDurationSeconds measures insight fan-out latency.
	// Labels: query (knowledge, relationships)
	InsightDurationSeconds *prometheus.HistogramVec
}

// DefaultMetrics is the singleton instance of HubMetrics, set by InitMetrics.
var DefaultMetrics *HubMetrics

// InitMetrics creates and registers all hub metrics on the default
// Prometheus registry. Call once at startup; a second call panics on
// duplicate registration.
func InitMetrics() *HubMetrics {
	DefaultMetrics = &HubMetrics{
		ConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: hubSubsystem,
				Name:      "connections_active",
				Help:      "Number of currently open WebSocket connections",
			},
		),

		MessagesRoutedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: hubSubsystem,
				Name:      "messages_routed_total",
				Help:      "Total messages routed by kind",
			},
			[]string{"kind"},
		),

		FramesDroppedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: hubSubsystem,
				Name:      "frames_dropped_total",
				Help:      "Outbound frames dropped due to a full send buffer",
			},
		),

		SummaryRefreshesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: hubSubsystem,
				Name:      "summary_refreshes_total",
				Help:      "Summary refresh attempts by outcome",
			},
			[]string{"outcome"},
		),

		MemoryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: hubSubsystem,
				Name:      "memory_errors_total",
				Help:      "Failed memory-service calls by operation",
			},
			[]string{"operation"},
		),

		InsightDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: hubSubsystem,
				Name:      "insight_duration_seconds",
				Help:      "Insight fan-out latency in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"query"},
		),
	}
	return DefaultMetrics
}

// ConnOpened records a new WebSocket connection.
func (m *HubMetrics) ConnOpened() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Inc()
}

// ConnClosed records a closed WebSocket connection.
func (m *HubMetrics) ConnClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

// MessageRouted records a routed message of the given kind.
func (m *HubMetrics) MessageRouted(kind string) {
	if m == nil {
		return
	}
	m.MessagesRoutedTotal.WithLabelValues(kind).Inc()
}

// FrameDropped records an outbound frame dropped on a full buffer.
func (m *HubMetrics) FrameDropped() {
	if m == nil {
		return
	}
	m.FramesDroppedTotal.Inc()
}

// SummaryRefresh records a refresh attempt outcome.
func (m *HubMetrics) SummaryRefresh(outcome string) {
	if m == nil {
		return
	}
	m.SummaryRefreshesTotal.WithLabelValues(outcome).Inc()
}

// MemoryError records a failed memory-service call.
func (m *HubMetrics) MemoryError(operation string) {
	if m == nil {
		return
	}
	m.MemoryErrorsTotal.WithLabelValues(operation).Inc()
}

// InsightObserved records a completed insight fan-out.
func (m *HubMetrics) InsightObserved(query string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.InsightDurationSeconds.WithLabelValues(query).Observe(elapsed.Seconds())
}
