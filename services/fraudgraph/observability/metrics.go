// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the fraudgraph
// service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "fraudgraph"

// Metrics holds all Prometheus metrics for the fraudgraph service.
type Metrics struct {
	// BuildsTotal counts pipeline runs by outcome.
	BuildsTotal *prometheus.CounterVec

	// BuildDuration tracks full pipeline wall time in seconds.
	BuildDuration prometheus.Histogram

	// QueriesTotal counts query requests by query name and outcome.
	QueriesTotal *prometheus.CounterVec

	// QueryDuration tracks query latency in seconds by query name.
	QueryDuration *prometheus.HistogramVec

	// GraphNodes reports the node count of the published snapshot by
	// node type.
	GraphNodes *prometheus.GaugeVec

	// GraphEdges reports the edge count of the published snapshot by
	// edge type.
	GraphEdges *prometheus.GaugeVec

	// FlaggedUsers reports the number of users at or above the risk
	// threshold in the published snapshot.
	FlaggedUsers prometheus.Gauge
}

// NewMetrics creates and registers all fraudgraph metrics with the
// provided registerer. Pass prometheus.DefaultRegisterer for normal
// operation or a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "pipeline",
				Name:      "builds_total",
				Help:      "Total pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		BuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "pipeline",
				Name:      "build_duration_seconds",
				Help:      "Full pipeline wall time in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "query",
				Name:      "requests_total",
				Help:      "Total query requests by query name and outcome",
			},
			[]string{"query", "outcome"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Query latency in seconds by query name",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"query"},
		),
		GraphNodes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "graph",
				Name:      "nodes",
				Help:      "Node count of the published snapshot by node type",
			},
			[]string{"type"},
		),
		GraphEdges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "graph",
				Name:      "edges",
				Help:      "Edge count of the published snapshot by edge type",
			},
			[]string{"type"},
		),
		FlaggedUsers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "risk",
				Name:      "flagged_users",
				Help:      "Users at or above the risk threshold in the published snapshot",
			},
		),
	}
}

// RecordBuild records a completed pipeline run.
func (m *Metrics) RecordBuild(outcome string, duration time.Duration) {
	m.BuildsTotal.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		m.BuildDuration.Observe(duration.Seconds())
	}
}

// RecordQuery records a query request.
func (m *Metrics) RecordQuery(query, outcome string, duration time.Duration) {
	m.QueriesTotal.WithLabelValues(query, outcome).Inc()
	m.QueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// RecordGraphSize updates the graph size gauges from snapshot
// statistics.
func (m *Metrics) RecordGraphSize(users, devices, usesDevice, transacted, flagged int) {
	m.GraphNodes.WithLabelValues("user").Set(float64(users))
	m.GraphNodes.WithLabelValues("device").Set(float64(devices))
	m.GraphEdges.WithLabelValues("uses_device").Set(float64(usesDevice))
	m.GraphEdges.WithLabelValues("transacted").Set(float64(transacted))
	m.FlaggedUsers.Set(float64(flagged))
}
