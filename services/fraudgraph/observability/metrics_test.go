// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersOnIsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	// A second registry gets its own collectors without conflicts.
	m2 := NewMetrics(prometheus.NewRegistry())
	require.NotNil(t, m2)
}

func TestMetrics_RecordBuild(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordBuild("success", 250*time.Millisecond)
	m.RecordBuild("error", 10*time.Millisecond)

	assert.InDelta(t, 1.0,
		testutil.ToFloat64(m.BuildsTotal.WithLabelValues("success")), 1e-9)
	assert.InDelta(t, 1.0,
		testutil.ToFloat64(m.BuildsTotal.WithLabelValues("error")), 1e-9)
}

func TestMetrics_RecordQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordQuery("profile", "success", 5*time.Millisecond)
	m.RecordQuery("profile", "success", 7*time.Millisecond)
	m.RecordQuery("profile", "error", time.Millisecond)

	assert.InDelta(t, 2.0,
		testutil.ToFloat64(m.QueriesTotal.WithLabelValues("profile", "success")), 1e-9)
	assert.InDelta(t, 1.0,
		testutil.ToFloat64(m.QueriesTotal.WithLabelValues("profile", "error")), 1e-9)
}

func TestMetrics_RecordGraphSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordGraphSize(100, 40, 120, 500, 7)

	assert.InDelta(t, 100.0,
		testutil.ToFloat64(m.GraphNodes.WithLabelValues("user")), 1e-9)
	assert.InDelta(t, 40.0,
		testutil.ToFloat64(m.GraphNodes.WithLabelValues("device")), 1e-9)
	assert.InDelta(t, 120.0,
		testutil.ToFloat64(m.GraphEdges.WithLabelValues("uses_device")), 1e-9)
	assert.InDelta(t, 500.0,
		testutil.ToFloat64(m.GraphEdges.WithLabelValues("transacted")), 1e-9)
	assert.InDelta(t, 7.0, testutil.ToFloat64(m.FlaggedUsers), 1e-9)
}
