// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fraudgraph

import (
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
)

// ServiceVersion is the fraudgraph service version.
const ServiceVersion = "0.1.0"

// =============================================================================
// Requests
// =============================================================================

// BuildRequest is the body for POST /v1/fraudgraph/build.
type BuildRequest struct {
	// DatasetDir overrides the configured dataset directory for this
	// build. Optional.
	DatasetDir string `json:"dataset_dir,omitempty"`
}

// =============================================================================
// Responses
// =============================================================================

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// BuildResponse reports a completed pipeline run.
type BuildResponse struct {
	// SnapshotVersion identifies the published snapshot.
	SnapshotVersion int64 `json:"snapshot_version"`

	// Statistics are the node and edge counts of the new graph.
	Statistics graph.Statistics `json:"statistics"`

	// Communities is the number of detected communities.
	Communities int `json:"communities"`

	// Modularity is the achieved partition modularity.
	Modularity float64 `json:"modularity"`

	// FlaggedUsers is the number of users at or above the risk threshold.
	FlaggedUsers int `json:"flagged_users"`

	// AnalyticsDegraded is true when PageRank stopped without converging.
	AnalyticsDegraded bool `json:"analytics_degraded,omitempty"`

	// BuildTimeMs is the wall time of the full pipeline run.
	BuildTimeMs int64 `json:"build_time_ms"`
}

// StatsResponse reports the current graph statistics.
type StatsResponse struct {
	// SnapshotVersion identifies the published snapshot.
	SnapshotVersion int64 `json:"snapshot_version"`

	// Statistics are the node and edge counts.
	Statistics graph.Statistics `json:"statistics"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	// Status is "healthy" when the service is running.
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`
}

// ReadyResponse is the readiness check payload.
type ReadyResponse struct {
	// Ready is true once a snapshot has been built and published.
	Ready bool `json:"ready"`

	// SnapshotVersion identifies the published snapshot, 0 when not
	// ready.
	SnapshotVersion int64 `json:"snapshot_version,omitempty"`
}
