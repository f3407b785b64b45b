// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analytics computes community structure and centrality over a
// fraud graph snapshot.
//
// All computations run on the undirected weighted user projection
// (graph.Snapshot.Project) and are pure functions of the snapshot:
// re-running on an unchanged snapshot is idempotent and bit-identical.
// Results record the snapshot version they were computed from so consumers
// can detect stale derived state instead of silently mixing snapshots.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
)

var engineTracer = otel.Tracer("fraudgraph.analytics.engine")

// Options bundles the per-algorithm configuration.
type Options struct {
	// PageRank configures the PageRank computation. Nil uses defaults.
	PageRank *PageRankOptions

	// Community configures community detection. Nil uses defaults.
	Community *CommunityOptions
}

// Centrality holds both centrality measures for the snapshot's users.
type Centrality struct {
	// PageRank maps user ID to PageRank score.
	PageRank map[string]float64 `json:"pagerank"`

	// Betweenness maps user ID to betweenness score.
	Betweenness map[string]float64 `json:"betweenness"`

	// PageRankIterations is the number of power iterations performed.
	PageRankIterations int `json:"pagerank_iterations"`

	// Degraded is true when PageRank did not converge within its budget;
	// the scores are best estimates, flagged rather than treated as exact.
	Degraded bool `json:"degraded"`
}

// Result is the full analytics output for one snapshot.
type Result struct {
	// Communities is the total partition over all users.
	Communities *CommunityResult `json:"communities"`

	// Centrality holds PageRank and betweenness per user.
	Centrality *Centrality `json:"centrality"`

	// SnapshotVersion is the graph.Snapshot.Version() this result was
	// computed from.
	SnapshotVersion int64 `json:"snapshot_version"`
}

// Compute runs community detection and both centrality measures over the
// snapshot.
//
// Description:
//
//	Projects the snapshot once and feeds the same projection to every
//	algorithm, so all derived state describes one consistent view. The
//	snapshot must be frozen; computing over a building snapshot is a
//	precondition violation.
//
// Inputs:
//
//   - ctx: Context for cancellation. Must not be nil.
//   - snap: Frozen snapshot. Must not be nil.
//   - opts: Per-algorithm configuration. Nil uses defaults throughout.
//
// Outputs:
//
//   - *Result: Communities plus centrality, tagged with snapshot version.
//   - error: graph.ErrPrecondition if the snapshot is not frozen, or
//     ctx.Err() when cancelled.
//
// Thread Safety: Safe for concurrent use; the snapshot is read-only.
func Compute(ctx context.Context, snap *graph.Snapshot, opts *Options) (*Result, error) {
	ctx, span := engineTracer.Start(ctx, "analytics.Compute")
	defer span.End()

	if snap == nil || !snap.IsFrozen() {
		return nil, graph.ErrPrecondition
	}
	if opts == nil {
		opts = &Options{}
	}

	start := time.Now()
	proj := snap.Project()
	span.SetAttributes(
		attribute.Int("users", len(proj.IDs)),
		attribute.Float64("projection_weight", proj.TotalWeight),
	)

	communities, err := DetectCommunities(ctx, proj, opts.Community)
	if err != nil {
		return nil, err
	}

	pr := PageRank(ctx, proj, opts.PageRank)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bc := Betweenness(ctx, proj)
	if bc == nil {
		return nil, ctx.Err()
	}

	slog.Info("analytics computed",
		"users", len(proj.IDs),
		"communities", len(communities.Communities),
		"modularity", communities.Modularity,
		"pagerank_iterations", pr.Iterations,
		"pagerank_converged", pr.Converged,
		"duration", time.Since(start),
	)

	return &Result{
		Communities: communities,
		Centrality: &Centrality{
			PageRank:           pr.Scores,
			Betweenness:        bc,
			PageRankIterations: pr.Iterations,
			Degraded:           !pr.Converged,
		},
		SnapshotVersion: snap.Version(),
	}, nil
}
