// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analytics

import (
	"context"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
)

// =============================================================================
// PageRank
// =============================================================================

var pageRankTracer = otel.Tracer("fraudgraph.analytics.pagerank")

// PageRank configuration constants.
const (
	// DefaultDampingFactor is the probability of following an edge (vs
	// random jump). Standard value from the original PageRank paper.
	DefaultDampingFactor = 0.85

	// DefaultMaxIterations is the maximum power iterations before stopping.
	DefaultMaxIterations = 100

	// DefaultConvergence is the threshold for convergence detection.
	// Iteration stops when the max per-node score change < this value.
	DefaultConvergence = 1e-6
)

// PageRankOptions configures the PageRank computation.
type PageRankOptions struct {
	// DampingFactor is the probability of following an edge. Must be in
	// [0, 1]. Default: 0.85
	DampingFactor float64

	// MaxIterations is the iteration budget. Must be > 0. Default: 100
	MaxIterations int

	// Convergence is the convergence threshold. Must be > 0. Default: 1e-6
	Convergence float64
}

// Validate checks options and applies defaults for invalid values.
func (o *PageRankOptions) Validate() {
	if o.DampingFactor < 0 || o.DampingFactor > 1 {
		o.DampingFactor = DefaultDampingFactor
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Convergence <= 0 {
		o.Convergence = DefaultConvergence
	}
}

// DefaultPageRankOptions returns sensible defaults.
func DefaultPageRankOptions() *PageRankOptions {
	return &PageRankOptions{
		DampingFactor: DefaultDampingFactor,
		MaxIterations: DefaultMaxIterations,
		Convergence:   DefaultConvergence,
	}
}

// PageRankResult contains the output of a PageRank computation.
type PageRankResult struct {
	// Scores maps user ID to PageRank score. Scores sum to approximately 1.
	Scores map[string]float64

	// Iterations is the number of power iterations performed.
	Iterations int

	// Converged indicates whether the tolerance was met within the
	// iteration budget. When false the scores are the best estimate and
	// the result is degraded, never silently treated as exact.
	Converged bool

	// MaxDiff is the final maximum per-node score change.
	MaxDiff float64
}

// PageRank computes PageRank over the undirected weighted user projection.
//
// Description:
//
//	Power iteration on the projection. An undirected edge counts in both
//	directions; each node distributes its score across incident edges in
//	proportion to edge weight. Isolated users have no incident edges and
//	are handled like sink nodes: their score is redistributed uniformly,
//	preventing rank leakage.
//
//	Failing to converge within the budget is a warning, not an error: the
//	result carries Converged=false and the caller decides how to treat the
//	degraded estimate.
//
// Inputs:
//
//   - ctx: Context for cancellation. Must not be nil.
//   - proj: User projection from graph.Snapshot.Project(). Must not be nil.
//   - opts: Configuration. If nil, defaults are used.
//
// Outputs:
//
//   - *PageRankResult: Scores for every user in the projection.
//
// Thread Safety: Safe for concurrent use; proj is read-only.
//
// Complexity: O(k × E) where k is iterations to converge (~20 typical).
func PageRank(ctx context.Context, proj *graph.UserProjection, opts *PageRankOptions) *PageRankResult {
	ctx, span := pageRankTracer.Start(ctx, "analytics.PageRank")
	defer span.End()

	if proj == nil || len(proj.IDs) == 0 {
		span.AddEvent("empty_projection")
		return &PageRankResult{Scores: make(map[string]float64), Converged: true}
	}

	if opts == nil {
		opts = DefaultPageRankOptions()
	} else {
		opts.Validate()
	}

	n := float64(len(proj.IDs))
	d := opts.DampingFactor
	span.SetAttributes(
		attribute.Int("node_count", len(proj.IDs)),
		attribute.Float64("damping_factor", d),
		attribute.Int("max_iterations", opts.MaxIterations),
	)

	// Pre-compute weighted degrees and the sink (isolated) node set.
	degrees := make(map[string]float64, len(proj.IDs))
	var sinks []string
	for _, id := range proj.IDs {
		deg := proj.Degree(id)
		degrees[id] = deg
		if deg == 0 {
			sinks = append(sinks, id)
		}
	}
	span.SetAttributes(attribute.Int("sink_node_count", len(sinks)))

	// Two score maps, swapped per iteration instead of reallocating.
	scores := make(map[string]float64, len(proj.IDs))
	next := make(map[string]float64, len(proj.IDs))
	initial := 1.0 / n
	for _, id := range proj.IDs {
		scores[id] = initial
	}

	var iterations int
	var converged bool
	var maxDiff float64

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if ctx.Err() != nil {
			span.AddEvent("cancelled", trace.WithAttributes(
				attribute.Int("iterations_completed", iter),
			))
			return &PageRankResult{Scores: scores, Iterations: iter, Converged: false, MaxDiff: maxDiff}
		}

		sinkContribution := 0.0
		for _, id := range sinks {
			sinkContribution += scores[id]
		}
		sinkContribution = d * sinkContribution / n

		maxDiff = 0.0
		for _, id := range proj.IDs {
			newScore := (1-d)/n + sinkContribution
			for neighbor, w := range proj.Weights[id] {
				if deg := degrees[neighbor]; deg > 0 {
					newScore += d * scores[neighbor] * w / deg
				}
			}
			next[id] = newScore
			if diff := math.Abs(newScore - scores[id]); diff > maxDiff {
				maxDiff = diff
			}
		}

		scores, next = next, scores
		iterations = iter + 1

		if maxDiff < opts.Convergence {
			converged = true
			break
		}
	}

	if !converged {
		span.AddEvent("not_converged")
		slog.Warn("pagerank did not converge within iteration budget; returning degraded estimate",
			"iterations", iterations,
			"max_diff", maxDiff,
			"tolerance", opts.Convergence,
		)
	}
	span.SetAttributes(
		attribute.Int("iterations", iterations),
		attribute.Bool("converged", converged),
	)

	return &PageRankResult{
		Scores:     scores,
		Iterations: iterations,
		Converged:  converged,
		MaxDiff:    maxDiff,
	}
}
