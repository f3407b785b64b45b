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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
)

// =============================================================================
// Betweenness Centrality (Brandes)
// =============================================================================

var betweennessTracer = otel.Tracer("fraudgraph.analytics.betweenness")

// Betweenness computes shortest-path betweenness centrality over the
// undirected user projection, ignoring edge weights.
//
// Description:
//
//	Brandes' algorithm: one BFS per source node accumulating pair
//	dependencies. Each undirected shortest path is counted once (the
//	accumulated value is halved). Isolated users score zero. The
//	computation is a pure function of the projection; re-running on an
//	unchanged snapshot yields identical output.
//
// Inputs:
//
//   - ctx: Context for cancellation. Must not be nil.
//   - proj: User projection. Must not be nil.
//
// Outputs:
//
//   - map[string]float64: Betweenness score per user. Empty map for an
//     empty projection; nil only when cancelled.
//
// Thread Safety: Safe for concurrent use; proj is read-only.
//
// Complexity: O(V × E) on the unweighted projection.
func Betweenness(ctx context.Context, proj *graph.UserProjection) map[string]float64 {
	ctx, span := betweennessTracer.Start(ctx, "analytics.Betweenness")
	defer span.End()

	scores := make(map[string]float64, len(proj.IDs))
	for _, id := range proj.IDs {
		scores[id] = 0
	}
	span.SetAttributes(attribute.Int("node_count", len(proj.IDs)))

	// Reused per-source buffers.
	sigma := make(map[string]float64, len(proj.IDs))
	dist := make(map[string]int, len(proj.IDs))
	delta := make(map[string]float64, len(proj.IDs))
	preds := make(map[string][]string, len(proj.IDs))

	for _, source := range proj.IDs {
		if ctx.Err() != nil {
			span.AddEvent("cancelled")
			return nil
		}

		// BFS from source, recording predecessor DAG and path counts.
		stack := make([]string, 0, len(proj.IDs))
		for _, id := range proj.IDs {
			sigma[id] = 0
			dist[id] = -1
			delta[id] = 0
			preds[id] = preds[id][:0]
		}
		sigma[source] = 1
		dist[source] = 0
		queue := []string{source}

		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range proj.NeighborIDs(v) {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		// Dependency accumulation in reverse BFS order.
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != source {
				scores[w] += delta[w]
			}
		}
	}

	// Undirected graph: every pair was counted from both endpoints.
	for id := range scores {
		scores[id] /= 2
	}
	return scores
}
