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
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
)

// =============================================================================
// Community Detection (greedy modularity)
// =============================================================================

var communityTracer = otel.Tracer("fraudgraph.analytics.community")

// Community detection configuration constants.
const (
	// DefaultMaxSweeps is the maximum local-move sweeps over all nodes.
	DefaultMaxSweeps = 100

	// DefaultModularityTolerance stops early when a full sweep improves
	// modularity by less than this.
	DefaultModularityTolerance = 1e-6

	// DefaultResolution affects community granularity. Higher values
	// produce smaller communities.
	DefaultResolution = 1.0
)

// CommunityOptions configures community detection.
type CommunityOptions struct {
	// MaxSweeps limits local-move sweeps. Default: 100
	MaxSweeps int

	// Tolerance stops early when a sweep's modularity gain is below it.
	// Default: 1e-6
	Tolerance float64

	// Resolution affects community granularity. Default: 1.0
	Resolution float64
}

// Validate checks options and applies defaults for invalid values.
func (o *CommunityOptions) Validate() {
	if o.MaxSweeps <= 0 {
		o.MaxSweeps = DefaultMaxSweeps
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultModularityTolerance
	}
	if o.Resolution <= 0 {
		o.Resolution = DefaultResolution
	}
}

// DefaultCommunityOptions returns sensible defaults.
func DefaultCommunityOptions() *CommunityOptions {
	return &CommunityOptions{
		MaxSweeps:  DefaultMaxSweeps,
		Tolerance:  DefaultModularityTolerance,
		Resolution: DefaultResolution,
	}
}

// Community is one detected group of users.
type Community struct {
	// ID is the dense community identifier, assigned by ascending smallest
	// member user ID.
	ID int `json:"id"`

	// UserIDs are the members, sorted ascending.
	UserIDs []string `json:"user_ids"`
}

// Size returns the member count.
func (c Community) Size() int {
	return len(c.UserIDs)
}

// CommunityResult contains the full community detection output.
//
// The partition is total and disjoint: every user in the projection appears
// in exactly one community, with isolated users forming singletons.
type CommunityResult struct {
	// Communities are all detected communities, ordered by ID.
	Communities []Community `json:"communities"`

	// Assignment maps user ID to community ID.
	Assignment map[string]int `json:"assignment"`

	// Modularity is the final modularity score Q of the partition.
	Modularity float64 `json:"modularity"`

	// Sweeps is the number of local-move sweeps performed.
	Sweeps int `json:"sweeps"`

	// Converged indicates the algorithm stopped before MaxSweeps.
	Converged bool `json:"converged"`
}

// CommunityOf returns the community ID for a user.
func (r *CommunityResult) CommunityOf(userID string) (int, bool) {
	id, ok := r.Assignment[userID]
	return id, ok
}

// Members returns the member user IDs of a community, or an empty slice if
// the community does not exist.
func (r *CommunityResult) Members(communityID int) []string {
	for _, c := range r.Communities {
		if c.ID == communityID {
			out := make([]string, len(c.UserIDs))
			copy(out, c.UserIDs)
			return out
		}
	}
	return []string{}
}

// DetectCommunities partitions the user projection by greedy modularity
// optimization.
//
// Description:
//
//	Louvain-style local moves over the weighted undirected projection:
//	every node starts in its own community; sweeps in ascending user-ID
//	order move each node to the neighboring community with the largest
//	positive modularity gain, until a sweep makes no move or the gain
//	falls below the tolerance.
//
//	Tie-break rule (fixed and documented rather than seed-dependent):
//	nodes are visited in ascending user-ID order; communities keep the
//	label of the node that founded them (its position in the sorted ID
//	list), and when two candidate communities yield the same gain the
//	lowest label wins. Final community IDs are renumbered densely by
//	ascending smallest member ID. Identical snapshots therefore always
//	produce identical partitions.
//
// Inputs:
//
//   - ctx: Context for cancellation. Must not be nil.
//   - proj: User projection. Must not be nil.
//   - opts: Configuration. If nil, defaults are used.
//
// Outputs:
//
//   - *CommunityResult: A total partition over every projected user.
//   - error: Non-nil only when cancelled.
//
// Thread Safety: Safe for concurrent use (read-only on proj).
//
// Complexity: O(V + E) per sweep, typically few sweeps.
func DetectCommunities(ctx context.Context, proj *graph.UserProjection, opts *CommunityOptions) (*CommunityResult, error) {
	ctx, span := communityTracer.Start(ctx, "analytics.DetectCommunities")
	defer span.End()

	if proj == nil || len(proj.IDs) == 0 {
		span.AddEvent("empty_projection")
		return &CommunityResult{
			Communities: []Community{},
			Assignment:  map[string]int{},
			Converged:   true,
		}, nil
	}

	if opts == nil {
		opts = DefaultCommunityOptions()
	} else {
		opts.Validate()
	}
	span.SetAttributes(
		attribute.Int("node_count", len(proj.IDs)),
		attribute.Float64("resolution", opts.Resolution),
	)

	// Each node starts in its own community, labeled by sorted position.
	nodeToComm := make(map[string]int, len(proj.IDs))
	for i, id := range proj.IDs {
		nodeToComm[id] = i
	}

	m := proj.TotalWeight
	if m == 0 {
		// No edges: every node is a singleton, trivially converged.
		span.AddEvent("no_edges")
		result := buildCommunityResult(proj, nodeToComm)
		result.Converged = true
		return result, nil
	}

	degrees := make(map[string]float64, len(proj.IDs))
	commDegreeSum := make(map[int]float64, len(proj.IDs))
	for _, id := range proj.IDs {
		deg := proj.Degree(id)
		degrees[id] = deg
		commDegreeSum[nodeToComm[id]] += deg
	}

	twoM := 2 * m
	previousQ := modularity(proj, nodeToComm, commDegreeSum, m, opts.Resolution)
	sweeps := 0
	converged := false

	for sweeps < opts.MaxSweeps {
		if ctx.Err() != nil {
			span.AddEvent("cancelled", trace.WithAttributes(
				attribute.Int("sweeps_completed", sweeps),
			))
			return nil, ctx.Err()
		}
		sweeps++
		moved := false

		for _, id := range proj.IDs {
			current := nodeToComm[id]
			ki := degrees[id]

			// Weight from this node into each neighboring community.
			commWeights := make(map[int]float64)
			for neighbor, w := range proj.Weights[id] {
				commWeights[nodeToComm[neighbor]] += w
			}

			// Remove the node from its community for gain evaluation.
			commDegreeSum[current] -= ki

			// Gain of joining community c: k_i,c - γ·Σ_tot(c)·k_i / 2m.
			// Staying put is the baseline.
			bestComm := current
			bestGain := commWeights[current] - opts.Resolution*commDegreeSum[current]*ki/twoM

			candidates := make([]int, 0, len(commWeights))
			for c := range commWeights {
				if c != current {
					candidates = append(candidates, c)
				}
			}
			sort.Ints(candidates)
			for _, c := range candidates {
				gain := commWeights[c] - opts.Resolution*commDegreeSum[c]*ki/twoM
				better := gain > bestGain
				tie := gain == bestGain && c < bestComm
				if better || tie {
					bestGain = gain
					bestComm = c
				}
			}

			commDegreeSum[bestComm] += ki
			if bestComm != current {
				nodeToComm[id] = bestComm
				moved = true
			}
		}

		currentQ := modularity(proj, nodeToComm, commDegreeSum, m, opts.Resolution)
		if !moved || currentQ-previousQ < opts.Tolerance {
			converged = true
			previousQ = currentQ
			break
		}
		previousQ = currentQ
	}

	result := buildCommunityResult(proj, nodeToComm)
	result.Modularity = previousQ
	result.Sweeps = sweeps
	result.Converged = converged
	span.SetAttributes(
		attribute.Int("communities", len(result.Communities)),
		attribute.Float64("modularity", result.Modularity),
		attribute.Bool("converged", converged),
	)
	return result, nil
}

// modularity computes Q = Σ_c [ Σ_in(c)/2m - γ·(Σ_tot(c)/2m)² ] over the
// weighted undirected projection.
func modularity(proj *graph.UserProjection, nodeToComm map[string]int, commDegreeSum map[int]float64, m, resolution float64) float64 {
	twoM := 2 * m
	internal := make(map[int]float64)
	for _, id := range proj.IDs {
		c := nodeToComm[id]
		for neighbor, w := range proj.Weights[id] {
			if nodeToComm[neighbor] == c {
				internal[c] += w // both endpoints contribute, giving 2·Σ_in
			}
		}
	}
	var q float64
	for c, degSum := range commDegreeSum {
		if degSum == 0 && internal[c] == 0 {
			continue
		}
		q += internal[c]/twoM - resolution*(degSum/twoM)*(degSum/twoM)
	}
	return q
}

// buildCommunityResult renumbers raw community labels densely by ascending
// smallest member ID and materializes sorted member lists.
func buildCommunityResult(proj *graph.UserProjection, nodeToComm map[string]int) *CommunityResult {
	members := make(map[int][]string)
	for _, id := range proj.IDs {
		c := nodeToComm[id]
		members[c] = append(members[c], id)
	}

	raw := make([]int, 0, len(members))
	for c := range members {
		sort.Strings(members[c])
		raw = append(raw, c)
	}
	sort.Slice(raw, func(i, j int) bool {
		return members[raw[i]][0] < members[raw[j]][0]
	})

	result := &CommunityResult{
		Communities: make([]Community, 0, len(raw)),
		Assignment:  make(map[string]int, len(proj.IDs)),
	}
	for dense, c := range raw {
		community := Community{ID: dense, UserIDs: members[c]}
		result.Communities = append(result.Communities, community)
		for _, id := range community.UserIDs {
			result.Assignment[id] = dense
		}
	}
	return result
}
