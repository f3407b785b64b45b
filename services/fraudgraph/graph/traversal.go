// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"sort"
)

// Traversal limits.
const (
	// DefaultNeighborDepth is the default hop count for neighbor queries.
	DefaultNeighborDepth = 1

	// DefaultMaxPathDepth is the default hop cap for path searches.
	DefaultMaxPathDepth = 3
)

// =============================================================================
// Neighbor Traversal
// =============================================================================

// Neighbors returns the IDs of nodes reachable from nodeID within depth hops
// via edges of the given types, excluding the start node itself.
//
// Description:
//
//	Breadth-first expansion over the requested edge types. USES_DEVICE
//	edges are crossed in both directions; TRANSACTED edges are likewise
//	treated as undirected for neighborhood purposes (a counterparty is a
//	neighbor whether the user sent or received). Result order is sorted
//	ascending but callers must not rely on ordering across backends.
//
// Inputs:
//
//	nodeID - Start node (user or device). Must exist.
//	edgeTypes - Edge types to traverse. Empty means all types.
//	depth - Maximum hops, >= 1.
//
// Outputs:
//
//	[]string - Reachable node IDs.
//	error - ErrValidation for depth < 1, ErrNotFound for unknown node.
func (s *Snapshot) Neighbors(nodeID string, edgeTypes []EdgeType, depth int) ([]string, error) {
	if depth < 1 {
		return nil, fmt.Errorf("%w: depth must be >= 1, got %d", ErrValidation, depth)
	}
	if !s.HasUser(nodeID) {
		if _, ok := s.devices[nodeID]; !ok {
			return nil, fmt.Errorf("%w: node %s", ErrNotFound, nodeID)
		}
	}

	useDevice, useTxn := edgeTypeFlags(edgeTypes)

	visited := map[string]bool{nodeID: true}
	frontier := []string{nodeID}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, n := range s.adjacent(id, useDevice, useTxn) {
				if !visited[n] {
					visited[n] = true
					next = append(next, n)
				}
			}
		}
		frontier = next
	}

	delete(visited, nodeID)
	out := make([]string, 0, len(visited))
	for id := range visited {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// edgeTypeFlags resolves a type filter into per-type booleans. An empty
// filter enables every type.
func edgeTypeFlags(edgeTypes []EdgeType) (useDevice, useTxn bool) {
	if len(edgeTypes) == 0 {
		return true, true
	}
	for _, t := range edgeTypes {
		switch t {
		case EdgeTypeUsesDevice:
			useDevice = true
		case EdgeTypeTransacted:
			useTxn = true
		}
	}
	return useDevice, useTxn
}

// adjacent returns the one-hop neighborhood of a node over the enabled
// edge types.
func (s *Snapshot) adjacent(id string, useDevice, useTxn bool) []string {
	var out []string
	if useDevice {
		out = append(out, s.userDevices[id]...)
		out = append(out, s.deviceUsers[id]...)
	}
	if useTxn {
		for _, t := range s.txnsBySender[id] {
			out = append(out, t.ReceiverID)
		}
		for _, t := range s.txnsByReceiver[id] {
			out = append(out, t.SenderID)
		}
	}
	return out
}

// =============================================================================
// Shared Resource Groups
// =============================================================================

// SharedResourceGroups returns, for every resource of the given type used by
// at least two distinct users, the group of users sharing it.
//
// Description:
//
//	The canonical shared-device signal. Groups are returned sorted by size
//	descending, ties broken by the lowest member user ID, then by resource
//	ID; member lists are sorted ascending.
//
// Inputs:
//
//	resource - The resource node type. Only NodeTypeDevice is supported.
//
// Outputs:
//
//	[]ResourceGroup - Groups with >= 2 distinct users. Never nil.
//	error - ErrValidation for an unsupported resource type.
func (s *Snapshot) SharedResourceGroups(resource NodeType) ([]ResourceGroup, error) {
	if resource != NodeTypeDevice {
		return nil, fmt.Errorf("%w: unsupported shared-resource type %q", ErrValidation, resource)
	}

	groups := make([]ResourceGroup, 0)
	for _, deviceID := range s.DeviceIDs() {
		users := distinctSorted(s.deviceUsers[deviceID])
		if len(users) >= 2 {
			groups = append(groups, ResourceGroup{ResourceID: deviceID, UserIDs: users})
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Size() != groups[j].Size() {
			return groups[i].Size() > groups[j].Size()
		}
		if groups[i].UserIDs[0] != groups[j].UserIDs[0] {
			return groups[i].UserIDs[0] < groups[j].UserIDs[0]
		}
		return groups[i].ResourceID < groups[j].ResourceID
	})
	return groups, nil
}

// distinctSorted returns the sorted distinct values of ids.
func distinctSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// Transaction Paths
// =============================================================================

// TransactionPaths returns all simple directed paths from source to target
// along TRANSACTED edges, up to maxDepth hops.
//
// Description:
//
//	Depth-first search over the sender adjacency. A path is a node ID
//	sequence starting at source and ending at target with no repeated
//	nodes. Parallel transactions between the same pair contribute one
//	traversal step, not one path per transaction. An empty result is not
//	an error. Paths are ordered lexicographically by node sequence.
//
// Inputs:
//
//	source, target - User IDs. Both must exist.
//	maxDepth - Maximum hops, >= 1.
//
// Outputs:
//
//	[][]string - Paths as node sequences. Empty slice when none exist.
//	error - ErrValidation for maxDepth < 1, ErrNotFound for unknown users.
func (s *Snapshot) TransactionPaths(source, target string, maxDepth int) ([][]string, error) {
	if maxDepth < 1 {
		return nil, fmt.Errorf("%w: max_depth must be >= 1, got %d", ErrValidation, maxDepth)
	}
	if !s.HasUser(source) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, source)
	}
	if !s.HasUser(target) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, target)
	}

	paths := make([][]string, 0)
	onPath := map[string]bool{source: true}
	path := []string{source}

	var walk func(current string)
	walk = func(current string) {
		if len(path)-1 >= maxDepth {
			return
		}
		for _, next := range s.txnReceivers(current) {
			if onPath[next] {
				continue
			}
			path = append(path, next)
			if next == target {
				found := make([]string, len(path))
				copy(found, path)
				paths = append(paths, found)
			} else {
				onPath[next] = true
				walk(next)
				delete(onPath, next)
			}
			path = path[:len(path)-1]
		}
	}
	walk(source)

	sort.Slice(paths, func(i, j int) bool {
		return lessPath(paths[i], paths[j])
	})
	return paths, nil
}

// txnReceivers returns the distinct receivers the user has transacted with,
// sorted ascending for deterministic traversal.
func (s *Snapshot) txnReceivers(userID string) []string {
	receivers := make([]string, 0, len(s.txnsBySender[userID]))
	for _, t := range s.txnsBySender[userID] {
		receivers = append(receivers, t.ReceiverID)
	}
	return distinctSorted(receivers)
}

// lessPath orders node sequences lexicographically, shorter first on a tie.
func lessPath(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// =============================================================================
// User Projection
// =============================================================================

// UserProjection is the undirected weighted user-subgraph the analytics
// package operates on. TRANSACTED edges are collapsed per user pair with
// weight equal to the transaction count; users co-using a device gain an
// edge weighted by the number of shared devices.
type UserProjection struct {
	// IDs are all user IDs sorted ascending. Every user appears, including
	// isolated ones, so partitions over the projection are total.
	IDs []string

	// Weights maps user ID to neighbor ID to edge weight. Symmetric.
	Weights map[string]map[string]float64

	// TotalWeight is the sum of all edge weights, each undirected edge
	// counted once.
	TotalWeight float64
}

// Degree returns the weighted degree of a user in the projection.
func (p *UserProjection) Degree(id string) float64 {
	var d float64
	for _, w := range p.Weights[id] {
		d += w
	}
	return d
}

// NeighborIDs returns the projection neighbors of a user, sorted ascending.
func (p *UserProjection) NeighborIDs(id string) []string {
	out := make([]string, 0, len(p.Weights[id]))
	for n := range p.Weights[id] {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Project builds the undirected weighted user projection of the snapshot.
//
// Re-running Project on the same snapshot yields an identical projection;
// all derived analytics are therefore idempotent.
func (s *Snapshot) Project() *UserProjection {
	p := &UserProjection{
		IDs:     s.UserIDs(),
		Weights: make(map[string]map[string]float64, len(s.users)),
	}
	for _, id := range p.IDs {
		p.Weights[id] = make(map[string]float64)
	}

	addWeight := func(a, b string, w float64) {
		if a == b {
			return
		}
		p.Weights[a][b] += w
		p.Weights[b][a] += w
		p.TotalWeight += w
	}

	// Collapse transaction multiplicity into pair weights.
	for _, t := range s.txns {
		addWeight(t.SenderID, t.ReceiverID, 1)
	}

	// Users sharing a device gain an edge per shared device.
	for _, deviceID := range s.DeviceIDs() {
		users := distinctSorted(s.deviceUsers[deviceID])
		for i := 0; i < len(users); i++ {
			for j := i + 1; j < len(users); j++ {
				addWeight(users[i], users[j], 1)
			}
		}
	}
	return p
}
