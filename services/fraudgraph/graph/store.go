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
	"context"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/dataset"
)

// Store is the backend-agnostic seam over the canonical fraud graph.
//
// Two implementations exist: the in-memory store in this package and the
// BadgerDB-backed store in storage/badger. Both must produce identical
// query results for identical datasets; only durability differs. Result
// ordering is not part of the contract unless a method documents one —
// callers compare results as sets.
//
// A Store publishes snapshots copy-on-write: Build prepares a complete new
// snapshot and swaps it in atomically, so readers never observe a partially
// built graph. There is no incremental update path; a new dataset means a
// full rebuild.
type Store interface {
	// Build constructs, validates, persists (if durable), and publishes a
	// fresh snapshot from the dataset. On error nothing is published and
	// any previously published snapshot remains readable.
	Build(ctx context.Context, ds *dataset.Dataset) (*Snapshot, error)

	// Snapshot returns the currently published snapshot, or ErrNoSnapshot
	// wrapped in ErrPrecondition semantics if no build has completed.
	Snapshot() (*Snapshot, error)

	// Neighbors returns the nodes reachable from nodeID within depth hops
	// via the given edge types (empty = all). Depth must be >= 1.
	Neighbors(ctx context.Context, nodeID string, edgeTypes []EdgeType, depth int) ([]string, error)

	// SharedResourceGroups returns, for each resource of the given type
	// used by >= 2 users, the group of sharing users.
	SharedResourceGroups(ctx context.Context, resource NodeType) ([]ResourceGroup, error)

	// TransactionPaths returns all directed simple paths between two users
	// along TRANSACTED edges, up to maxDepth hops. An empty result is not
	// an error.
	TransactionPaths(ctx context.Context, source, target string, maxDepth int) ([][]string, error)

	// Statistics returns node and edge counts per type.
	Statistics(ctx context.Context) (Statistics, error)

	// Close releases backend resources. The in-memory store is a no-op.
	Close() error
}
