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
	"fmt"
	"sync/atomic"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/dataset"
)

// MemoryStore is the in-memory Store implementation.
//
// Data is scoped to the process lifetime. Snapshots are published through
// an atomic pointer, so a rebuild never disturbs queries already running
// against the previous snapshot.
//
// Thread Safety: Safe for concurrent use. Build serializes on callers;
// concurrent Build calls race only on which complete snapshot wins.
type MemoryStore struct {
	current atomic.Pointer[Snapshot]
}

// compile-time contract check
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store. No snapshot is published
// until the first successful Build.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Build constructs and publishes a fresh snapshot from the dataset.
func (m *MemoryStore) Build(ctx context.Context, ds *dataset.Dataset) (*Snapshot, error) {
	snap, err := BuildSnapshot(ctx, ds)
	if err != nil {
		return nil, err
	}
	m.current.Store(snap)
	return snap, nil
}

// Snapshot returns the currently published snapshot.
func (m *MemoryStore) Snapshot() (*Snapshot, error) {
	snap := m.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: build a dataset first", ErrNoSnapshot)
	}
	return snap, nil
}

// Neighbors returns nodes reachable within depth hops via the given edge
// types. See Snapshot.Neighbors for semantics.
func (m *MemoryStore) Neighbors(_ context.Context, nodeID string, edgeTypes []EdgeType, depth int) ([]string, error) {
	snap, err := m.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Neighbors(nodeID, edgeTypes, depth)
}

// SharedResourceGroups returns the shared-resource groups of the current
// snapshot.
func (m *MemoryStore) SharedResourceGroups(_ context.Context, resource NodeType) ([]ResourceGroup, error) {
	snap, err := m.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.SharedResourceGroups(resource)
}

// TransactionPaths returns directed simple paths between two users.
func (m *MemoryStore) TransactionPaths(_ context.Context, source, target string, maxDepth int) ([][]string, error) {
	snap, err := m.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.TransactionPaths(source, target, maxDepth)
}

// Statistics returns node and edge counts of the current snapshot.
func (m *MemoryStore) Statistics(_ context.Context) (Statistics, error) {
	snap, err := m.Snapshot()
	if err != nil {
		return Statistics{}, err
	}
	return snap.Statistics(), nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
