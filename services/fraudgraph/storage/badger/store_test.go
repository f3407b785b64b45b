// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/dataset"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
)

// storeDataset mirrors the graph package fixture: U1-U3 share D1, U4 and U5
// share D2, U5 also holds D3 alone, five transactions.
func storeDataset() *dataset.Dataset {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &dataset.Dataset{
		Users: []dataset.UserRecord{
			{UserID: "U1", AccountAgeDays: 10, IsFraudster: true},
			{UserID: "U2", AccountAgeDays: 20, IsFraudster: true},
			{UserID: "U3", AccountAgeDays: 30, IsFraudster: true},
			{UserID: "U4", AccountAgeDays: 400},
			{UserID: "U5", AccountAgeDays: 500},
		},
		Devices: []dataset.DeviceRecord{
			{DeviceID: "D1", Kind: "mobile"},
			{DeviceID: "D2", Kind: "desktop"},
			{DeviceID: "D3", Kind: "tablet"},
		},
		UserDevices: []dataset.UsesDeviceRecord{
			{UserID: "U1", DeviceID: "D1"},
			{UserID: "U2", DeviceID: "D1"},
			{UserID: "U3", DeviceID: "D1"},
			{UserID: "U4", DeviceID: "D2"},
			{UserID: "U5", DeviceID: "D2"},
			{UserID: "U5", DeviceID: "D3"},
		},
		Transactions: []dataset.TransactionRecord{
			{TransactionID: "T1", SenderID: "U1", ReceiverID: "U2", Amount: 100, Timestamp: base},
			{TransactionID: "T2", SenderID: "U2", ReceiverID: "U3", Amount: 50, Timestamp: base.Add(time.Hour)},
			{TransactionID: "T3", SenderID: "U1", ReceiverID: "U3", Amount: 75, Timestamp: base.Add(2 * time.Hour)},
			{TransactionID: "T4", SenderID: "U4", ReceiverID: "U5", Amount: 20, Timestamp: base.Add(3 * time.Hour)},
			{TransactionID: "T5", SenderID: "U3", ReceiverID: "U1", Amount: 10, Timestamp: base.Add(4 * time.Hour)},
		},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_NoSnapshotBeforeBuild(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Snapshot()
	assert.ErrorIs(t, err, graph.ErrNoSnapshot)

	_, err = s.Neighbors(ctx, "U1", nil, 1)
	assert.ErrorIs(t, err, graph.ErrNoSnapshot)

	_, err = s.SharedResourceGroups(ctx, graph.NodeTypeDevice)
	assert.ErrorIs(t, err, graph.ErrNoSnapshot)

	_, err = s.TransactionPaths(ctx, "U1", "U2", 3)
	assert.ErrorIs(t, err, graph.ErrNoSnapshot)

	_, err = s.Statistics(ctx)
	assert.ErrorIs(t, err, graph.ErrNoSnapshot)
}

func TestBuild_PublishesSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	built, err := s.Build(ctx, storeDataset())
	require.NoError(t, err)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Same(t, built, snap)

	stats, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Statistics(), stats)
	assert.Equal(t, 5, stats.UserCount)
	assert.Equal(t, 3, stats.DeviceCount)
	assert.Equal(t, 6, stats.UsesDeviceCount)
	assert.Equal(t, 5, stats.TransactionCount)
}

func TestBuild_RejectsSeparatorInIdentifier(t *testing.T) {
	s := openTestStore(t)

	ds := storeDataset()
	ds.Users = append(ds.Users, dataset.UserRecord{UserID: "U9" + keySep + "evil", AccountAgeDays: 1})

	_, err := s.Build(context.Background(), ds)
	assert.ErrorIs(t, err, graph.ErrValidation)
}

func TestBuild_FailedBuildKeepsPreviousGraph(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Build(ctx, storeDataset())
	require.NoError(t, err)

	bad := storeDataset()
	bad.Transactions = append(bad.Transactions, dataset.TransactionRecord{
		TransactionID: "T99", SenderID: "U99", ReceiverID: "U1", Amount: 5,
	})
	_, err = s.Build(ctx, bad)
	require.ErrorIs(t, err, graph.ErrGraphIntegrity)

	stats, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TransactionCount)
}

func TestRebuild_ReplacesGraph(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Build(ctx, storeDataset())
	require.NoError(t, err)

	smaller := &dataset.Dataset{
		Users: []dataset.UserRecord{
			{UserID: "A", AccountAgeDays: 1},
			{UserID: "B", AccountAgeDays: 2},
		},
		Transactions: []dataset.TransactionRecord{
			{TransactionID: "T1", SenderID: "A", ReceiverID: "B", Amount: 5, Timestamp: time.Now()},
		},
	}
	_, err = s.Build(ctx, smaller)
	require.NoError(t, err)

	stats, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.UserCount)
	assert.Equal(t, 0, stats.DeviceCount)

	// Nodes of the previous generation are gone.
	_, err = s.Neighbors(ctx, "U1", nil, 1)
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestNeighbors_Validation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Build(ctx, storeDataset())
	require.NoError(t, err)

	_, err = s.Neighbors(ctx, "U1", nil, 0)
	assert.ErrorIs(t, err, graph.ErrValidation)

	_, err = s.Neighbors(ctx, "NOPE", nil, 1)
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestTransactionPaths_Validation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Build(ctx, storeDataset())
	require.NoError(t, err)

	_, err = s.TransactionPaths(ctx, "U1", "U3", 0)
	assert.ErrorIs(t, err, graph.ErrValidation)

	_, err = s.TransactionPaths(ctx, "NOPE", "U3", 3)
	assert.ErrorIs(t, err, graph.ErrNotFound)

	// No directed path: empty, not an error.
	paths, err := s.TransactionPaths(ctx, "U5", "U4", 3)
	require.NoError(t, err)
	assert.NotNil(t, paths)
	assert.Empty(t, paths)
}

func TestSharedResourceGroups_UnsupportedType(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Build(context.Background(), storeDataset())
	require.NoError(t, err)

	_, err = s.SharedResourceGroups(context.Background(), graph.NodeTypeUser)
	assert.ErrorIs(t, err, graph.ErrValidation)
}

// TestEquivalenceWithMemoryStore pins the contract that both backends answer
// every query identically for the same dataset.
func TestEquivalenceWithMemoryStore(t *testing.T) {
	ctx := context.Background()

	bs := openTestStore(t)
	_, err := bs.Build(ctx, storeDataset())
	require.NoError(t, err)

	ms := graph.NewMemoryStore()
	_, err = ms.Build(ctx, storeDataset())
	require.NoError(t, err)

	t.Run("neighbors", func(t *testing.T) {
		cases := []struct {
			node  string
			types []graph.EdgeType
			depth int
		}{
			{"U1", nil, 1},
			{"U1", nil, 2},
			{"U1", []graph.EdgeType{graph.EdgeTypeUsesDevice}, 1},
			{"U1", []graph.EdgeType{graph.EdgeTypeUsesDevice}, 2},
			{"U3", []graph.EdgeType{graph.EdgeTypeTransacted}, 1},
			{"U5", nil, 2},
			{"D1", nil, 1},
		}
		for _, c := range cases {
			want, err := ms.Neighbors(ctx, c.node, c.types, c.depth)
			require.NoError(t, err)
			got, err := bs.Neighbors(ctx, c.node, c.types, c.depth)
			require.NoError(t, err)
			assert.Equal(t, want, got, "node %s depth %d types %v", c.node, c.depth, c.types)
		}
	})

	t.Run("shared resource groups", func(t *testing.T) {
		want, err := ms.SharedResourceGroups(ctx, graph.NodeTypeDevice)
		require.NoError(t, err)
		got, err := bs.SharedResourceGroups(ctx, graph.NodeTypeDevice)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("transaction paths", func(t *testing.T) {
		pairs := [][2]string{{"U1", "U3"}, {"U2", "U1"}, {"U4", "U5"}, {"U1", "U4"}}
		for _, p := range pairs {
			want, err := ms.TransactionPaths(ctx, p[0], p[1], 4)
			require.NoError(t, err)
			got, err := bs.TransactionPaths(ctx, p[0], p[1], 4)
			require.NoError(t, err)
			assert.Equal(t, want, got, "paths %s -> %s", p[0], p[1])
		}
	})

	t.Run("statistics", func(t *testing.T) {
		want, err := ms.Statistics(ctx)
		require.NoError(t, err)
		got, err := bs.Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

// TestRestartPersistence closes a disk-backed store and reopens it; the
// graph must come back queryable without a rebuild.
func TestRestartPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := DefaultConfig(dir)
	cfg.SyncWrites = false

	s, err := Open(ctx, cfg)
	require.NoError(t, err)
	built, err := s.Build(ctx, storeDataset())
	require.NoError(t, err)
	wantStats := built.Statistics()
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	snap, err := reopened.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, wantStats, snap.Statistics())

	neighbors, err := reopened.Neighbors(ctx, "U1", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"D1", "U2", "U3"}, neighbors)

	groups, err := reopened.SharedResourceGroups(ctx, graph.NodeTypeDevice)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "D1", groups[0].ResourceID)
	assert.Equal(t, []string{"U1", "U2", "U3"}, groups[0].UserIDs)
}
