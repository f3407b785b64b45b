// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/dataset"
)

func mustBuild(t *testing.T, ds *dataset.Dataset) *Snapshot {
	t.Helper()
	snap, err := BuildSnapshot(context.Background(), ds)
	require.NoError(t, err)
	return snap
}

func dsUsesDevice(userID, deviceID string) dataset.UsesDeviceRecord {
	return dataset.UsesDeviceRecord{UserID: userID, DeviceID: deviceID}
}

func TestNeighbors_DepthOne_AllEdges(t *testing.T) {
	snap := buildTestSnapshot(t)

	got, err := snap.Neighbors("U1", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"D1", "U2", "U3"}, got)
}

func TestNeighbors_DeviceEdgesOnly(t *testing.T) {
	snap := buildTestSnapshot(t)

	got, err := snap.Neighbors("U1", []EdgeType{EdgeTypeUsesDevice}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"D1"}, got)

	// Depth 2 crosses the shared device to its other users.
	got, err = snap.Neighbors("U1", []EdgeType{EdgeTypeUsesDevice}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"D1", "U2", "U3"}, got)
}

func TestNeighbors_TransactionEdgesOnly(t *testing.T) {
	snap := buildTestSnapshot(t)

	// Counterparties in either direction, no devices.
	got, err := snap.Neighbors("U3", []EdgeType{EdgeTypeTransacted}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, got)
}

func TestNeighbors_FromDevice(t *testing.T) {
	snap := buildTestSnapshot(t)

	got, err := snap.Neighbors("D1", []EdgeType{EdgeTypeUsesDevice}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2", "U3"}, got)
}

func TestNeighbors_ExcludesStartNode(t *testing.T) {
	snap := buildTestSnapshot(t)

	// U1 -> U2 -> U1 would revisit the start; it must not be reported.
	got, err := snap.Neighbors("U1", nil, 3)
	require.NoError(t, err)
	assert.NotContains(t, got, "U1")
}

func TestNeighbors_InvalidDepth(t *testing.T) {
	snap := buildTestSnapshot(t)

	_, err := snap.Neighbors("U1", nil, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNeighbors_UnknownNode(t *testing.T) {
	snap := buildTestSnapshot(t)

	_, err := snap.Neighbors("U99", nil, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNeighbors_IsolatedUser(t *testing.T) {
	ds := testDataset()
	ds.Users = append(ds.Users, dataset.UserRecord{UserID: "U6", AccountAgeDays: 50})

	snap := mustBuild(t, ds)
	got, err := snap.Neighbors("U6", nil, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSharedResourceGroups_Ordering(t *testing.T) {
	snap := buildTestSnapshot(t)

	groups, err := snap.SharedResourceGroups(NodeTypeDevice)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	// Largest group first; members sorted ascending.
	assert.Equal(t, "D1", groups[0].ResourceID)
	assert.Equal(t, []string{"U1", "U2", "U3"}, groups[0].UserIDs)
	assert.Equal(t, "D2", groups[1].ResourceID)
	assert.Equal(t, []string{"U4", "U5"}, groups[1].UserIDs)
}

func TestSharedResourceGroups_ExcludesSingleUserDevices(t *testing.T) {
	snap := buildTestSnapshot(t)

	groups, err := snap.SharedResourceGroups(NodeTypeDevice)
	require.NoError(t, err)
	for _, g := range groups {
		assert.NotEqual(t, "D3", g.ResourceID)
		assert.GreaterOrEqual(t, g.Size(), 2)
	}
}

func TestSharedResourceGroups_DuplicateLinksCountOnce(t *testing.T) {
	ds := testDataset()
	ds.UserDevices = append(ds.UserDevices,
		dsUsesDevice("U5", "D3"), dsUsesDevice("U5", "D3"))

	snap := mustBuild(t, ds)
	groups, err := snap.SharedResourceGroups(NodeTypeDevice)
	require.NoError(t, err)
	for _, g := range groups {
		// D3 is still used by U5 alone despite the repeated links.
		assert.NotEqual(t, "D3", g.ResourceID)
	}
}

func TestSharedResourceGroups_UnsupportedType(t *testing.T) {
	snap := buildTestSnapshot(t)

	_, err := snap.SharedResourceGroups(NodeTypeUser)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTransactionPaths_FindsAllSimplePaths(t *testing.T) {
	snap := buildTestSnapshot(t)

	paths, err := snap.TransactionPaths("U1", "U3", 3)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"U1", "U2", "U3"},
		{"U1", "U3"},
	}, paths)
}

func TestTransactionPaths_DepthLimit(t *testing.T) {
	snap := buildTestSnapshot(t)

	paths, err := snap.TransactionPaths("U1", "U3", 1)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"U1", "U3"}}, paths)
}

func TestTransactionPaths_RespectsDirection(t *testing.T) {
	snap := buildTestSnapshot(t)

	// U5 only receives; nothing flows out of it.
	paths, err := snap.TransactionPaths("U5", "U4", 5)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestTransactionPaths_NoPathIsNotAnError(t *testing.T) {
	snap := buildTestSnapshot(t)

	paths, err := snap.TransactionPaths("U1", "U4", 5)
	require.NoError(t, err)
	assert.NotNil(t, paths)
	assert.Empty(t, paths)
}

func TestTransactionPaths_CycleDoesNotLoop(t *testing.T) {
	snap := buildTestSnapshot(t)

	// U1 -> U2 -> U3 -> U1 is a cycle; simple paths must not revisit U1.
	paths, err := snap.TransactionPaths("U2", "U1", 5)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"U2", "U3", "U1"}}, paths)
}

func TestTransactionPaths_Validation(t *testing.T) {
	snap := buildTestSnapshot(t)

	_, err := snap.TransactionPaths("U1", "U3", 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = snap.TransactionPaths("U99", "U3", 3)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = snap.TransactionPaths("U1", "U99", 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProject_Weights(t *testing.T) {
	snap := buildTestSnapshot(t)
	p := snap.Project()

	assert.Equal(t, []string{"U1", "U2", "U3", "U4", "U5"}, p.IDs)

	// U1-U2: one transaction plus one shared device.
	assert.Equal(t, 2.0, p.Weights["U1"]["U2"])
	assert.Equal(t, p.Weights["U1"]["U2"], p.Weights["U2"]["U1"])

	// U1-U3: two transactions (T3, T5) plus one shared device.
	assert.Equal(t, 3.0, p.Weights["U1"]["U3"])

	// U4-U5: one transaction plus one shared device.
	assert.Equal(t, 2.0, p.Weights["U4"]["U5"])

	// No cross-component edges.
	assert.Zero(t, p.Weights["U1"]["U4"])
}

func TestProject_TotalWeight(t *testing.T) {
	snap := buildTestSnapshot(t)
	p := snap.Project()

	// Pair weights: U1-U2=2, U1-U3=3, U2-U3=2, U4-U5=2.
	assert.Equal(t, 9.0, p.TotalWeight)
}

func TestProject_Degree(t *testing.T) {
	snap := buildTestSnapshot(t)
	p := snap.Project()

	assert.Equal(t, 5.0, p.Degree("U1"))
	assert.Equal(t, []string{"U2", "U3"}, p.NeighborIDs("U1"))
}

func TestProject_Deterministic(t *testing.T) {
	snap := buildTestSnapshot(t)

	p1 := snap.Project()
	p2 := snap.Project()
	assert.Equal(t, p1.IDs, p2.IDs)
	assert.Equal(t, p1.Weights, p2.Weights)
	assert.Equal(t, p1.TotalWeight, p2.TotalWeight)
}
