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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/dataset"
)

// testDataset returns a small dataset with one shared-device ring
// (U1, U2, U3 on D1), a second shared pair (U4, U5 on D2), and a
// transaction cycle U1 -> U2 -> U3 -> U1 plus a direct U1 -> U3 edge.
func testDataset() *dataset.Dataset {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
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
			{TransactionID: "T1", SenderID: "U1", ReceiverID: "U2", Amount: 100, Timestamp: ts, IsFraudulent: true},
			{TransactionID: "T2", SenderID: "U2", ReceiverID: "U3", Amount: 50, Timestamp: ts.Add(time.Minute)},
			{TransactionID: "T3", SenderID: "U1", ReceiverID: "U3", Amount: 75, Timestamp: ts.Add(2 * time.Minute)},
			{TransactionID: "T4", SenderID: "U4", ReceiverID: "U5", Amount: 20, Timestamp: ts.Add(3 * time.Minute)},
			{TransactionID: "T5", SenderID: "U3", ReceiverID: "U1", Amount: 10, Timestamp: ts.Add(4 * time.Minute)},
		},
	}
}

func buildTestSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := BuildSnapshot(context.Background(), testDataset())
	require.NoError(t, err)
	return snap
}

func TestBuildSnapshot_Counts(t *testing.T) {
	snap := buildTestSnapshot(t)

	stats := snap.Statistics()
	assert.Equal(t, 5, stats.UserCount)
	assert.Equal(t, 3, stats.DeviceCount)
	assert.Equal(t, 6, stats.UsesDeviceCount)
	assert.Equal(t, 5, stats.TransactionCount)
	assert.Equal(t, 8, stats.TotalNodes())
	assert.Equal(t, 11, stats.TotalEdges())
}

func TestBuildSnapshot_Frozen(t *testing.T) {
	snap := buildTestSnapshot(t)

	assert.True(t, snap.IsFrozen())
	assert.Greater(t, snap.Version(), int64(0))

	err := snap.addUser(User{ID: "U99"})
	assert.ErrorIs(t, err, ErrSnapshotFrozen)
}

func TestBuildSnapshot_NilDataset(t *testing.T) {
	_, err := BuildSnapshot(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBuildSnapshot_DanglingDeviceRef(t *testing.T) {
	ds := testDataset()
	ds.UserDevices = append(ds.UserDevices, dataset.UsesDeviceRecord{UserID: "U1", DeviceID: "D99"})

	_, err := BuildSnapshot(context.Background(), ds)
	assert.ErrorIs(t, err, ErrGraphIntegrity)
}

func TestBuildSnapshot_DanglingTransactionRef(t *testing.T) {
	ds := testDataset()
	ds.Transactions = append(ds.Transactions, dataset.TransactionRecord{
		TransactionID: "T99", SenderID: "U99", ReceiverID: "U1", Amount: 5,
	})

	_, err := BuildSnapshot(context.Background(), ds)
	assert.ErrorIs(t, err, ErrGraphIntegrity)
}

func TestBuildSnapshot_DuplicateUser(t *testing.T) {
	ds := testDataset()
	ds.Users = append(ds.Users, dataset.UserRecord{UserID: "U1", AccountAgeDays: 1})

	_, err := BuildSnapshot(context.Background(), ds)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBuildSnapshot_NonPositiveAmount(t *testing.T) {
	ds := testDataset()
	ds.Transactions = append(ds.Transactions, dataset.TransactionRecord{
		TransactionID: "T99", SenderID: "U1", ReceiverID: "U2", Amount: 0,
	})

	_, err := BuildSnapshot(context.Background(), ds)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBuildSnapshot_SelfLoopTransactionAllowed(t *testing.T) {
	ds := testDataset()
	ds.Transactions = append(ds.Transactions, dataset.TransactionRecord{
		TransactionID: "T99", SenderID: "U1", ReceiverID: "U1", Amount: 5,
	})

	snap, err := BuildSnapshot(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 6, snap.Statistics().TransactionCount)
}

func TestBuildSnapshot_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildSnapshot(ctx, testDataset())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshot_Accessors(t *testing.T) {
	snap := buildTestSnapshot(t)

	u, ok := snap.User("U1")
	require.True(t, ok)
	assert.Equal(t, 10, u.AccountAgeDays)
	assert.True(t, u.IsFraudster)

	d, ok := snap.Device("D1")
	require.True(t, ok)
	assert.Equal(t, "mobile", d.Kind)

	_, ok = snap.User("U99")
	assert.False(t, ok)

	assert.Equal(t, []string{"U1", "U2", "U3", "U4", "U5"}, snap.UserIDs())
	assert.Equal(t, []string{"D1", "D2", "D3"}, snap.DeviceIDs())
	assert.Equal(t, []string{"D1"}, snap.DevicesOf("U1"))
	assert.Equal(t, []string{"U1", "U2", "U3"}, snap.UsersOf("D1"))
}

func TestSnapshot_TransactionIndexes(t *testing.T) {
	snap := buildTestSnapshot(t)

	sent := snap.TransactionsBySender("U1")
	require.Len(t, sent, 2)

	received := snap.TransactionsByReceiver("U3")
	require.Len(t, received, 2)

	assert.Len(t, snap.Transactions(), 5)
}
