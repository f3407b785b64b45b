// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/dataset"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
)

func TestEvaluate_RingReport(t *testing.T) {
	snap, ana := buildScored(t, ringDataset())

	set, err := Score(context.Background(), snap, ana, DefaultConfig())
	require.NoError(t, err)

	report, err := Evaluate(snap, ana, set)
	require.NoError(t, err)

	assert.Equal(t, DefaultThreshold, report.Threshold)
	assert.Equal(t, []string{"F1", "F2", "F3"}, report.HighRiskUsers)

	require.Len(t, report.CommunityStats, 2)
	ring := report.CommunityStats[0]
	assert.Equal(t, 3, ring.Size)
	assert.Equal(t, 3, ring.FraudsterCount)
	assert.InDelta(t, 1.0, ring.FraudRate, 1e-9)

	legit := report.CommunityStats[1]
	assert.Equal(t, 2, legit.Size)
	assert.Equal(t, 0, legit.FraudsterCount)
	assert.InDelta(t, 0.0, legit.FraudRate, 1e-9)

	assert.InDelta(t, 1.0, report.Precision, 1e-9)
	assert.InDelta(t, 1.0, report.Recall, 1e-9)
	assert.InDelta(t, 1.0, report.F1, 1e-9)
}

// TestEvaluate_FalsePositive flags an unlabeled mule through device
// escalation, halving precision while recall stays perfect.
func TestEvaluate_FalsePositive(t *testing.T) {
	ds := &dataset.Dataset{
		Users: []dataset.UserRecord{
			{UserID: "HOT", AccountAgeDays: 5, IsFraudster: true},
			{UserID: "MULE", AccountAgeDays: 200},
		},
		Devices: []dataset.DeviceRecord{
			{DeviceID: "DS"},
			{DeviceID: "DM"},
		},
		UserDevices: []dataset.UsesDeviceRecord{
			{UserID: "HOT", DeviceID: "DS"},
			{UserID: "MULE", DeviceID: "DS"},
			{UserID: "MULE", DeviceID: "DM"},
		},
		Transactions: []dataset.TransactionRecord{
			{TransactionID: "T1", SenderID: "HOT", ReceiverID: "MULE", Amount: 5000, Timestamp: fixtureBase},
		},
	}
	snap, ana := buildScored(t, ds)

	set, err := Score(context.Background(), snap, ana, DefaultConfig())
	require.NoError(t, err)

	report, err := Evaluate(snap, ana, set)
	require.NoError(t, err)

	assert.Equal(t, []string{"HOT", "MULE"}, report.HighRiskUsers)
	assert.InDelta(t, 0.5, report.Precision, 1e-9)
	assert.InDelta(t, 1.0, report.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, report.F1, 1e-9)
}

func TestEvaluate_NoFlaggedUsers(t *testing.T) {
	snap, ana := buildScored(t, ringDataset())

	cfg := DefaultConfig()
	cfg.Threshold = 1.0
	set, err := Score(context.Background(), snap, ana, cfg)
	require.NoError(t, err)

	report, err := Evaluate(snap, ana, set)
	require.NoError(t, err)

	assert.Empty(t, report.HighRiskUsers)
	assert.Zero(t, report.Precision)
	assert.Zero(t, report.Recall)
	assert.Zero(t, report.F1)
}

func TestEvaluate_Preconditions(t *testing.T) {
	snap, ana := buildScored(t, ringDataset())

	set, err := Score(context.Background(), snap, ana, DefaultConfig())
	require.NoError(t, err)

	_, err = Evaluate(nil, ana, set)
	assert.ErrorIs(t, err, graph.ErrPrecondition)

	_, err = Evaluate(snap, nil, set)
	assert.ErrorIs(t, err, graph.ErrPrecondition)

	_, err = Evaluate(snap, ana, nil)
	assert.ErrorIs(t, err, graph.ErrPrecondition)

	stale := *set
	stale.SnapshotVersion++
	_, err = Evaluate(snap, ana, &stale)
	assert.ErrorIs(t, err, graph.ErrPrecondition)
}
