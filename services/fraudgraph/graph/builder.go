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
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/dataset"
)

var builderTracer = otel.Tracer("fraudgraph.graph.builder")

// BuildSnapshot constructs a fresh, validated snapshot from a dataset.
//
// Description:
//
//	Loads nodes before edges so every edge endpoint can be resolved.
//	Schema validation failures surface as ErrValidation; dangling edge
//	references surface as ErrGraphIntegrity. On any failure no snapshot is
//	returned: a partially built graph is never observable. The returned
//	snapshot is frozen and safe for concurrent readers.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	ds - The dataset to materialize. Must not be nil.
//
// Outputs:
//
//	*Snapshot - The frozen snapshot. Nil on error.
//	error - ErrValidation, ErrGraphIntegrity, or ctx.Err().
//
// Thread Safety: Safe for concurrent use; each call builds its own snapshot.
func BuildSnapshot(ctx context.Context, ds *dataset.Dataset) (*Snapshot, error) {
	ctx, span := builderTracer.Start(ctx, "graph.BuildSnapshot")
	defer span.End()

	if ds == nil {
		return nil, fmt.Errorf("%w: dataset is nil", ErrValidation)
	}
	users, devices, userDevices, txns := ds.Counts()
	span.SetAttributes(
		attribute.Int("dataset.users", users),
		attribute.Int("dataset.devices", devices),
		attribute.Int("dataset.user_devices", userDevices),
		attribute.Int("dataset.transactions", txns),
	)

	if err := ds.Validate(); err != nil {
		span.AddEvent("schema_validation_failed")
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	snap := newSnapshot()

	for _, u := range ds.Users {
		if err := snap.addUser(User{
			ID:             u.UserID,
			AccountAgeDays: u.AccountAgeDays,
			IsFraudster:    u.IsFraudster,
		}); err != nil {
			return nil, err
		}
	}
	for _, d := range ds.Devices {
		if err := snap.addDevice(Device{ID: d.DeviceID, Kind: d.Kind}); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, rel := range ds.UserDevices {
		if err := snap.addUsesDevice(rel.UserID, rel.DeviceID); err != nil {
			return nil, err
		}
	}
	for _, t := range ds.Transactions {
		if err := snap.addTransaction(Transaction{
			ID:           t.TransactionID,
			SenderID:     t.SenderID,
			ReceiverID:   t.ReceiverID,
			Amount:       t.Amount,
			Timestamp:    t.Timestamp,
			IsFraudulent: t.IsFraudulent,
		}); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap.Freeze()

	stats := snap.Statistics()
	span.SetAttributes(
		attribute.Int("graph.nodes", stats.TotalNodes()),
		attribute.Int("graph.edges", stats.TotalEdges()),
	)
	slog.Debug("graph snapshot built",
		"users", stats.UserCount,
		"devices", stats.DeviceCount,
		"uses_device_edges", stats.UsesDeviceCount,
		"transactions", stats.TransactionCount,
		"duration", time.Since(start),
	)
	return snap, nil
}
