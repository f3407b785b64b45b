// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fraudgraph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/config"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/dataset"
)

func TestDatasetWatcher_RebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, dataset.Save(serviceDataset(), dir))

	cfg := config.Default()
	cfg.Dataset.Dir = dir
	svc := newTestService(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := svc.LoadAndBuild(ctx, "")
	require.NoError(t, err)

	w, err := NewDatasetWatcher(svc, dir, 50*time.Millisecond, svc.log)
	require.NoError(t, err)
	w.Start(ctx)
	defer w.Stop()

	// Rewrite the dataset with one extra user; the watcher should coalesce
	// the burst of CSV writes into a single rebuild.
	grown := serviceDataset()
	grown.Users = append(grown.Users, dataset.UserRecord{UserID: "L3", AccountAgeDays: 300})
	require.NoError(t, dataset.Save(grown, dir))

	assert.Eventually(t, func() bool {
		snap, err := svc.Snapshot()
		if err != nil {
			return false
		}
		return snap.Statistics().UserCount == 6
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDatasetWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, dataset.Save(serviceDataset(), dir))

	svc := newTestService(t, config.Default())

	w, err := NewDatasetWatcher(svc, dir, 50*time.Millisecond, svc.log)
	require.NoError(t, err)
	w.Start(context.Background())

	w.Stop()
	w.Stop()
}

func TestDatasetWatcher_MissingDirectory(t *testing.T) {
	svc := newTestService(t, config.Default())

	_, err := NewDatasetWatcher(svc, "/nonexistent/fraudgraph-watch", 50*time.Millisecond, svc.log)
	assert.Error(t, err)
}
