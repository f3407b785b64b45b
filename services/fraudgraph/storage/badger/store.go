// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/fraudgraph/pkg/validation"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/dataset"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
)

var storeTracer = otel.Tracer("fraudgraph.storage.badger")

// Store is the BadgerDB-backed graph.Store implementation.
//
// A build writes a complete new key generation and flips the meta marker
// only after every key is durable, so a crash mid-build leaves the previous
// graph intact. On Open the store reloads the current generation and
// republishes its snapshot, surviving process restarts.
//
// Queries run against the database through prefix iteration rather than the
// cached snapshot; the snapshot exists for the analytics pipeline, which
// needs random access the key-value layout cannot give cheaply.
//
// Thread Safety: Safe for concurrent use. Build is serialized internally.
type Store struct {
	db        *badger.DB
	log       *slog.Logger
	retries   int
	baseDelay time.Duration

	buildMu sync.Mutex
	gen     atomic.Uint64
	current atomic.Pointer[graph.Snapshot]
}

// compile-time contract check
var _ graph.Store = (*Store)(nil)

// Open opens (or creates) the store and reloads any persisted graph.
//
// Description:
//
//	Opens the BadgerDB instance, reads the current generation marker, and
//	if a generation exists rebuilds and republishes its snapshot. A store
//	with no persisted graph opens successfully; queries return
//	ErrNoSnapshot until the first Build.
//
// Inputs:
//
//	ctx - Bounds the reload of a persisted graph.
//	cfg - Store configuration. See Config.
//
// Outputs:
//
//	*Store - The opened store. Caller must Close() it.
//	error - Non-nil if the database cannot be opened or a persisted
//	        generation is unreadable.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrBackendUnavailable, err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultRetryBaseDelay
	}

	s := &Store{db: db, log: log, retries: retries, baseDelay: baseDelay}

	gen, err := s.readGeneration()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if gen > 0 {
		snap, err := s.loadGeneration(ctx, gen)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("reload generation %d: %w", gen, err)
		}
		s.gen.Store(gen)
		s.current.Store(snap)
		stats := snap.Statistics()
		log.Info("reloaded persisted graph",
			"generation", gen,
			"users", stats.UserCount,
			"devices", stats.DeviceCount,
			"transactions", stats.TransactionCount)
	}
	return s, nil
}

// readGeneration returns the current generation marker, 0 when absent.
func (s *Store) readGeneration() (uint64, error) {
	var gen uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaGenKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			gen, err = strconv.ParseUint(string(v), 10, 64)
			return err
		})
	})
	if err != nil {
		return 0, fmt.Errorf("%w: read generation marker: %v", graph.ErrBackendUnavailable, err)
	}
	return gen, nil
}

// =============================================================================
// Build
// =============================================================================

// Build constructs, persists, and publishes a fresh snapshot.
//
// Description:
//
//	Validates and assembles the snapshot in memory first, so no key is
//	written for a dataset that would be rejected. The graph is then written
//	under a new generation prefix in a write batch, the generation marker
//	is flipped, and the previous generation is dropped. Readers either see
//	the old complete graph or the new complete graph, never a mix.
//
// Outputs:
//
//	*graph.Snapshot - The published snapshot.
//	error - Validation and integrity errors pass through from the builder;
//	        persistent write failures surface as ErrBackendUnavailable.
func (s *Store) Build(ctx context.Context, ds *dataset.Dataset) (*graph.Snapshot, error) {
	ctx, span := storeTracer.Start(ctx, "badger.Build")
	defer span.End()

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	snap, err := graph.BuildSnapshot(ctx, ds)
	if err != nil {
		return nil, err
	}
	if err := checkIdentifiers(ds); err != nil {
		return nil, err
	}

	oldGen := s.gen.Load()
	newGen := oldGen + 1

	err = withRetry(ctx, s.log, s.retries, s.baseDelay, "persist", func() error {
		return s.persist(newGen, ds, snap.Statistics())
	})
	if err != nil {
		return nil, err
	}

	// The flip is the commit point: until this key lands, the previous
	// generation remains the readable graph.
	err = withRetry(ctx, s.log, s.retries, s.baseDelay, "flip generation", func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(metaGenKey, []byte(strconv.FormatUint(newGen, 10)))
		})
	})
	if err != nil {
		return nil, err
	}

	s.gen.Store(newGen)
	s.current.Store(snap)
	span.SetAttributes(attribute.Int64("generation", int64(newGen)))

	if oldGen > 0 {
		if err := s.db.DropPrefix(genPrefix(oldGen)); err != nil {
			s.log.Warn("dropping previous generation failed",
				"generation", oldGen, "error", err)
		}
	}

	stats := snap.Statistics()
	s.log.Info("graph persisted",
		"generation", newGen,
		"nodes", stats.TotalNodes(),
		"edges", stats.TotalEdges())
	return snap, nil
}

// checkIdentifiers rejects identifiers that cannot appear in a storage key.
func checkIdentifiers(ds *dataset.Dataset) error {
	check := func(table, id string) error {
		if err := validation.ValidateID(table, id); err != nil {
			return fmt.Errorf("%w: %v", graph.ErrValidation, err)
		}
		return nil
	}
	for _, r := range ds.Users {
		if err := check("user", r.UserID); err != nil {
			return err
		}
	}
	for _, r := range ds.Devices {
		if err := check("device", r.DeviceID); err != nil {
			return err
		}
	}
	for _, r := range ds.Transactions {
		if err := check("transaction", r.TransactionID); err != nil {
			return err
		}
	}
	return nil
}

// persist writes one complete generation through a write batch.
func (s *Store) persist(gen uint64, ds *dataset.Dataset, stats graph.Statistics) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	set := func(k []byte, v []byte) error {
		return wb.Set(k, v)
	}
	setJSON := func(k []byte, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return set(k, data)
	}

	for _, r := range ds.Users {
		u := graph.User{ID: r.UserID, AccountAgeDays: r.AccountAgeDays, IsFraudster: r.IsFraudster}
		if err := setJSON(userKey(gen, u.ID), u); err != nil {
			return err
		}
	}
	for _, r := range ds.Devices {
		d := graph.Device{ID: r.DeviceID, Kind: r.Kind}
		if err := setJSON(deviceKey(gen, d.ID), d); err != nil {
			return err
		}
	}

	// USES_DEVICE multiplicity collapses into a per-pair count.
	links := make(map[string]map[string]int)
	for _, r := range ds.UserDevices {
		if links[r.UserID] == nil {
			links[r.UserID] = make(map[string]int)
		}
		links[r.UserID][r.DeviceID]++
	}
	for userID, devices := range links {
		for deviceID, count := range devices {
			v := []byte(strconv.Itoa(count))
			if err := set(udKey(gen, userID, deviceID), v); err != nil {
				return err
			}
			if err := set(duKey(gen, deviceID, userID), v); err != nil {
				return err
			}
		}
	}

	for _, r := range ds.Transactions {
		t := graph.Transaction{
			ID:           r.TransactionID,
			SenderID:     r.SenderID,
			ReceiverID:   r.ReceiverID,
			Amount:       r.Amount,
			Timestamp:    r.Timestamp,
			IsFraudulent: r.IsFraudulent,
		}
		if err := setJSON(txnKey(gen, t.ID), t); err != nil {
			return err
		}
		if err := set(txsKey(gen, t.SenderID, t.ID), []byte(t.ReceiverID)); err != nil {
			return err
		}
		if err := set(txrKey(gen, t.ReceiverID, t.ID), []byte(t.SenderID)); err != nil {
			return err
		}
	}

	if err := setJSON(statsKey(gen), stats); err != nil {
		return err
	}
	return wb.Flush()
}

// loadGeneration reconstructs the dataset of a generation and rebuilds its
// snapshot through the regular builder, so reloads get the same validation
// and adjacency ordering as fresh builds.
func (s *Store) loadGeneration(ctx context.Context, gen uint64) (*graph.Snapshot, error) {
	var ds dataset.Dataset
	err := s.db.View(func(txn *badger.Txn) error {
		if err := forEachValue(txn, prefix(gen, "user"), func(v []byte) error {
			var u graph.User
			if err := json.Unmarshal(v, &u); err != nil {
				return err
			}
			ds.Users = append(ds.Users, dataset.UserRecord{
				UserID:         u.ID,
				AccountAgeDays: u.AccountAgeDays,
				IsFraudster:    u.IsFraudster,
			})
			return nil
		}); err != nil {
			return err
		}
		if err := forEachValue(txn, prefix(gen, "device"), func(v []byte) error {
			var d graph.Device
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			ds.Devices = append(ds.Devices, dataset.DeviceRecord{DeviceID: d.ID, Kind: d.Kind})
			return nil
		}); err != nil {
			return err
		}
		udPrefix := prefix(gen, "ud")
		if err := forEachPair(txn, udPrefix, func(userID, deviceID string, v []byte) error {
			count, err := strconv.Atoi(string(v))
			if err != nil {
				return fmt.Errorf("corrupt link count for %s/%s: %w", userID, deviceID, err)
			}
			for i := 0; i < count; i++ {
				ds.UserDevices = append(ds.UserDevices, dataset.UsesDeviceRecord{
					UserID:   userID,
					DeviceID: deviceID,
				})
			}
			return nil
		}); err != nil {
			return err
		}
		return forEachValue(txn, prefix(gen, "txn"), func(v []byte) error {
			var t graph.Transaction
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			ds.Transactions = append(ds.Transactions, dataset.TransactionRecord{
				TransactionID: t.ID,
				SenderID:      t.SenderID,
				ReceiverID:    t.ReceiverID,
				Amount:        t.Amount,
				Timestamp:     t.Timestamp,
				IsFraudulent:  t.IsFraudulent,
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrBackendUnavailable, err)
	}
	return graph.BuildSnapshot(ctx, &ds)
}

// =============================================================================
// graph.Store queries
// =============================================================================

// Snapshot returns the currently published snapshot.
func (s *Store) Snapshot() (*graph.Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: build a dataset first", graph.ErrNoSnapshot)
	}
	return snap, nil
}

// Neighbors answers the neighborhood query by breadth-first expansion over
// the persisted adjacency indexes. Semantics match Snapshot.Neighbors.
func (s *Store) Neighbors(ctx context.Context, nodeID string, edgeTypes []graph.EdgeType, depth int) ([]string, error) {
	if depth < 1 {
		return nil, fmt.Errorf("%w: depth must be >= 1, got %d", graph.ErrValidation, depth)
	}
	gen, err := s.currentGen()
	if err != nil {
		return nil, err
	}
	useDevice, useTxn := edgeFlags(edgeTypes)

	var out []string
	err = withRetry(ctx, s.log, s.retries, s.baseDelay, "neighbors", func() error {
		out = nil
		return s.db.View(func(txn *badger.Txn) error {
			if err := s.requireNode(txn, gen, nodeID); err != nil {
				return err
			}
			visited := map[string]bool{nodeID: true}
			frontier := []string{nodeID}
			for hop := 0; hop < depth && len(frontier) > 0; hop++ {
				var next []string
				for _, id := range frontier {
					adj, err := s.adjacent(txn, gen, id, useDevice, useTxn)
					if err != nil {
						return err
					}
					for _, n := range adj {
						if !visited[n] {
							visited[n] = true
							next = append(next, n)
						}
					}
				}
				frontier = next
			}
			delete(visited, nodeID)
			out = make([]string, 0, len(visited))
			for id := range visited {
				out = append(out, id)
			}
			sort.Strings(out)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SharedResourceGroups answers the shared-device query from the reverse
// device index. Semantics and ordering match Snapshot.SharedResourceGroups.
func (s *Store) SharedResourceGroups(ctx context.Context, resource graph.NodeType) ([]graph.ResourceGroup, error) {
	if resource != graph.NodeTypeDevice {
		return nil, fmt.Errorf("%w: unsupported shared-resource type %q", graph.ErrValidation, resource)
	}
	gen, err := s.currentGen()
	if err != nil {
		return nil, err
	}

	var groups []graph.ResourceGroup
	err = withRetry(ctx, s.log, s.retries, s.baseDelay, "shared resource groups", func() error {
		groups = make([]graph.ResourceGroup, 0)
		return s.db.View(func(txn *badger.Txn) error {
			// Key order is lexicographic, so each device's users arrive as
			// one contiguous, already-sorted run.
			var current graph.ResourceGroup
			flush := func() {
				if current.Size() >= 2 {
					groups = append(groups, current)
				}
			}
			err := forEachPair(txn, prefix(gen, "du"), func(deviceID, userID string, _ []byte) error {
				if deviceID != current.ResourceID {
					flush()
					current = graph.ResourceGroup{ResourceID: deviceID}
				}
				current.UserIDs = append(current.UserIDs, userID)
				return nil
			})
			if err != nil {
				return err
			}
			flush()
			return nil
		})
	})
	if err != nil {
		return nil, err
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

// TransactionPaths answers the path query by depth-first search over the
// persisted sender index. Semantics match Snapshot.TransactionPaths.
func (s *Store) TransactionPaths(ctx context.Context, source, target string, maxDepth int) ([][]string, error) {
	if maxDepth < 1 {
		return nil, fmt.Errorf("%w: max_depth must be >= 1, got %d", graph.ErrValidation, maxDepth)
	}
	gen, err := s.currentGen()
	if err != nil {
		return nil, err
	}

	var paths [][]string
	err = withRetry(ctx, s.log, s.retries, s.baseDelay, "transaction paths", func() error {
		paths = make([][]string, 0)
		return s.db.View(func(txn *badger.Txn) error {
			for _, id := range []string{source, target} {
				if _, err := txn.Get(userKey(gen, id)); errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("%w: user %s", graph.ErrNotFound, id)
				} else if err != nil {
					return err
				}
			}

			onPath := map[string]bool{source: true}
			path := []string{source}
			var walk func(current string) error
			walk = func(current string) error {
				if len(path)-1 >= maxDepth {
					return nil
				}
				receivers, err := s.receivers(txn, gen, current)
				if err != nil {
					return err
				}
				for _, next := range receivers {
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
						if err := walk(next); err != nil {
							return err
						}
						delete(onPath, next)
					}
					path = path[:len(path)-1]
				}
				return nil
			}
			return walk(source)
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(paths, func(i, j int) bool {
		return lessPath(paths[i], paths[j])
	})
	return paths, nil
}

// Statistics returns the persisted per-type counts of the current
// generation.
func (s *Store) Statistics(ctx context.Context) (graph.Statistics, error) {
	gen, err := s.currentGen()
	if err != nil {
		return graph.Statistics{}, err
	}
	var stats graph.Statistics
	err = withRetry(ctx, s.log, s.retries, s.baseDelay, "statistics", func() error {
		return s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(statsKey(gen))
			if err != nil {
				return err
			}
			return item.Value(func(v []byte) error {
				return json.Unmarshal(v, &stats)
			})
		})
	})
	if err != nil {
		return graph.Statistics{}, err
	}
	return stats, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// Iteration helpers
// =============================================================================

// currentGen returns the published generation or ErrNoSnapshot.
func (s *Store) currentGen() (uint64, error) {
	gen := s.gen.Load()
	if gen == 0 {
		return 0, fmt.Errorf("%w: build a dataset first", graph.ErrNoSnapshot)
	}
	return gen, nil
}

// requireNode verifies a user or device node exists in the generation.
func (s *Store) requireNode(txn *badger.Txn, gen uint64, nodeID string) error {
	if _, err := txn.Get(userKey(gen, nodeID)); err == nil {
		return nil
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	if _, err := txn.Get(deviceKey(gen, nodeID)); err == nil {
		return nil
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return fmt.Errorf("%w: node %s", graph.ErrNotFound, nodeID)
}

// adjacent returns the one-hop neighborhood of a node over the enabled edge
// types, read from the persisted indexes.
func (s *Store) adjacent(txn *badger.Txn, gen uint64, id string, useDevice, useTxn bool) ([]string, error) {
	var out []string
	if useDevice {
		out = append(out, scanLastSegments(txn, prefix(gen, "ud", id))...)
		out = append(out, scanLastSegments(txn, prefix(gen, "du", id))...)
	}
	if useTxn {
		receivers, err := scanValues(txn, prefix(gen, "txs", id))
		if err != nil {
			return nil, err
		}
		senders, err := scanValues(txn, prefix(gen, "txr", id))
		if err != nil {
			return nil, err
		}
		out = append(out, receivers...)
		out = append(out, senders...)
	}
	return out, nil
}

// receivers returns the distinct sorted transaction receivers of a user.
func (s *Store) receivers(txn *badger.Txn, gen uint64, userID string) ([]string, error) {
	values, err := scanValues(txn, prefix(gen, "txs", userID))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out, nil
}

// scanLastSegments iterates a prefix keys-only and returns the final key
// segment of every match.
func scanLastSegments(txn *badger.Txn, pfx []byte) []string {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = pfx
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []string
	for it.Rewind(); it.Valid(); it.Next() {
		out = append(out, lastSegment(it.Item().Key()))
	}
	return out
}

// scanValues iterates a prefix and returns the value of every match.
func scanValues(txn *badger.Txn, pfx []byte) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = pfx
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []string
	for it.Rewind(); it.Valid(); it.Next() {
		v, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, string(v))
	}
	return out, nil
}

// forEachValue iterates a prefix and applies fn to every value.
func forEachValue(txn *badger.Txn, pfx []byte, fn func(v []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = pfx
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// forEachPair iterates a two-segment prefix (ud, du) and applies fn to the
// parsed segments and value.
func forEachPair(txn *badger.Txn, pfx []byte, fn func(a, b string, v []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = pfx
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		rest := strings.TrimPrefix(string(item.Key()), string(pfx))
		parts := strings.SplitN(rest, keySep, 2)
		if len(parts) != 2 {
			return fmt.Errorf("malformed key %q", item.Key())
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(parts[0], parts[1], v); err != nil {
			return err
		}
	}
	return nil
}

// edgeFlags resolves a type filter into per-type booleans. An empty filter
// enables every type.
func edgeFlags(edgeTypes []graph.EdgeType) (useDevice, useTxn bool) {
	if len(edgeTypes) == 0 {
		return true, true
	}
	for _, t := range edgeTypes {
		switch t {
		case graph.EdgeTypeUsesDevice:
			useDevice = true
		case graph.EdgeTypeTransacted:
			useTxn = true
		}
	}
	return useDevice, useTxn
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
