// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the fraud graph data model and storage abstraction.
//
// The graph holds two node kinds (users and devices) and two edge kinds:
// USES_DEVICE (user ↔ device, undirected for query purposes) and TRANSACTED
// (user → user, directed, carrying amount and timestamp). A graph is built
// once per batch from a dataset and published as an immutable Snapshot.
//
// # Ownership Model
//
// A Snapshot owns its nodes and edges. Callers MUST NOT mutate records
// returned by query methods; the snapshot hands out copies where mutation
// would be observable by other readers.
//
// # Thread Safety
//
// A Snapshot is NOT safe for concurrent use during building. After Freeze()
// it is read-only and safe for unlimited concurrent readers. Stores publish
// snapshots atomically, so in-flight queries keep reading the snapshot they
// started with while a rebuild prepares the next one.
//
// # Lifecycle
//
//  1. Validate and build with BuildSnapshot(dataset)
//  2. The builder calls Freeze() before returning
//  3. A Store publishes the snapshot for readers
//  4. Query with Neighbors(), SharedResourceGroups(), TransactionPaths(), etc.
package graph

import "errors"

// Sentinel errors forming the service-wide error taxonomy.
//
// Callers classify failures with errors.Is against these sentinels; the
// concrete error carries a field-level message via fmt.Errorf("%w: ...").
var (
	// ErrValidation is returned for malformed input: a bad dataset record,
	// an out-of-range query parameter, or a non-positive amount. Never
	// retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a user, device, or community referenced
	// by a query does not exist in the current snapshot.
	ErrNotFound = errors.New("not found")

	// ErrGraphIntegrity is returned when a dataset contains an edge whose
	// endpoint does not resolve to a node. The build fails entirely and no
	// snapshot is published.
	ErrGraphIntegrity = errors.New("graph integrity violation")

	// ErrPrecondition is returned when an operation requires derived state
	// (community assignments, centrality, risk scores) that has not been
	// computed for the current snapshot. Derived fields are never silently
	// defaulted to zero.
	ErrPrecondition = errors.New("precondition not met")

	// ErrBackendUnavailable is returned by a persistent store after bounded
	// retries against the underlying database have been exhausted. The
	// in-memory store never returns this error.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrSnapshotFrozen is returned when attempting to modify a frozen
	// snapshot. Once Freeze() is called the snapshot is read-only.
	ErrSnapshotFrozen = errors.New("snapshot is frozen and cannot be modified")

	// ErrNoSnapshot is returned by Store.Snapshot when no build has
	// completed yet. It wraps no partial state: either a full snapshot
	// exists or none does.
	ErrNoSnapshot = errors.New("no snapshot has been built")
)
