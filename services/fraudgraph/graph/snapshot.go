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
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// Snapshot
// =============================================================================

// SnapshotState represents the lifecycle state of a snapshot.
type SnapshotState int

const (
	// SnapshotStateBuilding indicates the snapshot is accepting writes.
	SnapshotStateBuilding SnapshotState = iota

	// SnapshotStateFrozen indicates the snapshot is read-only.
	SnapshotStateFrozen
)

// String returns the string representation of the SnapshotState.
func (s SnapshotState) String() string {
	switch s {
	case SnapshotStateBuilding:
		return "building"
	case SnapshotStateFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// Snapshot is one immutable, fully materialized fraud graph.
//
// Thread Safety:
//
//	A Snapshot is single-writer during building. After Freeze() it is
//	read-only and safe for concurrent readers. A rebuild never mutates an
//	existing snapshot; the store publishes a fresh one.
type Snapshot struct {
	// users maps user ID to the user node.
	users map[string]*User

	// devices maps device ID to the device node.
	devices map[string]*Device

	// userDevices maps user ID to the device IDs it uses.
	userDevices map[string][]string

	// deviceUsers maps device ID to the user IDs using it.
	deviceUsers map[string][]string

	// txns holds all transactions in dataset order.
	txns []*Transaction

	// txnsBySender indexes transactions by sender for path traversal.
	txnsBySender map[string][]*Transaction

	// txnsByReceiver indexes transactions by receiver.
	txnsByReceiver map[string][]*Transaction

	// state is the current lifecycle state.
	state SnapshotState

	// builtAtMilli is the Unix timestamp in milliseconds when Freeze() was
	// called. Zero while building. Doubles as a snapshot version: derived
	// results (analytics, risk) record it so staleness is detectable.
	builtAtMilli int64
}

// newSnapshot creates an empty snapshot in the building state.
func newSnapshot() *Snapshot {
	return &Snapshot{
		users:          make(map[string]*User),
		devices:        make(map[string]*Device),
		userDevices:    make(map[string][]string),
		deviceUsers:    make(map[string][]string),
		txnsBySender:   make(map[string][]*Transaction),
		txnsByReceiver: make(map[string][]*Transaction),
		state:          SnapshotStateBuilding,
	}
}

// State returns the current lifecycle state.
func (s *Snapshot) State() SnapshotState {
	return s.state
}

// IsFrozen returns true if the snapshot is read-only.
func (s *Snapshot) IsFrozen() bool {
	return s.state == SnapshotStateFrozen
}

// Version returns the freeze timestamp in Unix milliseconds, or zero if the
// snapshot has not been frozen.
func (s *Snapshot) Version() int64 {
	return s.builtAtMilli
}

// Freeze transitions the snapshot to read-only mode and sorts the adjacency
// indexes so traversal visits neighbors in a stable order. Irreversible.
func (s *Snapshot) Freeze() {
	for _, devs := range s.userDevices {
		sort.Strings(devs)
	}
	for _, users := range s.deviceUsers {
		sort.Strings(users)
	}
	s.state = SnapshotStateFrozen
	s.builtAtMilli = time.Now().UnixMilli()
}

// =============================================================================
// Mutation (building phase only)
// =============================================================================

// addUser adds a user node. Returns ErrSnapshotFrozen after Freeze() and
// ErrValidation for duplicate IDs or negative account age.
func (s *Snapshot) addUser(u User) error {
	if s.state == SnapshotStateFrozen {
		return ErrSnapshotFrozen
	}
	if u.ID == "" {
		return fmt.Errorf("%w: user: empty id", ErrValidation)
	}
	if u.AccountAgeDays < 0 {
		return fmt.Errorf("%w: user %s: account_age_days must be >= 0, got %d", ErrValidation, u.ID, u.AccountAgeDays)
	}
	if _, exists := s.users[u.ID]; exists {
		return fmt.Errorf("%w: user %s: duplicate id", ErrValidation, u.ID)
	}
	s.users[u.ID] = &u
	return nil
}

// addDevice adds a device node.
func (s *Snapshot) addDevice(d Device) error {
	if s.state == SnapshotStateFrozen {
		return ErrSnapshotFrozen
	}
	if d.ID == "" {
		return fmt.Errorf("%w: device: empty id", ErrValidation)
	}
	if _, exists := s.devices[d.ID]; exists {
		return fmt.Errorf("%w: device %s: duplicate id", ErrValidation, d.ID)
	}
	s.devices[d.ID] = &d
	return nil
}

// addUsesDevice adds a USES_DEVICE edge. Both endpoints must already exist;
// a dangling reference is a graph integrity violation.
func (s *Snapshot) addUsesDevice(userID, deviceID string) error {
	if s.state == SnapshotStateFrozen {
		return ErrSnapshotFrozen
	}
	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("%w: uses_device edge references missing user %s", ErrGraphIntegrity, userID)
	}
	if _, ok := s.devices[deviceID]; !ok {
		return fmt.Errorf("%w: uses_device edge references missing device %s", ErrGraphIntegrity, deviceID)
	}
	s.userDevices[userID] = append(s.userDevices[userID], deviceID)
	s.deviceUsers[deviceID] = append(s.deviceUsers[deviceID], userID)
	return nil
}

// addTransaction adds a TRANSACTED edge. Both endpoints must be existing
// users and the amount must be positive.
func (s *Snapshot) addTransaction(t Transaction) error {
	if s.state == SnapshotStateFrozen {
		return ErrSnapshotFrozen
	}
	if t.Amount <= 0 {
		return fmt.Errorf("%w: transaction %s: amount must be positive, got %v", ErrValidation, t.ID, t.Amount)
	}
	if _, ok := s.users[t.SenderID]; !ok {
		return fmt.Errorf("%w: transaction %s references missing sender %s", ErrGraphIntegrity, t.ID, t.SenderID)
	}
	if _, ok := s.users[t.ReceiverID]; !ok {
		return fmt.Errorf("%w: transaction %s references missing receiver %s", ErrGraphIntegrity, t.ID, t.ReceiverID)
	}
	txn := t
	s.txns = append(s.txns, &txn)
	s.txnsBySender[t.SenderID] = append(s.txnsBySender[t.SenderID], &txn)
	s.txnsByReceiver[t.ReceiverID] = append(s.txnsByReceiver[t.ReceiverID], &txn)
	return nil
}

// =============================================================================
// Node Access
// =============================================================================

// User returns the user node for the given ID.
func (s *Snapshot) User(id string) (*User, bool) {
	u, ok := s.users[id]
	return u, ok
}

// Device returns the device node for the given ID.
func (s *Snapshot) Device(id string) (*Device, bool) {
	d, ok := s.devices[id]
	return d, ok
}

// HasUser reports whether the user exists in the snapshot.
func (s *Snapshot) HasUser(id string) bool {
	_, ok := s.users[id]
	return ok
}

// UserIDs returns all user IDs sorted ascending.
func (s *Snapshot) UserIDs() []string {
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeviceIDs returns all device IDs sorted ascending.
func (s *Snapshot) DeviceIDs() []string {
	ids := make([]string, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DevicesOf returns the device IDs used by a user, sorted, duplicates
// preserved as stored (a user may be linked to the same device repeatedly).
func (s *Snapshot) DevicesOf(userID string) []string {
	devs := s.userDevices[userID]
	out := make([]string, len(devs))
	copy(out, devs)
	return out
}

// UsersOf returns the user IDs using a device, sorted.
func (s *Snapshot) UsersOf(deviceID string) []string {
	users := s.deviceUsers[deviceID]
	out := make([]string, len(users))
	copy(out, users)
	return out
}

// Transactions returns all transactions in dataset order. The returned
// slice is shared; callers must not mutate it.
func (s *Snapshot) Transactions() []*Transaction {
	return s.txns
}

// TransactionsBySender returns the transactions sent by a user.
func (s *Snapshot) TransactionsBySender(userID string) []*Transaction {
	return s.txnsBySender[userID]
}

// TransactionsByReceiver returns the transactions received by a user.
func (s *Snapshot) TransactionsByReceiver(userID string) []*Transaction {
	return s.txnsByReceiver[userID]
}

// Statistics returns node and edge counts per type.
func (s *Snapshot) Statistics() Statistics {
	usesDevice := 0
	for _, devs := range s.userDevices {
		usesDevice += len(devs)
	}
	return Statistics{
		UserCount:        len(s.users),
		DeviceCount:      len(s.devices),
		UsesDeviceCount:  usesDevice,
		TransactionCount: len(s.txns),
	}
}
