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
	"time"
)

// =============================================================================
// Node and Edge Types
// =============================================================================

// NodeType identifies the kind of a graph node.
type NodeType int

const (
	// NodeTypeUnknown indicates an unrecognized node type.
	NodeTypeUnknown NodeType = iota

	// NodeTypeUser is an account holder participating in transactions.
	NodeTypeUser

	// NodeTypeDevice is a device fingerprint used by one or more users.
	NodeTypeDevice
)

// String returns the string representation of the NodeType.
func (t NodeType) String() string {
	switch t {
	case NodeTypeUser:
		return "user"
	case NodeTypeDevice:
		return "device"
	default:
		return "unknown"
	}
}

// EdgeType identifies the kind of a graph edge.
type EdgeType int

const (
	// EdgeTypeUnknown indicates an unrecognized edge type.
	EdgeTypeUnknown EdgeType = iota

	// EdgeTypeUsesDevice links a user to a device. Undirected for query
	// purposes: traversal crosses it in both directions.
	EdgeTypeUsesDevice

	// EdgeTypeTransacted links a sender user to a receiver user. Directed,
	// with multiplicity (repeated transactions between the same pair are
	// distinct edges).
	EdgeTypeTransacted
)

// String returns the string representation of the EdgeType.
func (t EdgeType) String() string {
	switch t {
	case EdgeTypeUsesDevice:
		return "uses_device"
	case EdgeTypeTransacted:
		return "transacted"
	default:
		return "unknown"
	}
}

// =============================================================================
// Entities
// =============================================================================

// User is an account-holder node.
//
// IsFraudster is a ground-truth label present only in evaluation datasets.
// It is carried for report evaluation and MUST NOT be used as a scoring
// input. Derived per-user fields (community, centrality, risk score) do not
// live here: they are produced by the analytics and risk packages against a
// specific snapshot, so that "not yet computed" is a distinct state rather
// than a zero value.
type User struct {
	// ID is the unique user identifier.
	ID string `json:"id"`

	// AccountAgeDays is the account age in days. Never negative.
	AccountAgeDays int `json:"account_age_days"`

	// IsFraudster is the evaluation-only ground-truth label.
	IsFraudster bool `json:"is_fraudster"`
}

// Device is a device-fingerprint node. Devices carry identity only; there
// are no computed fields on a device.
type Device struct {
	// ID is the unique device identifier.
	ID string `json:"id"`

	// Kind is the fingerprinted device class (mobile, desktop, tablet).
	Kind string `json:"kind,omitempty"`
}

// Transaction is a directed TRANSACTED edge between two users.
type Transaction struct {
	// ID is the unique transaction identifier.
	ID string `json:"id"`

	// SenderID references an existing user.
	SenderID string `json:"sender_id"`

	// ReceiverID references an existing user.
	ReceiverID string `json:"receiver_id"`

	// Amount is the transferred amount. Always positive.
	Amount float64 `json:"amount"`

	// Timestamp is when the transaction occurred.
	Timestamp time.Time `json:"timestamp"`

	// IsFraudulent is the evaluation-only ground-truth label.
	IsFraudulent bool `json:"is_fraudulent"`
}

// =============================================================================
// Query Results
// =============================================================================

// ResourceGroup is the set of users sharing one resource (device). Groups
// are only reported for resources used by at least two users; shared device
// use is the primary collusion signal.
type ResourceGroup struct {
	// ResourceID is the shared resource (device) identifier.
	ResourceID string `json:"resource_id"`

	// UserIDs are the users sharing the resource, sorted ascending.
	UserIDs []string `json:"user_ids"`
}

// Size returns the number of users sharing the resource.
func (g ResourceGroup) Size() int {
	return len(g.UserIDs)
}

// Statistics summarizes node and edge counts for a snapshot.
type Statistics struct {
	// UserCount is the number of user nodes.
	UserCount int `json:"user_count"`

	// DeviceCount is the number of device nodes.
	DeviceCount int `json:"device_count"`

	// UsesDeviceCount is the number of USES_DEVICE edges.
	UsesDeviceCount int `json:"uses_device_count"`

	// TransactionCount is the number of TRANSACTED edges.
	TransactionCount int `json:"transaction_count"`
}

// TotalNodes returns the combined node count.
func (s Statistics) TotalNodes() int {
	return s.UserCount + s.DeviceCount
}

// TotalEdges returns the combined edge count.
func (s Statistics) TotalEdges() int {
	return s.UsesDeviceCount + s.TransactionCount
}
