// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/risk"
)

// Each query returns its own result type rather than an open-ended map, so
// every retrieval has an explicit shape the explanation layer can rely on.

// ProfileResult is the answer to a profile query.
type ProfileResult struct {
	// UserID identifies the user.
	UserID string `json:"user_id"`

	// AccountAgeDays is the account age in days.
	AccountAgeDays int `json:"account_age_days"`

	// RiskScore is the composite risk score in [0, 1].
	RiskScore float64 `json:"risk_score"`

	// Flagged is true when the score met the flagging threshold.
	Flagged bool `json:"is_flagged"`

	// CommunityID is the user's community assignment.
	CommunityID int `json:"community_id"`

	// Devices are the user's device IDs, sorted ascending.
	Devices []string `json:"devices"`

	// ConnectedUsers is the count of one-hop user neighbors.
	ConnectedUsers int `json:"connected_users"`

	// SentCount and ReceivedCount are the user's transaction counts.
	SentCount     int `json:"sent_count"`
	ReceivedCount int `json:"received_count"`
}

// ConnectionsResult is the answer to a connections query.
type ConnectionsResult struct {
	// UserID is the query subject.
	UserID string `json:"user_id"`

	// Depth is the hop count that was searched.
	Depth int `json:"depth"`

	// Users are the reachable user IDs, sorted ascending.
	Users []string `json:"users"`

	// Devices are the reachable device IDs, sorted ascending.
	Devices []string `json:"devices"`
}

// RiskLevel buckets a score for investigative narratives.
type RiskLevel string

const (
	// RiskLevelLow is a score below 0.3.
	RiskLevelLow RiskLevel = "LOW"

	// RiskLevelMedium is a score in [0.3, 0.5).
	RiskLevelMedium RiskLevel = "MEDIUM"

	// RiskLevelHigh is a score at or above 0.5.
	RiskLevelHigh RiskLevel = "HIGH"
)

// levelFor buckets a composite score.
func levelFor(score float64) RiskLevel {
	switch {
	case score >= 0.5:
		return RiskLevelHigh
	case score >= 0.3:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// FraudRiskResult is the answer to a fraud-risk query.
type FraudRiskResult struct {
	// UserID is the query subject.
	UserID string `json:"user_id"`

	// Score is the composite risk score in [0, 1].
	Score float64 `json:"risk_score"`

	// Flagged is true when Score met the flagging threshold.
	Flagged bool `json:"is_flagged"`

	// Level is the coarse risk bucket.
	Level RiskLevel `json:"risk_level"`

	// TopSignals are the contributing signals ranked by weighted
	// contribution descending.
	TopSignals []risk.Contribution `json:"top_signals"`
}

// SharedDevicesResult is the answer to a shared-devices query.
type SharedDevicesResult struct {
	// UserID is the query subject, empty for the graph-wide variant.
	UserID string `json:"user_id,omitempty"`

	// Groups are the shared-device groups, ranked by group size
	// descending, ties broken by lowest member user ID.
	Groups []graph.ResourceGroup `json:"groups"`
}

// TransactionPathsResult is the answer to a transaction-paths query.
type TransactionPathsResult struct {
	// Source and Target are the path endpoints.
	Source string `json:"source"`
	Target string `json:"target"`

	// MaxDepth is the hop cap that was searched.
	MaxDepth int `json:"max_depth"`

	// Paths are the directed simple paths as node sequences. Empty, not
	// an error, when no path exists.
	Paths [][]string `json:"paths"`
}

// CommunityMembershipResult is the answer to a community-membership query.
type CommunityMembershipResult struct {
	// UserID is the query subject.
	UserID string `json:"user_id"`

	// CommunityID is the user's community.
	CommunityID int `json:"community_id"`

	// Members are the other members of the community, sorted ascending.
	Members []string `json:"members"`

	// Size is the full community size including the subject.
	Size int `json:"size"`
}

// Corroboration names the structural evidence backing a suspicious-pattern
// hit.
type Corroboration string

const (
	// CorroborationSharedDevice: the user shares a device with another
	// flagged user.
	CorroborationSharedDevice Corroboration = "shared_device_with_flagged_user"

	// CorroborationFlaggedCommunity: the user belongs to a community with
	// at least two flagged members.
	CorroborationFlaggedCommunity Corroboration = "community_with_flagged_users"
)

// SuspiciousUser is one corroborated high-risk user.
type SuspiciousUser struct {
	// UserID identifies the user.
	UserID string `json:"user_id"`

	// Score is the composite risk score.
	Score float64 `json:"risk_score"`

	// Corroborations are the structural signals backing the hit, at least
	// one per returned user.
	Corroborations []Corroboration `json:"corroborations"`
}

// SuspiciousPatternsResult is the answer to a suspicious-patterns query.
//
// Users with a high raw score but no structural corroboration are excluded
// to keep noise out of the investigative narrative.
type SuspiciousPatternsResult struct {
	// Users are the corroborated users ranked by score descending, at
	// most top-k of them.
	Users []SuspiciousUser `json:"users"`
}
