// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query answers structured investigative questions over a scored
// fraud graph snapshot (the retrieval half of graph RAG).
//
// The Engine is a stateless façade over a graph store plus the analytics
// and risk outputs computed for its snapshot. Seven query types are
// supported, each with a typed parameter set and a typed, bounded result.
// Narrating retrieved context is an external concern; this package only
// retrieves.
//
// Every query validates its arguments before touching the store and
// returns a typed error (graph.ErrValidation, graph.ErrNotFound,
// graph.ErrPrecondition) rather than a partial result.
package query

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/analytics"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/risk"
)

var queryTracer = otel.Tracer("fraudgraph.query.engine")

// Query bounds keeping retrieval cheap and explanation-ready.
const (
	// DefaultDepth is the default neighbor depth.
	DefaultDepth = 1

	// MaxDepth caps neighbor traversal depth.
	MaxDepth = 3

	// DefaultMaxPathDepth is the default transaction-path hop cap.
	DefaultMaxPathDepth = 3

	// MaxPathDepth caps transaction-path searches.
	MaxPathDepth = 5
)

// Engine answers the seven investigative query types.
//
// Thread Safety: Safe for unlimited concurrent use; the engine holds only
// read-only state for one published snapshot. A rebuild means a new Engine.
type Engine struct {
	store  graph.Store
	snap   *graph.Snapshot
	ana    *analytics.Result
	scores *risk.ScoreSet
}

// New creates an engine over a store and the derived results computed for
// its current snapshot.
//
// Description:
//
//	Captures the store's published snapshot so all queries answered by
//	this engine observe one consistent view even across rebuilds. The
//	analytics and risk results must describe that same snapshot; a
//	mismatch or a missing input is a precondition violation, because
//	serving queries over half-annotated state would silently understate
//	risk.
//
// Inputs:
//
//	store - The graph store. Must have a published snapshot.
//	ana - Analytics for the store's snapshot.
//	scores - Risk scores for the store's snapshot.
//
// Outputs:
//
//	*Engine - The query engine. Nil on error.
//	error - graph.ErrPrecondition when derived state is missing or stale.
func New(store graph.Store, ana *analytics.Result, scores *risk.ScoreSet) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is nil", graph.ErrPrecondition)
	}
	snap, err := store.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrPrecondition, err)
	}
	if ana == nil || ana.Communities == nil || ana.Centrality == nil {
		return nil, fmt.Errorf("%w: analytics have not been computed for this snapshot", graph.ErrPrecondition)
	}
	if scores == nil {
		return nil, fmt.Errorf("%w: risk scores have not been computed for this snapshot", graph.ErrPrecondition)
	}
	if ana.SnapshotVersion != snap.Version() || scores.SnapshotVersion != snap.Version() {
		return nil, fmt.Errorf("%w: derived state is stale for snapshot version %d", graph.ErrPrecondition, snap.Version())
	}
	return &Engine{store: store, snap: snap, ana: ana, scores: scores}, nil
}

// requireUser resolves a user or returns ErrNotFound.
func (e *Engine) requireUser(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user_id must not be empty", graph.ErrValidation)
	}
	if !e.snap.HasUser(userID) {
		return fmt.Errorf("%w: user %s", graph.ErrNotFound, userID)
	}
	return nil
}

// =============================================================================
// 1. Profile
// =============================================================================

// Profile returns a user's attributes, score, and community assignment.
func (e *Engine) Profile(ctx context.Context, userID string) (*ProfileResult, error) {
	_, span := queryTracer.Start(ctx, "query.Profile")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	if err := e.requireUser(userID); err != nil {
		return nil, err
	}
	u, _ := e.snap.User(userID)
	us, ok := e.scores.Get(userID)
	if !ok {
		return nil, fmt.Errorf("%w: no risk score for user %s", graph.ErrPrecondition, userID)
	}
	communityID, ok := e.ana.Communities.CommunityOf(userID)
	if !ok {
		return nil, fmt.Errorf("%w: no community assignment for user %s", graph.ErrPrecondition, userID)
	}

	// Directly connected users: transaction counterparties plus co-users
	// of the user's devices.
	connected := make(map[string]bool)
	for _, t := range e.snap.TransactionsBySender(userID) {
		connected[t.ReceiverID] = true
	}
	for _, t := range e.snap.TransactionsByReceiver(userID) {
		connected[t.SenderID] = true
	}
	for _, d := range e.snap.DevicesOf(userID) {
		for _, coUser := range e.snap.UsersOf(d) {
			connected[coUser] = true
		}
	}
	delete(connected, userID)

	return &ProfileResult{
		UserID:         userID,
		AccountAgeDays: u.AccountAgeDays,
		RiskScore:      us.Score,
		Flagged:        us.Flagged,
		CommunityID:    communityID,
		Devices:        distinctUserDevices(e.snap, userID),
		ConnectedUsers: len(connected),
		SentCount:      len(e.snap.TransactionsBySender(userID)),
		ReceivedCount:  len(e.snap.TransactionsByReceiver(userID)),
	}, nil
}

// =============================================================================
// 2. Connections
// =============================================================================

// Connections returns the neighbor set within depth hops.
//
// Depth defaults to 1 when zero and must not exceed MaxDepth; out-of-range
// depth is an argument error, checked before any store access.
func (e *Engine) Connections(ctx context.Context, userID string, depth int) (*ConnectionsResult, error) {
	ctx, span := queryTracer.Start(ctx, "query.Connections")
	defer span.End()

	if depth == 0 {
		depth = DefaultDepth
	}
	if depth < 1 || depth > MaxDepth {
		return nil, fmt.Errorf("%w: depth must be in [1, %d], got %d", graph.ErrValidation, MaxDepth, depth)
	}
	if err := e.requireUser(userID); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user_id", userID), attribute.Int("depth", depth))

	neighbors, err := e.store.Neighbors(ctx, userID, nil, depth)
	if err != nil {
		return nil, err
	}

	result := &ConnectionsResult{UserID: userID, Depth: depth, Users: []string{}, Devices: []string{}}
	for _, n := range neighbors {
		if e.snap.HasUser(n) {
			result.Users = append(result.Users, n)
		} else {
			result.Devices = append(result.Devices, n)
		}
	}
	sort.Strings(result.Users)
	sort.Strings(result.Devices)
	return result, nil
}

// =============================================================================
// 3. Fraud Risk
// =============================================================================

// FraudRisk returns a user's score, classification, and ranked signal
// contributions for explainability.
func (e *Engine) FraudRisk(ctx context.Context, userID string) (*FraudRiskResult, error) {
	_, span := queryTracer.Start(ctx, "query.FraudRisk")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	if err := e.requireUser(userID); err != nil {
		return nil, err
	}
	us, ok := e.scores.Get(userID)
	if !ok {
		return nil, fmt.Errorf("%w: no risk score for user %s", graph.ErrPrecondition, userID)
	}

	signals := make([]risk.Contribution, len(us.Signals))
	copy(signals, us.Signals)
	return &FraudRiskResult{
		UserID:     userID,
		Score:      us.Score,
		Flagged:    us.Flagged,
		Level:      levelFor(us.Score),
		TopSignals: signals,
	}, nil
}

// =============================================================================
// 4. Shared Devices
// =============================================================================

// SharedDevices returns shared-device groups.
//
// With a user ID, only the groups containing that user are returned. With
// an empty user ID, every group with at least two users is returned, ranked
// by size descending with ties broken by the lowest member user ID.
func (e *Engine) SharedDevices(ctx context.Context, userID string) (*SharedDevicesResult, error) {
	ctx, span := queryTracer.Start(ctx, "query.SharedDevices")
	defer span.End()

	if userID != "" {
		if err := e.requireUser(userID); err != nil {
			return nil, err
		}
	}

	groups, err := e.store.SharedResourceGroups(ctx, graph.NodeTypeDevice)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return &SharedDevicesResult{Groups: groups}, nil
	}

	mine := make([]graph.ResourceGroup, 0)
	for _, g := range groups {
		for _, member := range g.UserIDs {
			if member == userID {
				mine = append(mine, g)
				break
			}
		}
	}
	return &SharedDevicesResult{UserID: userID, Groups: mine}, nil
}

// =============================================================================
// 5. Transaction Paths
// =============================================================================

// TransactionPaths returns all directed paths between two users up to
// maxDepth hops. No path is an empty result, not an error.
//
// maxDepth defaults to DefaultMaxPathDepth when zero and must not exceed
// MaxPathDepth.
func (e *Engine) TransactionPaths(ctx context.Context, source, target string, maxDepth int) (*TransactionPathsResult, error) {
	ctx, span := queryTracer.Start(ctx, "query.TransactionPaths")
	defer span.End()

	if maxDepth == 0 {
		maxDepth = DefaultMaxPathDepth
	}
	if maxDepth < 1 || maxDepth > MaxPathDepth {
		return nil, fmt.Errorf("%w: max_depth must be in [1, %d], got %d", graph.ErrValidation, MaxPathDepth, maxDepth)
	}
	if err := e.requireUser(source); err != nil {
		return nil, err
	}
	if err := e.requireUser(target); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("source", source),
		attribute.String("target", target),
		attribute.Int("max_depth", maxDepth),
	)

	paths, err := e.store.TransactionPaths(ctx, source, target, maxDepth)
	if err != nil {
		return nil, err
	}
	return &TransactionPathsResult{
		Source:   source,
		Target:   target,
		MaxDepth: maxDepth,
		Paths:    paths,
	}, nil
}

// =============================================================================
// 6. Community Membership
// =============================================================================

// CommunityMembership returns a user's community and its other members.
func (e *Engine) CommunityMembership(ctx context.Context, userID string) (*CommunityMembershipResult, error) {
	_, span := queryTracer.Start(ctx, "query.CommunityMembership")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	if err := e.requireUser(userID); err != nil {
		return nil, err
	}
	communityID, ok := e.ana.Communities.CommunityOf(userID)
	if !ok {
		return nil, fmt.Errorf("%w: no community assignment for user %s", graph.ErrPrecondition, userID)
	}

	members := e.ana.Communities.Members(communityID)
	others := make([]string, 0, len(members)-1)
	for _, m := range members {
		if m != userID {
			others = append(others, m)
		}
	}
	return &CommunityMembershipResult{
		UserID:      userID,
		CommunityID: communityID,
		Members:     others,
		Size:        len(members),
	}, nil
}

// =============================================================================
// 7. Suspicious Patterns
// =============================================================================

// SuspiciousPatterns returns the top-k users by risk score that carry at
// least one corroborating structural signal: a device shared with another
// flagged user, or membership in a community holding at least two flagged
// users. High scorers with no structural corroboration are excluded.
func (e *Engine) SuspiciousPatterns(ctx context.Context, topK int) (*SuspiciousPatternsResult, error) {
	ctx, span := queryTracer.Start(ctx, "query.SuspiciousPatterns")
	defer span.End()

	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", graph.ErrValidation, topK)
	}
	span.SetAttributes(attribute.Int("top_k", topK))

	groups, err := e.store.SharedResourceGroups(ctx, graph.NodeTypeDevice)
	if err != nil {
		return nil, err
	}

	flagged := make(map[string]bool)
	for _, id := range e.scores.FlaggedIDs() {
		flagged[id] = true
	}

	// Users sharing a device with at least one other flagged user.
	sharedWithFlagged := make(map[string]bool)
	for _, g := range groups {
		for _, member := range g.UserIDs {
			for _, other := range g.UserIDs {
				if other != member && flagged[other] {
					sharedWithFlagged[member] = true
					break
				}
			}
		}
	}

	// Communities holding >= 2 flagged members.
	flaggedPerCommunity := make(map[int]int)
	for id := range flagged {
		if c, ok := e.ana.Communities.CommunityOf(id); ok {
			flaggedPerCommunity[c]++
		}
	}

	result := &SuspiciousPatternsResult{Users: []SuspiciousUser{}}
	for _, us := range e.scores.Ranked() {
		if len(result.Users) == topK {
			break
		}
		var corroborations []Corroboration
		if sharedWithFlagged[us.UserID] {
			corroborations = append(corroborations, CorroborationSharedDevice)
		}
		if c, ok := e.ana.Communities.CommunityOf(us.UserID); ok && flaggedPerCommunity[c] >= 2 {
			corroborations = append(corroborations, CorroborationFlaggedCommunity)
		}
		if len(corroborations) == 0 {
			continue
		}
		result.Users = append(result.Users, SuspiciousUser{
			UserID:         us.UserID,
			Score:          us.Score,
			Corroborations: corroborations,
		})
	}
	return result, nil
}

// distinctUserDevices returns the user's distinct device IDs sorted.
func distinctUserDevices(snap *graph.Snapshot, userID string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, d := range snap.DevicesOf(userID) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}
