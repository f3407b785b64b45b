// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package risk fuses per-user fraud signals into a bounded composite score.
//
// Five normalized signals are combined by weighted sum: device sharing,
// account age, transaction amount, transaction volume, and network
// centrality. Ground-truth fraud labels are never a scoring input; they are
// only read by the evaluation report. Scoring the same snapshot with the
// same configuration is deterministic and idempotent.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/analytics"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
)

var scorerTracer = otel.Tracer("fraudgraph.risk.scorer")

// =============================================================================
// Signals
// =============================================================================

// Signal identifies one component of the composite score.
type Signal int

const (
	// SignalDeviceSharing captures shared-device collusion structure.
	SignalDeviceSharing Signal = iota

	// SignalAccountAge captures account youth (newer = riskier).
	SignalAccountAge

	// SignalTransactionAmount captures unusually large mean sent amounts.
	SignalTransactionAmount

	// SignalTransactionVolume captures sending velocity in a rolling window.
	SignalTransactionVolume

	// SignalCentrality blends PageRank and betweenness from analytics.
	SignalCentrality

	numSignals
)

// String returns the signal name used in reports and query results.
func (s Signal) String() string {
	switch s {
	case SignalDeviceSharing:
		return "device_sharing"
	case SignalAccountAge:
		return "account_age"
	case SignalTransactionAmount:
		return "transaction_amount"
	case SignalTransactionVolume:
		return "transaction_volume"
	case SignalCentrality:
		return "centrality"
	default:
		return "unknown"
	}
}

// Contribution is one signal's share of a user's composite score.
type Contribution struct {
	// Signal names the contributing signal.
	Signal Signal `json:"signal"`

	// Name is the string form of Signal, for serialized output.
	Name string `json:"name"`

	// Value is the normalized signal value in [0, 1].
	Value float64 `json:"value"`

	// Weighted is Value multiplied by the signal weight.
	Weighted float64 `json:"weighted"`
}

// =============================================================================
// Configuration
// =============================================================================

// Default scoring constants. The normalization offsets and scales come from
// the observed population split between fraudulent and legitimate accounts
// (fraud mean amount ~2500 vs ~250; fraud mean volume ~10 vs ~4 per day).
const (
	// DefaultThreshold is the flagging threshold. Chosen to favor recall
	// over precision: a missed fraud ring costs more than a false positive.
	DefaultThreshold = 0.15

	// DefaultAgeThresholdDays is the account age above which the age
	// signal reaches zero.
	DefaultAgeThresholdDays = 90

	// DefaultSuspiciousFloor is the preliminary-score floor above which a
	// shared-device co-user marks the device group high-risk.
	DefaultSuspiciousFloor = 0.5

	// DefaultAmountOffset and DefaultAmountScale normalize mean sent
	// amount: clamp((mean-offset)/scale).
	DefaultAmountOffset = 500.0
	DefaultAmountScale  = 2500.0

	// DefaultVolumeOffset and DefaultVolumeScale normalize the peak
	// rolling-window send count: clamp((count-offset)/scale).
	DefaultVolumeOffset = 7
	DefaultVolumeScale  = 15.0

	// DefaultVelocityWindow is the rolling window for the volume signal.
	DefaultVelocityWindow = 24 * time.Hour
)

// Weights assigns the relative importance of each signal. Weights must be
// non-negative and sum to 1.
type Weights struct {
	DeviceSharing     float64 `json:"device_sharing" yaml:"device_sharing"`
	AccountAge        float64 `json:"account_age" yaml:"account_age"`
	TransactionAmount float64 `json:"transaction_amount" yaml:"transaction_amount"`
	TransactionVolume float64 `json:"transaction_volume" yaml:"transaction_volume"`
	Centrality        float64 `json:"centrality" yaml:"centrality"`
}

// DefaultWeights returns the documented default signal weights.
func DefaultWeights() Weights {
	return Weights{
		DeviceSharing:     0.35,
		AccountAge:        0.25,
		TransactionAmount: 0.20,
		TransactionVolume: 0.10,
		Centrality:        0.10,
	}
}

// sum returns the total weight mass.
func (w Weights) sum() float64 {
	return w.DeviceSharing + w.AccountAge + w.TransactionAmount + w.TransactionVolume + w.Centrality
}

// of returns the weight for a signal.
func (w Weights) of(s Signal) float64 {
	switch s {
	case SignalDeviceSharing:
		return w.DeviceSharing
	case SignalAccountAge:
		return w.AccountAge
	case SignalTransactionAmount:
		return w.TransactionAmount
	case SignalTransactionVolume:
		return w.TransactionVolume
	case SignalCentrality:
		return w.Centrality
	default:
		return 0
	}
}

// Config configures the scorer.
type Config struct {
	// Weights are the signal weights. Must sum to 1.
	Weights Weights `json:"weights" yaml:"weights"`

	// Threshold is the flagging threshold in (0, 1]. Default: 0.15
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// AgeThresholdDays scales the account-age signal. Default: 90
	AgeThresholdDays int `json:"age_threshold_days" yaml:"age_threshold_days"`

	// SuspiciousFloor is the preliminary-score floor for marking a
	// shared-device co-user high-risk. Default: 0.5
	SuspiciousFloor float64 `json:"suspicious_floor" yaml:"suspicious_floor"`

	// AmountOffset/AmountScale normalize the mean sent amount.
	AmountOffset float64 `json:"amount_offset" yaml:"amount_offset"`
	AmountScale  float64 `json:"amount_scale" yaml:"amount_scale"`

	// VolumeOffset/VolumeScale normalize the peak window send count.
	VolumeOffset int     `json:"volume_offset" yaml:"volume_offset"`
	VolumeScale  float64 `json:"volume_scale" yaml:"volume_scale"`

	// VelocityWindow is the rolling window for the volume signal.
	VelocityWindow time.Duration `json:"velocity_window" yaml:"velocity_window"`
}

// DefaultConfig returns the documented default scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights:          DefaultWeights(),
		Threshold:        DefaultThreshold,
		AgeThresholdDays: DefaultAgeThresholdDays,
		SuspiciousFloor:  DefaultSuspiciousFloor,
		AmountOffset:     DefaultAmountOffset,
		AmountScale:      DefaultAmountScale,
		VolumeOffset:     DefaultVolumeOffset,
		VolumeScale:      DefaultVolumeScale,
		VelocityWindow:   DefaultVelocityWindow,
	}
}

// Validate checks the configuration for scoring.
func (c Config) Validate() error {
	if math.Abs(c.Weights.sum()-1.0) > 1e-9 {
		return fmt.Errorf("%w: signal weights must sum to 1, got %v", graph.ErrValidation, c.Weights.sum())
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be in (0, 1], got %v", graph.ErrValidation, c.Threshold)
	}
	if c.AgeThresholdDays <= 0 {
		return fmt.Errorf("%w: age_threshold_days must be positive, got %d", graph.ErrValidation, c.AgeThresholdDays)
	}
	if c.AmountScale <= 0 || c.VolumeScale <= 0 {
		return fmt.Errorf("%w: amount_scale and volume_scale must be positive", graph.ErrValidation)
	}
	if c.VelocityWindow <= 0 {
		return fmt.Errorf("%w: velocity_window must be positive, got %v", graph.ErrValidation, c.VelocityWindow)
	}
	return nil
}

// =============================================================================
// Results
// =============================================================================

// UserScore is the scoring output for one user.
type UserScore struct {
	// UserID identifies the scored user.
	UserID string `json:"user_id"`

	// Score is the composite risk score, always in [0, 1].
	Score float64 `json:"risk_score"`

	// Flagged is true when Score >= the configured threshold.
	Flagged bool `json:"is_flagged"`

	// Signals are the per-signal contributions, ordered by weighted
	// contribution descending, signal name ascending on ties.
	Signals []Contribution `json:"top_signals"`
}

// ScoreSet is the scoring output for one snapshot.
type ScoreSet struct {
	// Scores maps user ID to the user's score record.
	Scores map[string]*UserScore `json:"scores"`

	// Threshold is the flagging threshold the set was computed with.
	Threshold float64 `json:"threshold"`

	// SnapshotVersion is the snapshot version the set was computed from.
	SnapshotVersion int64 `json:"snapshot_version"`
}

// Get returns the score record for a user.
func (s *ScoreSet) Get(userID string) (*UserScore, bool) {
	us, ok := s.Scores[userID]
	return us, ok
}

// FlaggedIDs returns the flagged user IDs sorted ascending.
func (s *ScoreSet) FlaggedIDs() []string {
	out := make([]string, 0)
	for id, us := range s.Scores {
		if us.Flagged {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Ranked returns all score records ordered by score descending, user ID
// ascending on ties.
func (s *ScoreSet) Ranked() []*UserScore {
	out := make([]*UserScore, 0, len(s.Scores))
	for _, us := range s.Scores {
		out = append(out, us)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// =============================================================================
// Scorer
// =============================================================================

// Score computes the composite risk score for every user in the snapshot.
//
// Description:
//
//	Two-phase computation. Phase 1 computes the four non-relational
//	signals plus a structural device-sharing base (the fraction of the
//	user's devices used by at least one other user) and a preliminary
//	composite. Phase 2 re-evaluates device sharing: a user directly
//	adjacent (through a shared device) to a co-user whose preliminary
//	score is at or above the suspicious floor takes the full device
//	signal. The final composite is the weighted sum clamped to [0, 1].
//
//	Phase 1 fans out across users with an errgroup; results land in
//	per-user slots so ordering of goroutines cannot affect the output.
//
// Inputs:
//
//   - ctx: Context for cancellation. Must not be nil.
//   - snap: Frozen snapshot. Must not be nil.
//   - ana: Analytics for the same snapshot. Must not be nil; a missing or
//     stale result is a precondition violation, never defaulted to zero.
//   - cfg: Scoring configuration.
//
// Outputs:
//
//   - *ScoreSet: One UserScore per user, every score in [0, 1].
//   - error: graph.ErrPrecondition for missing derived state,
//     graph.ErrValidation for a bad configuration, or ctx.Err().
//
// Thread Safety: Safe for concurrent use; all inputs are read-only.
func Score(ctx context.Context, snap *graph.Snapshot, ana *analytics.Result, cfg Config) (*ScoreSet, error) {
	ctx, span := scorerTracer.Start(ctx, "risk.Score")
	defer span.End()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if snap == nil || !snap.IsFrozen() {
		return nil, fmt.Errorf("%w: scoring requires a frozen snapshot", graph.ErrPrecondition)
	}
	if ana == nil || ana.Centrality == nil || ana.Communities == nil {
		return nil, fmt.Errorf("%w: scoring requires computed analytics (centrality and communities)", graph.ErrPrecondition)
	}
	if ana.SnapshotVersion != snap.Version() {
		return nil, fmt.Errorf("%w: analytics computed for snapshot version %d, current is %d",
			graph.ErrPrecondition, ana.SnapshotVersion, snap.Version())
	}

	userIDs := snap.UserIDs()
	span.SetAttributes(attribute.Int("users", len(userIDs)))
	start := time.Now()

	maxPR := maxValue(ana.Centrality.PageRank)
	maxBC := maxValue(ana.Centrality.Betweenness)

	// Phase 1: per-user signals into fixed slots, fan-out for throughput.
	type signals [numSignals]float64
	raw := make([]signals, len(userIDs))
	prelim := make([]float64, len(userIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, id := range userIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u, _ := snap.User(id)
			var s signals
			s[SignalDeviceSharing] = deviceSharingBase(snap, id)
			s[SignalAccountAge] = ageSignal(u.AccountAgeDays, cfg.AgeThresholdDays)
			s[SignalTransactionAmount] = amountSignal(snap, id, cfg)
			s[SignalTransactionVolume] = volumeSignal(snap, id, cfg)
			s[SignalCentrality] = centralitySignal(ana, id, maxPR, maxBC)
			raw[i] = s
			prelim[i] = composite(cfg.Weights, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prelimByID := make(map[string]float64, len(userIDs))
	for i, id := range userIDs {
		prelimByID[id] = prelim[i]
	}

	// Phase 2: escalate device sharing on adjacency to a high-risk co-user.
	set := &ScoreSet{
		Scores:          make(map[string]*UserScore, len(userIDs)),
		Threshold:       cfg.Threshold,
		SnapshotVersion: snap.Version(),
	}
	for i, id := range userIDs {
		s := raw[i]
		if hotCoUser(snap, id, prelimByID, cfg.SuspiciousFloor) {
			s[SignalDeviceSharing] = 1.0
		}
		score := composite(cfg.Weights, s)

		contributions := make([]Contribution, 0, numSignals)
		for sig := Signal(0); sig < numSignals; sig++ {
			contributions = append(contributions, Contribution{
				Signal:   sig,
				Name:     sig.String(),
				Value:    s[sig],
				Weighted: cfg.Weights.of(sig) * s[sig],
			})
		}
		sort.Slice(contributions, func(a, b int) bool {
			if contributions[a].Weighted != contributions[b].Weighted {
				return contributions[a].Weighted > contributions[b].Weighted
			}
			return contributions[a].Name < contributions[b].Name
		})

		set.Scores[id] = &UserScore{
			UserID:  id,
			Score:   score,
			Flagged: score >= cfg.Threshold,
			Signals: contributions,
		}
	}

	slog.Info("risk scores computed",
		"users", len(userIDs),
		"flagged", len(set.FlaggedIDs()),
		"threshold", cfg.Threshold,
		"duration", time.Since(start),
	)
	span.SetAttributes(attribute.Int("flagged", len(set.FlaggedIDs())))
	return set, nil
}

// =============================================================================
// Signal Computation
// =============================================================================

// clamp01 bounds v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// composite is the clamped weighted sum of the signal vector.
func composite(w Weights, s [numSignals]float64) float64 {
	var total float64
	for sig := Signal(0); sig < numSignals; sig++ {
		total += w.of(sig) * s[sig]
	}
	return clamp01(total)
}

// maxValue returns the maximum map value, or zero for an empty map.
func maxValue(m map[string]float64) float64 {
	var max float64
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}

// deviceSharingBase is the fraction of the user's distinct devices used by
// at least one other user. A user with no devices scores zero: no device
// is a real absence of the collusion structure, not missing input.
func deviceSharingBase(snap *graph.Snapshot, userID string) float64 {
	devices := distinct(snap.DevicesOf(userID))
	if len(devices) == 0 {
		return 0
	}
	shared := 0
	for _, d := range devices {
		if len(distinct(snap.UsersOf(d))) >= 2 {
			shared++
		}
	}
	return float64(shared) / float64(len(devices))
}

// hotCoUser reports whether any co-user of a shared device has a
// preliminary score at or above the suspicious floor.
func hotCoUser(snap *graph.Snapshot, userID string, prelim map[string]float64, floor float64) bool {
	for _, d := range distinct(snap.DevicesOf(userID)) {
		for _, coUser := range snap.UsersOf(d) {
			if coUser == userID {
				continue
			}
			if prelim[coUser] >= floor {
				return true
			}
		}
	}
	return false
}

// ageSignal maps account age to risk: max(0, 1 - age/threshold).
func ageSignal(ageDays, thresholdDays int) float64 {
	return clamp01(1 - float64(ageDays)/float64(thresholdDays))
}

// amountSignal normalizes the user's mean sent amount against the
// population offsets: clamp((mean - offset) / scale).
func amountSignal(snap *graph.Snapshot, userID string, cfg Config) float64 {
	txns := snap.TransactionsBySender(userID)
	if len(txns) == 0 {
		return 0
	}
	var total float64
	for _, t := range txns {
		total += t.Amount
	}
	mean := total / float64(len(txns))
	return clamp01((mean - cfg.AmountOffset) / cfg.AmountScale)
}

// volumeSignal normalizes the user's peak send count within any rolling
// velocity window: clamp((peak - offset) / scale).
func volumeSignal(snap *graph.Snapshot, userID string, cfg Config) float64 {
	txns := snap.TransactionsBySender(userID)
	if len(txns) == 0 {
		return 0
	}
	times := make([]time.Time, len(txns))
	for i, t := range txns {
		times[i] = t.Timestamp
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	// Sliding window over sorted timestamps.
	peak, lo := 0, 0
	for hi := range times {
		for times[hi].Sub(times[lo]) > cfg.VelocityWindow {
			lo++
		}
		if n := hi - lo + 1; n > peak {
			peak = n
		}
	}
	return clamp01((float64(peak) - float64(cfg.VolumeOffset)) / cfg.VolumeScale)
}

// centralitySignal blends max-normalized PageRank and betweenness.
func centralitySignal(ana *analytics.Result, userID string, maxPR, maxBC float64) float64 {
	var pr, bc float64
	if maxPR > 0 {
		pr = ana.Centrality.PageRank[userID] / maxPR
	}
	if maxBC > 0 {
		bc = ana.Centrality.Betweenness[userID] / maxBC
	}
	return clamp01((pr + bc) / 2)
}

// distinct returns the distinct values of ids preserving sorted input order.
func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
