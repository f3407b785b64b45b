// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package risk

import (
	"fmt"
	"sort"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/analytics"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
)

// =============================================================================
// Evaluation Report
// =============================================================================

// CommunityStat summarizes one community's fraud composition.
type CommunityStat struct {
	// CommunityID is the community identifier.
	CommunityID int `json:"community_id"`

	// Size is the member count.
	Size int `json:"size"`

	// FraudsterCount is the number of ground-truth fraudsters.
	FraudsterCount int `json:"fraudster_count"`

	// FraudRate is FraudsterCount / Size.
	FraudRate float64 `json:"fraud_rate"`
}

// Report evaluates scoring quality against ground-truth labels.
//
// This is the only place labels are read. It exists for evaluation datasets
// and drift monitoring; production datasets without labels yield zeroed
// accuracy fields.
type Report struct {
	// Threshold is the flagging threshold used.
	Threshold float64 `json:"threshold"`

	// HighRiskUsers are the flagged user IDs sorted ascending.
	HighRiskUsers []string `json:"high_risk_users"`

	// CommunityStats summarizes fraud composition per community, ordered
	// by fraud rate descending, community ID ascending on ties.
	CommunityStats []CommunityStat `json:"community_stats"`

	// Precision is TP / (TP + FP) over flagged users.
	Precision float64 `json:"precision"`

	// Recall is TP / all ground-truth fraudsters.
	Recall float64 `json:"recall"`

	// F1 is the harmonic mean of precision and recall.
	F1 float64 `json:"f1"`
}

// Evaluate builds the fraud report for a scored snapshot.
//
// Inputs:
//
//   - snap: The scored snapshot. Must not be nil.
//   - ana: Analytics for the same snapshot.
//   - scores: Scores for the same snapshot.
//
// Outputs:
//
//   - *Report: Community stats plus precision/recall/F1.
//   - error: graph.ErrPrecondition when inputs are missing or describe
//     different snapshot versions.
func Evaluate(snap *graph.Snapshot, ana *analytics.Result, scores *ScoreSet) (*Report, error) {
	if snap == nil || ana == nil || ana.Communities == nil || scores == nil {
		return nil, fmt.Errorf("%w: evaluation requires snapshot, analytics, and scores", graph.ErrPrecondition)
	}
	if ana.SnapshotVersion != snap.Version() || scores.SnapshotVersion != snap.Version() {
		return nil, fmt.Errorf("%w: derived state does not match snapshot version %d", graph.ErrPrecondition, snap.Version())
	}

	report := &Report{
		Threshold:     scores.Threshold,
		HighRiskUsers: scores.FlaggedIDs(),
	}

	// Community fraud composition.
	for _, c := range ana.Communities.Communities {
		stat := CommunityStat{CommunityID: c.ID, Size: c.Size()}
		for _, id := range c.UserIDs {
			if u, ok := snap.User(id); ok && u.IsFraudster {
				stat.FraudsterCount++
			}
		}
		if stat.Size > 0 {
			stat.FraudRate = float64(stat.FraudsterCount) / float64(stat.Size)
		}
		report.CommunityStats = append(report.CommunityStats, stat)
	}
	sort.Slice(report.CommunityStats, func(i, j int) bool {
		a, b := report.CommunityStats[i], report.CommunityStats[j]
		if a.FraudRate != b.FraudRate {
			return a.FraudRate > b.FraudRate
		}
		return a.CommunityID < b.CommunityID
	})

	// Detection accuracy against ground truth.
	var truePositives, falsePositives, totalFraudsters int
	for _, id := range snap.UserIDs() {
		u, _ := snap.User(id)
		if u.IsFraudster {
			totalFraudsters++
		}
		us, ok := scores.Get(id)
		if !ok || !us.Flagged {
			continue
		}
		if u.IsFraudster {
			truePositives++
		} else {
			falsePositives++
		}
	}
	if flagged := truePositives + falsePositives; flagged > 0 {
		report.Precision = float64(truePositives) / float64(flagged)
	}
	if totalFraudsters > 0 {
		report.Recall = float64(truePositives) / float64(totalFraudsters)
	}
	if report.Precision+report.Recall > 0 {
		report.F1 = 2 * report.Precision * report.Recall / (report.Precision + report.Recall)
	}
	return report, nil
}
