// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}

	log, err := newCLILogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx := cmd.Context()
	svc, err := newBuiltService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	report, err := svc.Report()
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(report)
	}

	snap, err := svc.Snapshot()
	if err != nil {
		return err
	}
	stats := snap.Statistics()

	fmt.Println("=== Fraud Graph Analysis ===")
	fmt.Printf("Graph: %d users, %d devices, %d device links, %d transactions\n",
		stats.UserCount, stats.DeviceCount, stats.UsesDeviceCount, stats.TransactionCount)
	fmt.Printf("Flagged users (score >= %.2f): %d\n", report.Threshold, len(report.HighRiskUsers))
	if len(report.HighRiskUsers) > 0 {
		fmt.Printf("  %s\n", strings.Join(report.HighRiskUsers, ", "))
	}

	fmt.Println("\nTop communities by fraud rate:")
	limit := len(report.CommunityStats)
	if limit > 10 {
		limit = 10
	}
	for _, cs := range report.CommunityStats[:limit] {
		fmt.Printf("  community %-4d size %-4d fraudsters %-3d rate %.2f\n",
			cs.CommunityID, cs.Size, cs.FraudsterCount, cs.FraudRate)
	}

	fmt.Printf("\nPrecision: %.3f  Recall: %.3f  F1: %.3f\n",
		report.Precision, report.Recall, report.F1)
	return nil
}
