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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/dataset"
)

func runGenerate(cmd *cobra.Command, args []string) error {
	opts := dataset.GeneratorOptions{
		Seed:         genSeed,
		Users:        genUsers,
		FraudRate:    genFraudRate,
		Rings:        genRings,
		Transactions: genTransactions,
	}

	ds, err := dataset.Generate(opts)
	if err != nil {
		return fmt.Errorf("generating dataset: %w", err)
	}

	if err := dataset.Save(ds, genOutDir); err != nil {
		return fmt.Errorf("writing dataset to %s: %w", genOutDir, err)
	}

	fraudsters := 0
	for _, u := range ds.Users {
		if u.IsFraudster {
			fraudsters++
		}
	}

	fmt.Printf("Wrote dataset to %s\n", genOutDir)
	fmt.Printf("  users:        %d (%d fraudsters)\n", len(ds.Users), fraudsters)
	fmt.Printf("  devices:      %d\n", len(ds.Devices))
	fmt.Printf("  device links: %d\n", len(ds.UserDevices))
	fmt.Printf("  transactions: %d\n", len(ds.Transactions))
	return nil
}
