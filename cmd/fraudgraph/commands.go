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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string // Path to the YAML config file
	dataDir    string // Dataset directory override
	backend    string // Storage backend override (memory/badger)
	storePath  string // BadgerDB path override
	jsonOutput bool   // Output as JSON for scripting

	genSeed         int64
	genUsers        int
	genFraudRate    float64
	genRings        int
	genTransactions int
	genOutDir       string

	queryDepth    int
	queryMaxDepth int
	queryTopK     int
	queryTarget   string

	rootCmd = &cobra.Command{
		Use:   "fraudgraph",
		Short: "A graph-based fraud detection service over user, device, and transaction data",
		Long: `Fraudgraph builds a heterogeneous graph from CSV datasets, detects
communities of coordinated accounts, computes centrality, scores every
user with a composite risk model, and answers investigative queries.`,
	}

	// --- Dataset ---
	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic fraud dataset with planted fraud rings",
		Long: `Generates a deterministic synthetic dataset of users, devices, device
usage, and transactions, with fraud rings sharing devices and routing
money through mule accounts.

Examples:
  fraudgraph generate --out ./data
  fraudgraph generate --out ./data --users 500 --rings 5 --seed 7`,
		RunE: runGenerate, // Defined in cmd_generate.go
	}

	// --- Pipeline ---
	analyzeCmd = &cobra.Command{
		Use:   "analyze",
		Short: "Run the full pipeline on a dataset and print the fraud report",
		Long: `Loads a CSV dataset, builds the graph, runs community detection,
PageRank, and betweenness, scores every user, and prints the fraud
report with precision/recall against ground-truth labels.

Examples:
  fraudgraph analyze --data ./data
  fraudgraph analyze --data ./data --backend badger --store-path ./fraud.db
  fraudgraph analyze --data ./data --json`,
		RunE: runAnalyze, // Defined in cmd_analyze.go
	}

	// --- Queries ---
	queryCmd = &cobra.Command{
		Use:   "query",
		Short: "Run one investigative query against a dataset",
	}
	queryProfileCmd = &cobra.Command{
		Use:   "profile [user_id]",
		Short: "Show a user's attributes, risk score, and community",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueryProfile, // Defined in cmd_query.go
	}
	queryConnectionsCmd = &cobra.Command{
		Use:   "connections [user_id]",
		Short: "List users and devices within N hops of a user",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueryConnections,
	}
	queryRiskCmd = &cobra.Command{
		Use:   "risk [user_id]",
		Short: "Explain a user's risk score signal by signal",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueryRisk,
	}
	querySharedDevicesCmd = &cobra.Command{
		Use:   "shared-devices [user_id]",
		Short: "List users sharing devices with a user",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuerySharedDevices,
	}
	queryPathsCmd = &cobra.Command{
		Use:   "paths [source_user_id]",
		Short: "Find transaction paths between two users",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueryPaths,
	}
	queryCommunityCmd = &cobra.Command{
		Use:   "community [user_id]",
		Short: "Show a user's community and its fraud composition",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueryCommunity,
	}
	querySuspiciousCmd = &cobra.Command{
		Use:   "suspicious",
		Short: "List the top-k most suspicious users",
		RunE:  runQuerySuspicious,
	}

	// --- Server ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the fraudgraph HTTP API server",
		Long: `Starts the HTTP API. With dataset watching enabled the server rebuilds
automatically when the CSV files change.

Examples:
  fraudgraph serve --config config.yaml
  fraudgraph serve --data ./data --backend badger --store-path ./fraud.db`,
		RunE: runServe, // Defined in cmd_serve.go
	}

	// --- Utilities ---
	initConfigCmd = &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a default config.yaml to the given path",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInitConfig, // Defined in cmd_serve.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "dataset directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "storage backend: memory or badger (overrides config)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store-path", "", "BadgerDB directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	generateCmd.Flags().StringVar(&genOutDir, "out", "./data", "output directory for the CSV files")
	generateCmd.Flags().Int64Var(&genSeed, "seed", 42, "random seed")
	generateCmd.Flags().IntVar(&genUsers, "users", 200, "number of users")
	generateCmd.Flags().Float64Var(&genFraudRate, "fraud-rate", 0.02, "fraction of users that are fraudsters")
	generateCmd.Flags().IntVar(&genRings, "rings", 3, "number of fraud rings")
	generateCmd.Flags().IntVar(&genTransactions, "transactions", 1000, "number of transactions")

	queryConnectionsCmd.Flags().IntVar(&queryDepth, "depth", 0, "traversal depth (1-3, default 1)")
	queryPathsCmd.Flags().StringVar(&queryTarget, "target", "", "target user ID (required)")
	queryPathsCmd.MarkFlagRequired("target")
	queryPathsCmd.Flags().IntVar(&queryMaxDepth, "max-depth", 0, "hop cap (1-5, default 3)")
	querySuspiciousCmd.Flags().IntVar(&queryTopK, "top-k", 10, "number of users to return")

	queryCmd.AddCommand(queryProfileCmd)
	queryCmd.AddCommand(queryConnectionsCmd)
	queryCmd.AddCommand(queryRiskCmd)
	queryCmd.AddCommand(querySharedDevicesCmd)
	queryCmd.AddCommand(queryPathsCmd)
	queryCmd.AddCommand(queryCommunityCmd)
	queryCmd.AddCommand(querySuspiciousCmd)

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initConfigCmd)
}
