// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command fraudgraph manages the fraud detection graph service.
//
// The service builds a heterogeneous graph (users, devices, transactions)
// from CSV datasets, runs community detection and centrality analytics,
// scores every user with a composite risk model, and answers investigative
// queries over the result.
//
// Usage:
//
//	fraudgraph generate --out ./data            # Generate a synthetic dataset
//	fraudgraph analyze --data ./data            # Run the pipeline, print the report
//	fraudgraph query profile U0001 --data ./data
//	fraudgraph serve --config config.yaml       # Start the HTTP API
//
// Example requests against a running server:
//
//	curl -X POST http://localhost:8335/v1/fraudgraph/build
//	curl http://localhost:8335/v1/fraudgraph/query/risk/U0001 | jq
//	curl http://localhost:8335/v1/fraudgraph/query/suspicious?top_k=5 | jq
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
