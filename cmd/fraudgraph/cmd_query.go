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
	"context"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/query"
)

// runQueryCommand builds the pipeline once and runs a single query.
// Every query subcommand funnels through here; the closure receives a
// ready engine.
func runQueryCommand(cmd *cobra.Command, fn func(ctx context.Context, eng *query.Engine) (any, error)) error {
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

	eng, err := svc.Engine()
	if err != nil {
		return err
	}

	result, err := fn(ctx, eng)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runQueryProfile(cmd *cobra.Command, args []string) error {
	return runQueryCommand(cmd, func(ctx context.Context, eng *query.Engine) (any, error) {
		return eng.Profile(ctx, args[0])
	})
}

func runQueryConnections(cmd *cobra.Command, args []string) error {
	return runQueryCommand(cmd, func(ctx context.Context, eng *query.Engine) (any, error) {
		return eng.Connections(ctx, args[0], queryDepth)
	})
}

func runQueryRisk(cmd *cobra.Command, args []string) error {
	return runQueryCommand(cmd, func(ctx context.Context, eng *query.Engine) (any, error) {
		return eng.FraudRisk(ctx, args[0])
	})
}

func runQuerySharedDevices(cmd *cobra.Command, args []string) error {
	return runQueryCommand(cmd, func(ctx context.Context, eng *query.Engine) (any, error) {
		return eng.SharedDevices(ctx, args[0])
	})
}

func runQueryPaths(cmd *cobra.Command, args []string) error {
	return runQueryCommand(cmd, func(ctx context.Context, eng *query.Engine) (any, error) {
		return eng.TransactionPaths(ctx, args[0], queryTarget, queryMaxDepth)
	})
}

func runQueryCommunity(cmd *cobra.Command, args []string) error {
	return runQueryCommand(cmd, func(ctx context.Context, eng *query.Engine) (any, error) {
		return eng.CommunityMembership(ctx, args[0])
	})
}

func runQuerySuspicious(cmd *cobra.Command, args []string) error {
	return runQueryCommand(cmd, func(ctx context.Context, eng *query.Engine) (any, error) {
		return eng.SuspiciousPatterns(ctx, queryTopK)
	})
}
