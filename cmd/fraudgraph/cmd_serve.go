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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	fraudgraph "github.com/AleutianAI/fraudgraph/services/fraudgraph"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/config"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}

	log, err := newCLILogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Close()
	log.SetDefault()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := fraudgraph.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("starting service: %w", err)
	}
	defer svc.Close()

	// Build eagerly when a dataset directory is configured so the server
	// is ready before the first request. A missing dataset is not fatal;
	// a build can be triggered over the API later.
	if cfg.Dataset.Dir != "" {
		if _, err := svc.LoadAndBuild(ctx, ""); err != nil {
			log.Warn("initial build failed, serving without a snapshot", "error", err)
		}
	}

	return svc.Run(ctx)
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := "config.yaml"
	if len(args) > 0 {
		path = args[0]
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}
