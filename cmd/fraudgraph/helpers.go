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
	"encoding/json"
	"fmt"
	"os"

	"github.com/AleutianAI/fraudgraph/pkg/logging"
	fraudgraph "github.com/AleutianAI/fraudgraph/services/fraudgraph"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/config"
)

// loadCLIConfig resolves the effective configuration: the config file if
// given, defaults otherwise, then flag overrides on top.
func loadCLIConfig() (config.Config, error) {
	var cfg config.Config
	var err error

	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return cfg, fmt.Errorf("loading config %s: %w", configPath, err)
		}
	} else {
		cfg = config.Default()
	}

	if dataDir != "" {
		cfg.Dataset.Dir = dataDir
	}
	if backend != "" {
		cfg.Storage.Backend = backend
	}
	if storePath != "" {
		cfg.Storage.Path = storePath
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newCLILogger builds a logger matching the config. CLI commands log
// quietly to keep stdout clean for command output.
func newCLILogger(cfg config.Config, quiet bool) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "fraudgraph",
		JSON:    cfg.Logging.JSON,
		Quiet:   quiet,
	}), nil
}

// newBuiltService creates a service and runs the pipeline on the
// configured dataset. Caller must Close the service.
func newBuiltService(ctx context.Context, cfg config.Config, log *logging.Logger) (*fraudgraph.Service, error) {
	svc, err := fraudgraph.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if _, err := svc.LoadAndBuild(ctx, ""); err != nil {
		svc.Close()
		return nil, err
	}
	return svc, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
