// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the fraudgraph service configuration.
//
// Configuration is a single YAML file. Every field has a default, so an
// empty or absent file yields a working in-memory configuration; a partial
// file overrides only the fields it names.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/fraudgraph/services/fraudgraph/risk"
)

// Storage backend names.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Duration wraps time.Duration so YAML files can use Go duration syntax
// ("250ms", "15s"); plain integers are read as nanoseconds.
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalYAML emits the duration in Go syntax.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts a duration string or integer nanoseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := node.Decode(&ns); err != nil {
		return fmt.Errorf("invalid duration value on line %d", node.Line)
	}
	*d = Duration(ns)
	return nil
}

// Config is the root service configuration.
type Config struct {
	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Storage selects and configures the graph backend.
	Storage StorageConfig `yaml:"storage"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Dataset configures dataset loading and the rebuild watcher.
	Dataset DatasetConfig `yaml:"dataset"`

	// Analytics tunes the graph algorithms. Zero values use the
	// documented algorithm defaults.
	Analytics AnalyticsConfig `yaml:"analytics"`

	// Risk configures the composite scorer.
	Risk risk.Config `yaml:"risk"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port" validate:"gte=1,lte=65535"`
	ReadTimeout  Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout Duration `yaml:"write_timeout" validate:"gt=0"`
}

// StorageConfig selects the graph backend.
type StorageConfig struct {
	// Backend is "memory" or "badger".
	Backend string `yaml:"backend" validate:"oneof=memory badger"`

	// Path is the BadgerDB directory. Required for the badger backend.
	Path string `yaml:"path"`

	// SyncWrites enables synchronous BadgerDB writes.
	SyncWrites bool `yaml:"sync_writes"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// JSON switches the handler to JSON output.
	JSON bool `yaml:"json"`

	// Dir, when set, mirrors logs to a file under this directory.
	Dir string `yaml:"dir"`
}

// DatasetConfig configures dataset loading.
type DatasetConfig struct {
	// Dir is the directory holding the four CSV tables.
	Dir string `yaml:"dir"`

	// Watch enables the file watcher that rebuilds the graph when the
	// dataset directory changes.
	Watch bool `yaml:"watch"`

	// DebounceInterval coalesces bursts of file events into one rebuild.
	DebounceInterval Duration `yaml:"debounce_interval" validate:"gt=0"`
}

// AnalyticsConfig tunes the analytics engine. All fields are optional;
// zero values fall back to algorithm defaults.
type AnalyticsConfig struct {
	PageRankDamping       float64 `yaml:"pagerank_damping"`
	PageRankMaxIterations int     `yaml:"pagerank_max_iterations"`
	PageRankConvergence   float64 `yaml:"pagerank_convergence"`
	CommunityMaxSweeps    int     `yaml:"community_max_sweeps"`
	CommunityTolerance    float64 `yaml:"community_tolerance"`
	CommunityResolution   float64 `yaml:"community_resolution"`
}

// validate is shared; the validator caches struct metadata and is safe for
// concurrent use.
var validate = validator.New()

// Default returns the full default configuration: in-memory backend,
// port 8335, info-level text logging, watcher off.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8335,
			ReadTimeout:  Duration(15 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
		},
		Storage: StorageConfig{
			Backend:    BackendMemory,
			SyncWrites: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Dataset: DatasetConfig{
			DebounceInterval: Duration(2 * time.Second),
		},
		Risk: risk.DefaultConfig(),
	}
}

// Load reads the configuration file at path over the defaults.
//
// Description:
//
//	Starts from Default() and unmarshals the file on top, so absent fields
//	keep their defaults. An empty path returns the defaults unchanged.
//
// Inputs:
//
//	path - YAML file path, or "" for pure defaults.
//
// Outputs:
//
//	Config - The merged, validated configuration.
//	error - Non-nil for unreadable files, malformed YAML, or invalid
//	        field values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Storage.Backend == BackendBadger && c.Storage.Path == "" {
		return errors.New("invalid configuration: storage.path is required for the badger backend")
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories. Used by the CLI to scaffold a config file on first run.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
