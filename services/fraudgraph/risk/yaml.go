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
	"time"

	"gopkg.in/yaml.v3"
)

// rawConfig mirrors Config without its methods, with the velocity window
// as a Go duration string so config files can say "24h".
type rawConfig struct {
	Weights          Weights `yaml:"weights"`
	Threshold        float64 `yaml:"threshold"`
	AgeThresholdDays int     `yaml:"age_threshold_days"`
	SuspiciousFloor  float64 `yaml:"suspicious_floor"`
	AmountOffset     float64 `yaml:"amount_offset"`
	AmountScale      float64 `yaml:"amount_scale"`
	VolumeOffset     int     `yaml:"volume_offset"`
	VolumeScale      float64 `yaml:"volume_scale"`
	VelocityWindow   string  `yaml:"velocity_window"`
}

// MarshalYAML emits the velocity window in Go duration syntax.
func (c Config) MarshalYAML() (any, error) {
	return rawConfig{
		Weights:          c.Weights,
		Threshold:        c.Threshold,
		AgeThresholdDays: c.AgeThresholdDays,
		SuspiciousFloor:  c.SuspiciousFloor,
		AmountOffset:     c.AmountOffset,
		AmountScale:      c.AmountScale,
		VolumeOffset:     c.VolumeOffset,
		VolumeScale:      c.VolumeScale,
		VelocityWindow:   c.VelocityWindow.String(),
	}, nil
}

// UnmarshalYAML accepts the velocity window as a duration string. Fields
// absent from the document keep whatever value c already holds, so
// unmarshalling over DefaultConfig() merges rather than resets.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	raw := rawConfig{
		Weights:          c.Weights,
		Threshold:        c.Threshold,
		AgeThresholdDays: c.AgeThresholdDays,
		SuspiciousFloor:  c.SuspiciousFloor,
		AmountOffset:     c.AmountOffset,
		AmountScale:      c.AmountScale,
		VolumeOffset:     c.VolumeOffset,
		VolumeScale:      c.VolumeScale,
		VelocityWindow:   c.VelocityWindow.String(),
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	window, err := time.ParseDuration(raw.VelocityWindow)
	if err != nil {
		return fmt.Errorf("invalid velocity_window %q: %w", raw.VelocityWindow, err)
	}
	c.Weights = raw.Weights
	c.Threshold = raw.Threshold
	c.AgeThresholdDays = raw.AgeThresholdDays
	c.SuspiciousFloor = raw.SuspiciousFloor
	c.AmountOffset = raw.AmountOffset
	c.AmountScale = raw.AmountScale
	c.VolumeOffset = raw.VolumeOffset
	c.VolumeScale = raw.VolumeScale
	c.VelocityWindow = window
	return nil
}
