// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateID_Valid(t *testing.T) {
	ids := []string{
		"U0001",
		"D42",
		"T00123",
		"a",
		"user-1.b_2",
		"550e8400-e29b-41d4-a716-446655440000",
		strings.Repeat("x", MaxIDLength),
	}
	for _, id := range ids {
		assert.NoError(t, ValidateID("user", id), "id %q", id)
	}
}

func TestValidateID_Invalid(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"too long", strings.Repeat("x", MaxIDLength+1)},
		{"leading dash", "-U1"},
		{"leading dot", ".U1"},
		{"embedded space", "U 1"},
		{"path segment", "U1/../../etc"},
		{"unit separator", "U1\x1fU2"},
		{"newline", "U1\n"},
		{"null byte", "U1\x00"},
		{"non-ascii", "Ü1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateID("device", tt.id))
		})
	}
}

func TestValidateID_KindInMessage(t *testing.T) {
	err := ValidateID("transaction", "")
	assert.ErrorContains(t, err, "transaction")
}
