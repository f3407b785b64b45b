// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for security-critical
// identifiers.
//
// Entity identifiers end up embedded in storage keys and URL paths, so a
// malicious or malformed ID can corrupt a key layout or smuggle path
// segments. Validating at the ingestion boundary keeps every layer below it
// free of escaping concerns.
package validation

import (
	"fmt"
	"regexp"
)

// MaxIDLength caps identifier length. Generated IDs are far shorter; real
// payment-platform IDs (UUIDs included) fit comfortably.
const MaxIDLength = 64

// idPattern matches well-formed entity identifiers: a leading alphanumeric
// followed by alphanumerics, dots, underscores, or hyphens. Control bytes,
// separators, and path characters are all excluded.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// ValidateID validates an entity identifier (user, device, or transaction).
//
// Valid identifiers:
//   - 1-64 characters
//   - Start with a letter or digit
//   - Contain only letters, digits, dots, underscores, and hyphens
//
// Returns an error naming the entity kind if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateID("user", id); err != nil {
//	    return err
//	}
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s identifier must not be empty", kind)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%s identifier exceeds %d characters", kind, MaxIDLength)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s identifier %q contains invalid characters", kind, id)
	}
	return nil
}
