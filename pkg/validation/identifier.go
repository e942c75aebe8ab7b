// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// storage keys, sandbox dispatch, and routing. Using these validators prevents
// path traversal and key-injection attacks against the code store.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// functionIDPattern matches the character set allowed in a function id.
// Namespace separators ("/") are checked separately so we can enforce the
// at-most-one-slash rule with a clearer error message.
var functionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_./-]+$`)

// ValidateFunctionID validates a function id per the identity rule: a
// non-empty string matching [A-Za-z0-9_./-]+ with no path-traversal segments,
// no whitespace or control characters, and at most one "/" (denoting a
// namespace).
//
// Example:
//
//	if err := validation.ValidateFunctionID(fid); err != nil {
//	    return nil, fmt.Errorf("invalid function id: %w", err)
//	}
//	// safe to use in a code store key
func ValidateFunctionID(fid string) error {
	if fid == "" {
		return fmt.Errorf("function id cannot be empty")
	}

	for _, r := range fid {
		if r <= 0x1f || r == 0x7f {
			return fmt.Errorf("invalid function id %q: contains control characters", fid)
		}
		if r == ' ' || r == '\t' {
			return fmt.Errorf("invalid function id %q: contains whitespace", fid)
		}
	}

	if !functionIDPattern.MatchString(fid) {
		return fmt.Errorf("invalid function id format: %q (must match [A-Za-z0-9_./-]+)", fid)
	}

	if strings.Count(fid, "/") > 1 {
		return fmt.Errorf("invalid function id %q: at most one namespace separator (/) is allowed", fid)
	}

	for _, segment := range strings.Split(fid, "/") {
		if segment == "." || segment == ".." {
			return fmt.Errorf("invalid function id %q: path-traversal segment %q", fid, segment)
		}
		if segment == "" {
			return fmt.Errorf("invalid function id %q: empty namespace segment", fid)
		}
	}

	return nil
}

// ValidateFunctionIDs validates multiple function ids, returning an error
// listing all invalid ids if any fail validation.
func ValidateFunctionIDs(fids []string) error {
	var invalid []string
	for _, fid := range fids {
		if err := ValidateFunctionID(fid); err != nil {
			invalid = append(invalid, fid)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid function ids: %v", invalid)
	}
	return nil
}

// ValidateVersion validates a version tag: either the sentinel "latest" or a
// bare semver string (major.minor.patch, optional pre-release/build suffix).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)

func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("version cannot be empty")
	}
	if version == "latest" {
		return nil
	}
	if !semverPattern.MatchString(version) {
		return fmt.Errorf("invalid version %q: must be %q or a semver string", version, "latest")
	}
	return nil
}
