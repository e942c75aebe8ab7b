// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tracer

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateTraceID returns a cryptographically random 32-lowercase-hex trace
// id, W3C Trace Context compatible, never all-zero.
func GenerateTraceID() string {
	return generateHexID(16)
}

// GenerateSpanID returns a cryptographically random 16-lowercase-hex span
// id, never all-zero.
func GenerateSpanID() string {
	return generateHexID(8)
}

func generateHexID(n int) string {
	buf := make([]byte, n)
	for {
		if _, err := rand.Read(buf); err != nil {
			panic("tracer: crypto/rand unavailable: " + err.Error())
		}
		if !allZero(buf) {
			return hex.EncodeToString(buf)
		}
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
