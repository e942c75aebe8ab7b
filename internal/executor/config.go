// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package executor implements C7: the code executor. It resolves a
// function's source through C2 (fronted by the C8 compile cache),
// compiles or prepares it for the chosen isolate, enforces the sandbox
// policy, runs it under a deadline, and collects metrics.
package executor

import (
	"time"

	"github.com/AleutianAI/faas-core/pkg/faas"
)

// SystemDefaults are the bottom layer of the §4.7 step-1 config overlay.
type SystemDefaults struct {
	TimeoutMs int64
}

func DefaultSystemDefaults() SystemDefaults {
	return SystemDefaults{TimeoutMs: 5000}
}

// EffectiveConfig is the result of overlaying (invocation) > (definition
// default) > (system defaults).
type EffectiveConfig struct {
	TimeoutMs time.Duration
}

// ResolveConfig implements the step-1 overlay precedence.
func ResolveConfig(sys SystemDefaults, def *faas.InvocationConfig, invocation *faas.InvocationConfig) EffectiveConfig {
	timeoutMs := sys.TimeoutMs
	if def != nil && def.TimeoutMs != nil {
		timeoutMs = *def.TimeoutMs
	}
	if invocation != nil && invocation.TimeoutMs != nil {
		timeoutMs = *invocation.TimeoutMs
	}
	return EffectiveConfig{TimeoutMs: time.Duration(timeoutMs) * time.Millisecond}
}
