// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sandbox implements the three C7 isolate backends (v8, wasm,
// worker-loader) behind one interface. Each backend applies its own subset
// of faas.SandboxPolicy; the worker-loader backend forwards the policy to
// its sidecar. No backend applies deterministic mode: FixedClock below is
// not called by any of them.
package sandbox

import (
	"context"
	"time"

	"github.com/AleutianAI/faas-core/pkg/faas"
)

// RunResult is the raw result of one isolate invocation, before C7 maps
// it onto the public Result shape.
type RunResult struct {
	Output          any
	Err             *faas.ResultError
	MemoryUsedBytes int64
	CPUTimeMs       int64

	// PartialOutput is set when user code threw a value annotated with
	// partialResult: per spec §4.7/§7, such a throw yields status=failed
	// but still surfaces the partial output under result.output.
	PartialOutput any
	HasPartial    bool
}

// Isolate runs one prepared artifact against one input and returns its
// raw output. Implementations must honor ctx cancellation by aborting
// the in-flight call and returning promptly.
type Isolate interface {
	Run(ctx context.Context, artifact CompiledArtifact, input any, policy faas.SandboxPolicy) (RunResult, error)
	Dispose()
}

// CompiledArtifact is the output of the C7 compile step: prepared source
// or bytes ready for Isolate.Run, plus enough metadata to report metrics.
type CompiledArtifact struct {
	Language          faas.Language
	IsolateType       faas.IsolateType
	PreparedSource    string // v8: JS source after type-stripping
	WASMBytes         []byte // wasm isolate
	CompilationTimeMs int64
}

// Clock supplies "now" to the deterministic-mode clock override.
type Clock func() time.Time

// FixedClock returns a Clock pinned to a single instant, used when
// SandboxPolicy.Deterministic is set.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
