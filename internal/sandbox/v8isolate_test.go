// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/faas-core/pkg/faas"
)

func TestV8IsolateRunEchoesInput(t *testing.T) {
	iso := NewV8Isolate(nil)
	defer iso.Dispose()

	artifact := CompiledArtifact{PreparedSource: "function handler(x) { return {doubled: x.n * 2}; }"}
	res, err := iso.Run(context.Background(), artifact, map[string]any{"n": 21}, faas.SandboxPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, ok := res.Output.(map[string]any)
	if !ok || out["doubled"] != float64(42) {
		t.Fatalf("expected {doubled: 42}, got %+v", res.Output)
	}
}

func TestV8IsolateRunPropagatesThrownError(t *testing.T) {
	iso := NewV8Isolate(nil)
	defer iso.Dispose()

	artifact := CompiledArtifact{PreparedSource: "function handler(x) { throw new TypeError('bad input'); }"}
	_, err := iso.Run(context.Background(), artifact, nil, faas.SandboxPolicy{})

	var thrown ThrownError
	if !errors.As(err, &thrown) {
		t.Fatalf("expected ThrownError, got %v (%T)", err, err)
	}
	if thrown.Name != "TypeError" || thrown.Message != "bad input" {
		t.Fatalf("unexpected thrown error: %+v", thrown)
	}
}

func TestV8IsolateRunSurfacesPartialResult(t *testing.T) {
	iso := NewV8Isolate(nil)
	defer iso.Dispose()

	artifact := CompiledArtifact{PreparedSource: `
		function handler(x) {
			var e = new Error("upstream truncated");
			e.partialResult = {rows: 3};
			e.retryable = true;
			throw e;
		}`}
	res, err := iso.Run(context.Background(), artifact, nil, faas.SandboxPolicy{})

	var thrown ThrownError
	if !errors.As(err, &thrown) {
		t.Fatalf("expected ThrownError, got %v (%T)", err, err)
	}
	if !thrown.Retryable {
		t.Fatalf("expected retryable=true, got %+v", thrown)
	}
	if !res.HasPartial {
		t.Fatalf("expected HasPartial=true")
	}
	partial, ok := res.PartialOutput.(map[string]any)
	if !ok || partial["rows"] != float64(3) {
		t.Fatalf("expected partial output {rows:3}, got %+v", res.PartialOutput)
	}
}

func TestV8IsolateRunHandlesCircularThrownObject(t *testing.T) {
	iso := NewV8Isolate(nil)
	defer iso.Dispose()

	artifact := CompiledArtifact{PreparedSource: `
		function handler(x) {
			var e = {};
			e.self = e;
			e.message = "circular";
			throw e;
		}`}
	_, err := iso.Run(context.Background(), artifact, nil, faas.SandboxPolicy{})
	if err == nil {
		t.Fatal("expected an error from the thrown circular object")
	}

	var thrown ThrownError
	if !errors.As(err, &thrown) {
		t.Fatalf("expected ThrownError, got %v (%T)", err, err)
	}
	if thrown.Message != "circular" {
		t.Fatalf("expected message 'circular', got %+v", thrown)
	}
}

func TestV8IsolateRunEchoesInputWithApostropheAndBackslash(t *testing.T) {
	iso := NewV8Isolate(nil)
	defer iso.Dispose()

	artifact := CompiledArtifact{PreparedSource: "function handler(x) { return x; }"}
	input := map[string]any{"name": "O'Brien", "path": `C:\Users\test`, "note": "line1\nline2"}
	res, err := iso.Run(context.Background(), artifact, input, faas.SandboxPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, ok := res.Output.(map[string]any)
	if !ok {
		t.Fatalf("expected map output, got %+v", res.Output)
	}
	if out["name"] != "O'Brien" {
		t.Errorf("expected name round-trip with apostrophe intact, got %q", out["name"])
	}
	if out["path"] != `C:\Users\test` {
		t.Errorf("expected backslash-containing path to round-trip exactly, got %q", out["path"])
	}
	if out["note"] != "line1\nline2" {
		t.Errorf("expected embedded newline to round-trip exactly, got %q", out["note"])
	}
}

func TestV8IsolateRunRespectsContextCancellation(t *testing.T) {
	iso := NewV8Isolate(nil)
	defer iso.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	artifact := CompiledArtifact{PreparedSource: "function handler(x) { while (true) {} }"}
	_, err := iso.Run(ctx, artifact, nil, faas.SandboxPolicy{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

// §4.7 step 6: SandboxPolicy.CPULimitMs bounds a busy-loop handler even when
// the caller's own context has a much longer (or no) deadline.
func TestV8IsolateRunEnforcesCPULimit(t *testing.T) {
	iso := NewV8Isolate(nil)
	defer iso.Dispose()

	artifact := CompiledArtifact{PreparedSource: "function handler(x) { while (true) {} }"}
	start := time.Now()
	_, err := iso.Run(context.Background(), artifact, nil, faas.SandboxPolicy{CPULimitMs: 50})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected an error from the cpu limit")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "cpu") {
		t.Fatalf("expected error message to mention cpu limit, got %v", err)
	}
	if elapsed > isolateGracePeriod+2*time.Second {
		t.Fatalf("expected cpu limit to cut execution well short of the grace period, took %s", elapsed)
	}
}

// A CPULimitMs tighter than the caller's own context deadline still yields
// the cpu-limit message, not a bare context.DeadlineExceeded.
func TestV8IsolateRunCPULimitTighterThanCallerDeadline(t *testing.T) {
	iso := NewV8Isolate(nil)
	defer iso.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	artifact := CompiledArtifact{PreparedSource: "function handler(x) { while (true) {} }"}
	_, err := iso.Run(ctx, artifact, nil, faas.SandboxPolicy{CPULimitMs: 50})
	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "cpu") {
		t.Fatalf("expected cpu limit error, got %v", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a wrapped cpu-limit message, not a bare DeadlineExceeded: %v", err)
	}
}
