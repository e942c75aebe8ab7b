// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/AleutianAI/faas-core/pkg/faas"
)

// WASMIsolate runs rust/go/zig/assemblyscript artifacts that were
// pre-compiled to WASM bytes (§4.7's Open Question decision: this host
// treats those languages' "compile" step as bytes-already-WASM and
// validates the module header rather than invoking a toolchain).
//
// Each Run call instantiates a fresh runtime so memory limits and WASI
// file/clock access never leak across invocations.
type WASMIsolate struct{}

func NewWASMIsolate() *WASMIsolate { return &WASMIsolate{} }

func (w *WASMIsolate) Dispose() {}

// Run instantiates artifact.WASMBytes, calls its exported "handler"
// function with a pointer/length pair written into guest memory, and
// decodes the returned pointer/length as a JSON output buffer.
func (w *WASMIsolate) Run(ctx context.Context, artifact CompiledArtifact, input any, policy faas.SandboxPolicy) (RunResult, error) {
	// wazero exposes no per-module CPU-time accounting, so policy.CPULimitMs
	// is enforced as a wall-clock deadline layered under the caller's own
	// timeout, mirroring the v8 isolate's approximation.
	runCtx := ctx
	if policy.CPULimitMs > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(policy.CPULimitMs)*time.Millisecond)
		defer cancel()
	}

	rtConfig := wazero.NewRuntimeConfig()
	if policy.MemoryLimitBytes > 0 {
		pages := uint32(policy.MemoryLimitBytes / (64 * 1024))
		if pages < 1 {
			pages = 1
		}
		rtConfig = rtConfig.WithMemoryLimitPages(pages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	defer rt.Close(ctx)

	if policy.NetworkEnabled {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			return RunResult{}, fmt.Errorf("instantiate wasi: %w", err)
		}
	}

	mod, err := rt.Instantiate(ctx, artifact.WASMBytes)
	if err != nil {
		return RunResult{}, fmt.Errorf("instantiate wasm module: %w", err)
	}
	defer mod.Close(ctx)

	handler := mod.ExportedFunction("handler")
	if handler == nil {
		return RunResult{}, fmt.Errorf("wasm module exports no 'handler' function")
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return RunResult{}, fmt.Errorf("marshal input: %w", err)
	}

	ptr, length, err := writeToGuestMemory(ctx, mod, inputJSON)
	if err != nil {
		return RunResult{}, fmt.Errorf("write guest memory: %w", err)
	}

	resultCh := make(chan struct {
		vals []uint64
		err  error
	}, 1)
	go func() {
		vals, err := handler.Call(runCtx, ptr, length)
		resultCh <- struct {
			vals []uint64
			err  error
		}{vals, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return RunResult{}, r.err
		}
		output, err := readOutputFromGuestMemory(mod, r.vals)
		if err != nil {
			return RunResult{}, err
		}
		return RunResult{Output: output}, nil
	case <-runCtx.Done():
		_ = mod.Close(ctx)
		if ctx.Err() == nil && runCtx.Err() == context.DeadlineExceeded {
			return RunResult{}, fmt.Errorf("cpu time limit of %dms exceeded", policy.CPULimitMs)
		}
		return RunResult{}, ctx.Err()
	}
}

// writeToGuestMemory allocates space via the module's exported "alloc"
// (when present, as most wasm32 targets provide) and copies data in;
// modules without an allocator export get the input written at a fixed
// scratch offset, a convention shared by minimal handler builds.
func writeToGuestMemory(ctx context.Context, mod api.Module, data []byte) (uint64, uint64, error) {
	const scratchOffset = 1024
	if alloc := mod.ExportedFunction("alloc"); alloc != nil {
		vals, err := alloc.Call(ctx, uint64(len(data)))
		if err == nil && len(vals) == 1 {
			if !mod.Memory().Write(uint32(vals[0]), data) {
				return 0, 0, fmt.Errorf("write to allocated guest memory out of range")
			}
			return vals[0], uint64(len(data)), nil
		}
	}
	if !mod.Memory().Write(scratchOffset, data) {
		return 0, 0, fmt.Errorf("write to scratch guest memory out of range")
	}
	return scratchOffset, uint64(len(data)), nil
}

func readOutputFromGuestMemory(mod api.Module, vals []uint64) (any, error) {
	if len(vals) != 2 {
		return nil, fmt.Errorf("handler must return (ptr, len), got %d values", len(vals))
	}
	ptr, length := uint32(vals[0]), uint32(vals[1])
	bytes, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("read guest memory out of range")
	}
	var output any
	if err := json.Unmarshal(bytes, &output); err != nil {
		return string(bytes), nil
	}
	return output, nil
}
