// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AleutianAI/faas-core/pkg/faas"
)

// WorkerLoaderIsolate delegates execution to an HTTP sidecar that hosts
// the real language runtime (python, csharp) this host cannot embed
// in-process. It mirrors the injectable-HTTPClient shape used elsewhere
// in this codebase for external language services.
type WorkerLoaderIsolate struct {
	httpClient *http.Client
	baseURL    string
}

// NewWorkerLoaderIsolate constructs a delegate isolate pointed at a
// sidecar's base URL, e.g. "http://python-worker:8090".
func NewWorkerLoaderIsolate(baseURL string) *WorkerLoaderIsolate {
	return &WorkerLoaderIsolate{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
	}
}

func (w *WorkerLoaderIsolate) Dispose() {}

type workerRunRequest struct {
	Language Language      `json:"language"`
	Source   string        `json:"source"`
	Input    any           `json:"input"`
	Policy   faas.SandboxPolicy `json:"policy"`
}

type workerRunResponse struct {
	Output          any    `json:"output"`
	ErrorMessage    string `json:"error,omitempty"`
	MemoryUsedBytes int64  `json:"memoryUsedBytes"`
	CPUTimeMs       int64  `json:"cpuTimeMs"`
}

// Language aliases faas.Language to keep this file's wire type local and
// self-contained for JSON (de)serialization against the sidecar.
type Language = faas.Language

// Run POSTs the prepared source and input to the sidecar's /run endpoint
// and decodes its response. Context cancellation aborts the HTTP call.
func (w *WorkerLoaderIsolate) Run(ctx context.Context, artifact CompiledArtifact, input any, policy faas.SandboxPolicy) (RunResult, error) {
	reqBody, err := json.Marshal(workerRunRequest{
		Language: artifact.Language,
		Source:   artifact.PreparedSource,
		Input:    input,
		Policy:   policy,
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("marshal worker request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/run", bytes.NewReader(reqBody))
	if err != nil {
		return RunResult{}, fmt.Errorf("build worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return RunResult{}, fmt.Errorf("worker-loader request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RunResult{}, fmt.Errorf("read worker response: %w", err)
	}

	var out workerRunResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return RunResult{}, fmt.Errorf("parse worker response: %w", err)
	}

	if out.ErrorMessage != "" {
		return RunResult{}, fmt.Errorf("%s", out.ErrorMessage)
	}

	return RunResult{
		Output:          out.Output,
		MemoryUsedBytes: out.MemoryUsedBytes,
		CPUTimeMs:       out.CPUTimeMs,
	}, nil
}
