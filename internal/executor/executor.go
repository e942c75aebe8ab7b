// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package executor

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/AleutianAI/faas-core/internal/codestore"
	"github.com/AleutianAI/faas-core/internal/compilecache"
	pmetrics "github.com/AleutianAI/faas-core/internal/metrics"
	"github.com/AleutianAI/faas-core/internal/sandbox"
	"github.com/AleutianAI/faas-core/internal/sandbox/tsstrip"
	"github.com/AleutianAI/faas-core/internal/urlguard"
	"github.com/AleutianAI/faas-core/pkg/faas"
	"github.com/AleutianAI/faas-core/pkg/ferrors"
)

var memoryOrCPULimitRe = regexp.MustCompile(`(?i)memory|limit|exceeded|cpu`)

// Executor is C7: it resolves, compiles (through the C8 cache), sandboxes,
// runs, and measures one code function invocation at a time.
type Executor struct {
	store       *codestore.Store
	cache       *compilecache.Cache
	sysDefaults SystemDefaults
	httpClient  *http.Client

	v8       sandbox.Isolate
	wasm     sandbox.Isolate
	workerFn func(baseURL string) sandbox.Isolate
}

// New constructs an Executor. store and cache may be shared across many
// concurrent invocations; Executor itself holds no per-invocation state.
func New(store *codestore.Store, cache *compilecache.Cache) *Executor {
	return &Executor{
		store:       store,
		cache:       cache,
		sysDefaults: DefaultSystemDefaults(),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		v8:          sandbox.NewV8Isolate(nil),
		wasm:        sandbox.NewWASMIsolate(),
		workerFn:    func(baseURL string) sandbox.Isolate { return sandbox.NewWorkerLoaderIsolate(baseURL) },
	}
}

// WorkerLoaderBaseURL, when set, routes python/csharp invocations to the
// given sidecar. Unset, those languages fail with a ValidationError ("no
// worker-loader sidecar configured").
type WorkerLoaderBaseURL struct {
	Python string
	CSharp string
}

// Execute implements the top-level §4.7 contract.
func (e *Executor) Execute(ctx context.Context, def faas.CodeFunctionDef, input any, invocationCfg *faas.InvocationConfig, workers WorkerLoaderBaseURL) (result faas.Result) {
	startedAt := time.Now()
	executionID := fmt.Sprintf("exec-%s", randomHex(12))

	defer func() {
		pmetrics.ExecutorDuration.WithLabelValues(string(def.Language), string(result.Status)).Observe(time.Since(startedAt).Seconds())
	}()

	cfg := ResolveConfig(e.sysDefaults, def.DefaultConfig, invocationCfg)
	if def.TimeoutMs > 0 && (def.DefaultConfig == nil || def.DefaultConfig.TimeoutMs == nil) {
		cfg.TimeoutMs = time.Duration(def.TimeoutMs) * time.Millisecond
	}

	policy := faas.SandboxPolicy{}
	if def.SandboxPolicy != nil {
		policy = *def.SandboxPolicy
	}

	result = faas.Result{
		FunctionID:      def.ID,
		FunctionVersion: def.Version,
		ExecutionID:     executionID,
	}

	code, err := e.resolveSource(ctx, def)
	if err != nil {
		return e.failed(result, startedAt, err)
	}

	cacheKey := compileCacheKey(def.Language, code, policy)
	var artifact sandbox.CompiledArtifact
	cacheHit := false
	if cached, ok := e.cache.Get(cacheKey); ok {
		artifact = cached.(sandbox.CompiledArtifact)
		cacheHit = true
	} else {
		compiled, err := e.compile(def.Language, code)
		if err != nil {
			return e.failed(result, startedAt, err)
		}
		artifact = compiled
		e.cache.Put(cacheKey, artifact)
	}
	if cacheHit {
		artifact.CompilationTimeMs = 0
	}

	isolateType := policy.Isolate
	if isolateType == "" {
		isolateType = artifact.IsolateType
	}
	iso, err := e.isolateFor(isolateType, def.Language, workers)
	if err != nil {
		return e.failed(result, startedAt, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.TimeoutMs)
	defer cancel()

	inputBytes, _ := json.Marshal(input)

	runResult, runErr := iso.Run(runCtx, artifact, input, policy)
	completedAt := time.Now()
	durationMs := completedAt.Sub(startedAt).Milliseconds()

	outputBytes, _ := json.Marshal(runResult.Output)

	metrics := &faas.Metrics{
		Language:        def.Language,
		IsolateType:     isolateType,
		MemoryUsedBytes: runResult.MemoryUsedBytes,
		CPUTimeMs:       runResult.CPUTimeMs,
		Deterministic:   policy.Deterministic,
		CacheHit:        cacheHit,
		DurationMs:      durationMs,
		InputSizeBytes:  int64(len(inputBytes)),
		OutputSizeBytes: int64(len(outputBytes)),
	}
	if !cacheHit {
		metrics.CompilationTimeMs = &artifact.CompilationTimeMs
	}

	result.Metadata = faas.ResultMetadata{StartedAt: startedAt, CompletedAt: completedAt}
	result.Metrics = metrics

	if runCtx.Err() == context.DeadlineExceeded {
		result.Status = faas.StatusTimeout
		result.Error = &faas.ResultError{Name: "TimeoutError", Message: fmt.Sprintf("execution exceeded timeout of %s", cfg.TimeoutMs)}
		return result
	}
	if ctx.Err() == context.Canceled {
		result.Status = faas.StatusCancelled
		result.Error = &faas.ResultError{Name: "CancelledError", Message: "execution cancelled"}
		return result
	}
	if runErr != nil {
		result.Status = faas.StatusFailed
		result.Error = mapExecutionError(runErr)
		if runResult.HasPartial {
			result.Output = runResult.PartialOutput
		}
		return result
	}

	result.Status = faas.StatusCompleted
	result.Output = runResult.Output
	return result
}

func (e *Executor) failed(result faas.Result, startedAt time.Time, err error) faas.Result {
	result.Status = faas.StatusFailed
	result.Metadata = faas.ResultMetadata{StartedAt: startedAt, CompletedAt: time.Now()}
	result.Error = mapExecutionError(err)
	return result
}

// resolveSource implements step 2: resolve a SourceRef into code bytes.
func (e *Executor) resolveSource(ctx context.Context, def faas.CodeFunctionDef) ([]byte, error) {
	switch def.Source.Kind {
	case faas.SourceInline:
		return []byte(def.Source.Inline), nil
	case faas.SourceObjectKey:
		code, err := e.store.GetByObjectKey(ctx, def.Source.ObjectKey)
		if err != nil {
			return nil, ferrors.Transport(err, "fetch object key %q", def.Source.ObjectKey)
		}
		if code == nil {
			return nil, ferrors.NotFound("object key %q not found", def.Source.ObjectKey)
		}
		return code, nil
	case faas.SourceRegistry:
		version := def.Source.RegistryVersion
		if version == "" {
			version = "latest"
		}
		fallback, err := e.store.ListVersionsSorted(def.Source.RegistryFunctionID)
		if err != nil {
			return nil, ferrors.Transport(err, "list registry versions")
		}
		res, err := e.store.GetWithFallback(def.Source.RegistryFunctionID, version, fallback)
		if err != nil {
			return nil, ferrors.NotFound("registry source not found for %s", def.Source.RegistryFunctionID)
		}
		return res.Code, nil
	case faas.SourceHTTPSURL:
		if ok, reason := urlguard.Validate(def.Source.URL); !ok {
			return nil, ferrors.Validation("blocked source url: %s", reason)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, def.Source.URL, nil)
		if err != nil {
			return nil, ferrors.Transport(err, "build source fetch request")
		}
		resp, err := e.httpClient.Do(req)
		if err != nil {
			return nil, ferrors.Transport(err, "fetch source")
		}
		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	default:
		return nil, ferrors.Validation("unknown source kind %q", def.Source.Kind)
	}
}

// compile implements step 4.
func (e *Executor) compile(lang faas.Language, code []byte) (sandbox.CompiledArtifact, error) {
	start := time.Now()
	switch lang {
	case faas.LangTypeScript:
		js := tsstrip.Strip(string(code))
		return sandbox.CompiledArtifact{
			Language: lang, IsolateType: faas.IsolateV8,
			PreparedSource: js, CompilationTimeMs: time.Since(start).Milliseconds(),
		}, nil
	case faas.LangJavaScript:
		return sandbox.CompiledArtifact{
			Language: lang, IsolateType: faas.IsolateV8,
			PreparedSource: string(code), CompilationTimeMs: time.Since(start).Milliseconds(),
		}, nil
	case faas.LangRust, faas.LangGo, faas.LangAssemblyScript, faas.LangZig:
		if len(code) < 4 || string(code[0:4]) != "\x00asm" {
			return sandbox.CompiledArtifact{}, ferrors.Validation("invalid wasm module header for language %q", lang)
		}
		return sandbox.CompiledArtifact{
			Language: lang, IsolateType: faas.IsolateWASM,
			WASMBytes: code, CompilationTimeMs: time.Since(start).Milliseconds(),
		}, nil
	case faas.LangPython, faas.LangCSharp:
		return sandbox.CompiledArtifact{
			Language: lang, IsolateType: faas.IsolateWorkerLoader,
			PreparedSource: string(code), CompilationTimeMs: time.Since(start).Milliseconds(),
		}, nil
	default:
		return sandbox.CompiledArtifact{}, ferrors.Validation("unsupported language %q", lang)
	}
}

func (e *Executor) isolateFor(isolateType faas.IsolateType, lang faas.Language, workers WorkerLoaderBaseURL) (sandbox.Isolate, error) {
	switch isolateType {
	case faas.IsolateV8:
		return e.v8, nil
	case faas.IsolateWASM:
		return e.wasm, nil
	case faas.IsolateWorkerLoader:
		baseURL := workers.Python
		if lang == faas.LangCSharp {
			baseURL = workers.CSharp
		}
		if baseURL == "" {
			return nil, ferrors.Validation("no worker-loader sidecar configured for language %q", lang)
		}
		return e.workerFn(baseURL), nil
	default:
		return nil, ferrors.Validation("unsupported isolate type %q", isolateType)
	}
}

// compileCacheKey implements step 3's lookup key: (language, sha256(code),
// sandbox policy).
func compileCacheKey(lang faas.Language, code []byte, policy faas.SandboxPolicy) string {
	sum := sha256.Sum256(code)
	policyJSON, _ := json.Marshal(policy)
	policySum := sha256.Sum256(policyJSON)
	return fmt.Sprintf("%s:%s:%s", lang, hex.EncodeToString(sum[:]), hex.EncodeToString(policySum[:8]))
}

// mapExecutionError converts an internal error into the wire ResultError
// shape. Structured *ferrors.Error values surface their Kind as the error
// name; anything matching the memory/cpu-limit pattern is reported as a
// LimitError even if it arrived as a plain error from an isolate.
func mapExecutionError(err error) *faas.ResultError {
	if e, ok := ferrors.AsStructured(err); ok {
		return &faas.ResultError{
			Name:      string(e.Kind),
			Message:   e.Message,
			Code:      e.Code,
			Stack:     e.Stack,
			Retryable: e.Retryable,
		}
	}
	var thrown sandbox.ThrownError
	if errors.As(err, &thrown) {
		return &faas.ResultError{
			Name:      thrown.Name,
			Message:   thrown.Message,
			Code:      thrown.Code,
			Stack:     thrown.Stack,
			Retryable: thrown.Retryable,
		}
	}
	msg := err.Error()
	name := "Error"
	if memoryOrCPULimitRe.MatchString(msg) {
		name = "LimitError"
	}
	return &faas.ResultError{Name: name, Message: msg}
}

func randomHex(n int) string {
	b := make([]byte, n/2)
	if _, err := rand.Read(b); err != nil {
		return "00000000000000000000"
	}
	return hex.EncodeToString(b)
}
