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
	"strings"
	"time"

	v8 "rogchap.com/v8go"

	"github.com/AleutianAI/faas-core/internal/urlguard"
	"github.com/AleutianAI/faas-core/pkg/faas"
)

// isolateGracePeriod bounds how long Run waits for a terminated isolate's
// goroutine to exit before it stops waiting and leaks it.
const isolateGracePeriod = 5 * time.Second

// NetworkFetcher is the outbound-call hook a V8Isolate holds; it must apply
// C1 (urlguard) before making any outbound call. Run does not call it: the
// fetch() global that injectGlobals installs returns undefined for every
// call, allowlisted host or not.
type NetworkFetcher func(ctx context.Context, url string) (status int, body string, err error)

// V8Isolate runs javascript/typescript artifacts. One V8Isolate value is
// shared by the executor, but every Run creates a fresh v8.Isolate and
// disposes it afterwards (isolate-per-invocation, not pooled), so global
// state never leaks across tenants.
type V8Isolate struct {
	fetch NetworkFetcher
}

// NewV8Isolate constructs a V8Isolate. fetch may be nil, in which case a
// default fetcher that rejects every URL is stored. Either way, network
// calls from inside the sandbox never reach the fetcher.
func NewV8Isolate(fetch NetworkFetcher) *V8Isolate {
	if fetch == nil {
		fetch = defaultFetcher
	}
	return &V8Isolate{fetch: fetch}
}

func defaultFetcher(ctx context.Context, rawURL string) (int, string, error) {
	if ok, reason := urlguard.Validate(rawURL); !ok {
		return 0, "", fmt.Errorf("blocked outbound url: %s", reason)
	}
	return 0, "", fmt.Errorf("network access not configured")
}

func (v *V8Isolate) Dispose() {}

// Run executes the artifact's prepared JS source, invoking its top-level
// `handler` with input, inside a fresh isolate. Of the policy it applies
// CPULimitMs (as a deadline), AllowedGlobals (to the console and fetch
// names it injects) and NetworkEnabled (whether fetch is injected);
// MemoryLimitBytes and Deterministic are not applied, and a default export
// is not looked up.
func (v *V8Isolate) Run(ctx context.Context, artifact CompiledArtifact, input any, policy faas.SandboxPolicy) (RunResult, error) {
	// v8go exposes no per-isolate CPU-time accounting, so policy.CPULimitMs
	// is enforced as a wall-clock deadline layered under the caller's own
	// timeout — the same TerminateExecution path §4.7 step 6 uses for the
	// overall timeout, just on a tighter budget.
	runCtx := ctx
	if policy.CPULimitMs > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(policy.CPULimitMs)*time.Millisecond)
		defer cancel()
	}

	iso := v8.NewIsolate()
	defer iso.Dispose()

	global := v8.NewObjectTemplate(iso)
	if err := v.injectGlobals(iso, global, policy); err != nil {
		return RunResult{}, err
	}

	v8ctx := v8.NewContext(iso, global)
	defer v8ctx.Close()

	if _, err := v8ctx.RunScript(artifact.PreparedSource, "function.js"); err != nil {
		return RunResult{}, classifyJSError(err)
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return RunResult{}, fmt.Errorf("marshal input: %w", err)
	}

	script := fmt.Sprintf(handlerWrapperTmpl, escapeJSString(string(inputJSON)))

	type result struct {
		val string
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		val, err := v8ctx.RunScript(script, "function.js")
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		resultCh <- result{val: val.String()}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return RunResult{}, classifyJSError(r.err)
		}
		hs := iso.GetHeapStatistics()
		runResult := RunResult{MemoryUsedBytes: int64(hs.UsedHeapSize)}
		var envelope jsEnvelope
		if err := json.Unmarshal([]byte(r.val), &envelope); err != nil {
			runResult.Output = r.val
			return runResult, nil
		}
		if envelope.OK {
			runResult.Output = envelope.Value
			return runResult, nil
		}
		if envelope.HasPartial {
			runResult.HasPartial = true
			var partial any
			if err := json.Unmarshal(envelope.PartialResult, &partial); err == nil {
				runResult.PartialOutput = partial
			}
		}
		return runResult, ThrownError{
			Name: envelope.Name, Message: envelope.Message,
			Stack: envelope.Stack, Code: envelope.Code, Retryable: envelope.Retryable,
		}

	case <-runCtx.Done():
		iso.TerminateExecution()
		select {
		case <-resultCh:
		case <-time.After(isolateGracePeriod):
		}
		if ctx.Err() == nil && runCtx.Err() == context.DeadlineExceeded {
			return RunResult{}, fmt.Errorf("cpu time limit of %dms exceeded", policy.CPULimitMs)
		}
		return RunResult{}, ctx.Err()
	}
}

// injectGlobals builds the sandbox's visible surface: console.log always
// present, fetch present only when networkEnabled, and every other name
// restricted to policy.AllowedGlobals when that list is non-empty.
func (v *V8Isolate) injectGlobals(iso *v8.Isolate, global *v8.ObjectTemplate, policy faas.SandboxPolicy) error {
	console := v8.NewObjectTemplate(iso)
	logFn := v8.NewFunctionTemplate(iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		return nil
	})
	if err := console.Set("log", logFn); err != nil {
		return err
	}
	if allowedGlobal("console", policy) {
		if err := global.Set("console", console); err != nil {
			return err
		}
	}

	if policy.NetworkEnabled && allowedGlobal("fetch", policy) {
		fetchFn := v8.NewFunctionTemplate(iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
			if len(info.Args()) == 0 {
				return nil
			}
			url := info.Args()[0].String()
			if !hostAllowed(url, policy.NetworkAllowlist) {
				return nil
			}
			return nil
		})
		if err := global.Set("fetch", fetchFn); err != nil {
			return err
		}
	}

	return nil
}

func allowedGlobal(name string, policy faas.SandboxPolicy) bool {
	if len(policy.AllowedGlobals) == 0 {
		return true
	}
	for _, g := range policy.AllowedGlobals {
		if g == name {
			return true
		}
	}
	return false
}

// hostAllowed reports whether rawURL's host exactly matches an entry in
// allowlist, per spec §4.7 step 6's exact-match network policy.
func hostAllowed(rawURL string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return false
	}
	host := extractHost(rawURL)
	for _, h := range allowlist {
		if h == host {
			return true
		}
	}
	return false
}

func extractHost(rawURL string) string {
	s := strings.TrimPrefix(rawURL, "https://")
	s = strings.TrimPrefix(s, "http://")
	if idx := strings.IndexAny(s, "/:"); idx >= 0 {
		return s[:idx]
	}
	return s
}

// jsEnvelope is the JSON shape the handler wrapper script always returns,
// whether the handler succeeded or threw.
type jsEnvelope struct {
	OK            bool            `json:"ok"`
	Value         any             `json:"value,omitempty"`
	Name          string          `json:"name,omitempty"`
	Message       string          `json:"message,omitempty"`
	Stack         string          `json:"stack,omitempty"`
	Code          string          `json:"code,omitempty"`
	Retryable     bool            `json:"retryable,omitempty"`
	HasPartial    bool            `json:"hasPartial,omitempty"`
	PartialResult json.RawMessage `json:"partialResult,omitempty"`
}

// ThrownError carries the structured shape of a value thrown by user
// code, preserved through to C7's error mapping (see executor.mapExecutionError).
type ThrownError struct {
	Name, Message, Stack, Code string
	Retryable                  bool
}

func (e ThrownError) Error() string { return e.Message }

// handlerWrapperTmpl invokes handler(input) inside a try/catch so thrown
// Error instances, thrown plain objects (including partialResult-annotated
// ones), and thrown primitives all come back as one structured JSON
// envelope instead of propagating as an opaque v8go JSError. safeStringify
// guards against circular-referenced thrown objects.
const handlerWrapperTmpl = `(function(){
  function safeStringify(v) {
    var seen = [];
    try {
      return JSON.stringify(v, function(k, val) {
        if (val && typeof val === 'object') {
          if (seen.indexOf(val) !== -1) { return '[Circular]'; }
          seen.push(val);
        }
        return val;
      });
    } catch (e) {
      return JSON.stringify(String(v));
    }
  }
  try {
    var out = handler(JSON.parse(%s));
    return safeStringify({ok: true, value: out});
  } catch (e) {
    var env = {ok: false, name: 'Error'};
    if (e instanceof Error) {
      env.name = e.name;
      env.message = e.message;
      env.stack = e.stack || '';
    } else if (e && typeof e === 'object') {
      env.message = ('message' in e) ? String(e.message) : safeStringify(e);
      if ('code' in e) env.code = String(e.code);
      if ('retryable' in e) env.retryable = !!e.retryable;
      if ('partialResult' in e) {
        env.hasPartial = true;
        env.partialResult = e.partialResult;
      }
    } else {
      env.message = String(e);
    }
    return safeStringify(env);
  }
})()`

func classifyJSError(err error) error {
	if jsErr, ok := err.(*v8.JSError); ok {
		msg := jsErr.Message
		if jsErr.StackTrace != "" {
			msg += "\n" + jsErr.StackTrace
		}
		return fmt.Errorf("%s", msg)
	}
	return err
}

// escapeJSString wraps s (already-marshaled JSON text) in a JS single-quoted
// string literal. s only ever needs a single layer of JS-level escaping here:
// json.Marshal has already turned every control character into its own
// backslash-prefixed escape sequence (e.g. a literal newline becomes the two
// characters '\' 'n'), so the individual '\' runes walking that output are
// themselves the only bytes this loop must re-escape for JS to reproduce
// them verbatim; doubling them (as if re-escaping JSON semantics rather than
// just the JS string delimiter) would corrupt the round trip. The lone
// addition JSON doesn't need is escaping '\'' itself, since JSON leaves a
// literal apostrophe unescaped but JS would otherwise read it as the string
// terminator.
func escapeJSString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
