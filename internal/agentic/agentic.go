// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agentic implements C9: the bounded think/act/observe loop that
// drives an AI client and a registry of tool handlers toward a goal.
package agentic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/AleutianAI/faas-core/internal/aiclient"
	pmetrics "github.com/AleutianAI/faas-core/internal/metrics"
	"github.com/AleutianAI/faas-core/pkg/faas"
)

const (
	defaultMaxIterations            = 10
	defaultMaxToolCallsPerIteration = 5
	defaultTimeout                  = 5 * time.Minute
)

// ToolHandler implements one tool's side effect. input is the already
// JSON-Schema-validated argument object.
type ToolHandler func(ctx context.Context, input any, def faas.ToolDefinition, execCtx ExecutionContext) (any, error)

// ExecutionContext carries the per-invocation knobs §4.9's Setup section
// describes: an optional abort signal, the execution id tool calls are
// approved against, and an optional timeout override.
type ExecutionContext struct {
	ExecutionID     string
	Abort           <-chan struct{}
	TimeoutOverride *time.Duration
	ApprovalTimeout time.Duration
	TokenBudget     *int
}

type toolEntry struct {
	def     faas.ToolDefinition
	handler ToolHandler
	schema  *jsonschema.Resolved
}

// Executor is C9. One Executor may run many concurrent invocations; tool
// registration is expected to happen once at startup.
type Executor struct {
	ai        aiclient.Client
	tools     map[string]*toolEntry
	approvals *ApprovalRegistry
}

func New(ai aiclient.Client) *Executor {
	return &Executor{
		ai:        ai,
		tools:     make(map[string]*toolEntry),
		approvals: NewApprovalRegistry(),
	}
}

// RegisterTool makes a tool visible to the model. A tool whose handler is
// never registered is never shown to the AI on any call, per the Setup
// section's hidden-unless-handled rule.
func (e *Executor) RegisterTool(def faas.ToolDefinition, handler ToolHandler) error {
	resolved, err := compileSchema(def.InputSchema)
	if err != nil {
		return fmt.Errorf("compile schema for tool %q: %w", def.Name, err)
	}
	e.tools[def.Name] = &toolEntry{def: def, handler: handler, schema: resolved}
	return nil
}

// ApproveToolCall resolves a pending approval rendezvous for
// (executionId, toolName). Safe to call from any goroutine.
func (e *Executor) ApproveToolCall(executionID, toolName string, granted bool, approvedBy *string) {
	e.approvals.Resolve(executionID, toolName, granted, approvedBy)
}

// iterationState threads the running conversation and token usage across
// loop iterations. messages always accumulates the full transcript so
// executeIteration's bookkeeping is simple; requestMessages below decides
// how much of it the AI actually sees, per enableMemory.
type iterationState struct {
	messages     []aiclient.Message
	lastTurnFrom int // index into messages where the most recent turn's new entries start
	totalTokens  int
	trace        []faas.IterationRecord
	toolsUsed    map[string]struct{}
}

// requestMessages implements step 2's "accumulated messages if
// enableMemory": with memory enabled the AI sees the full running
// transcript; disabled, it sees only the system/goal framing plus the
// immediately preceding turn's new messages, so earlier iterations are not
// remembered.
func requestMessages(def faas.AgenticFunctionDef, state *iterationState) []aiclient.Message {
	if def.EnableMemory {
		return state.messages
	}
	out := append([]aiclient.Message{}, state.messages[:2]...) // system prompt, initial goal/input
	if state.lastTurnFrom >= 2 {
		out = append(out, state.messages[state.lastTurnFrom:]...)
	}
	return out
}

// Execute implements the top-level §4.9 contract.
func (e *Executor) Execute(ctx context.Context, def faas.AgenticFunctionDef, input string, execCtx ExecutionContext) (result faas.Result) {
	startedAt := time.Now()
	executionID := execCtx.ExecutionID
	if executionID == "" {
		executionID = fmt.Sprintf("exec-%d", startedAt.UnixNano())
	}

	defer func() {
		pmetrics.AgenticDuration.WithLabelValues(string(result.Status)).Observe(time.Since(startedAt).Seconds())
	}()

	result = faas.Result{FunctionID: def.ID, FunctionVersion: def.Version, ExecutionID: executionID}

	timeout := defaultTimeout
	if def.TimeoutMs > 0 {
		timeout = time.Duration(def.TimeoutMs) * time.Millisecond
	}
	if execCtx.TimeoutOverride != nil {
		timeout = *execCtx.TimeoutOverride
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxIterations := def.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	maxToolCalls := def.MaxToolCallsPerIteration
	if maxToolCalls <= 0 {
		maxToolCalls = defaultMaxToolCallsPerIteration
	}

	state := &iterationState{
		messages:  []aiclient.Message{{Role: aiclient.RoleSystem, Content: buildSystemPrompt(def)}, {Role: aiclient.RoleUser, Content: input}},
		toolsUsed: make(map[string]struct{}),
	}

	var lastResponse aiclient.Response
	goalAchieved := false

	for i := 1; i <= maxIterations; i++ {
		select {
		case <-execCtx.Abort:
			return e.cancelled(result, startedAt)
		default:
		}
		if runCtx.Err() != nil {
			return e.timedOut(result, startedAt, timeout)
		}

		if execCtx.TokenBudget != nil && state.totalTokens >= *execCtx.TokenBudget {
			return e.failed(result, startedAt, &faas.ResultError{Name: "LimitError", Message: fmt.Sprintf("token budget of %d exhausted before iteration %d", *execCtx.TokenBudget, i)})
		}

		resp, record, err := e.executeIteration(runCtx, def, state, i, execCtx)
		if err != nil {
			if runCtx.Err() == context.DeadlineExceeded {
				return e.timedOut(result, startedAt, timeout)
			}
			if runCtx.Err() == context.Canceled {
				return e.cancelled(result, startedAt)
			}
			return e.failed(result, startedAt, &faas.ResultError{Name: "TransportError", Message: err.Error()})
		}
		lastResponse = resp
		state.trace = append(state.trace, record)
		state.totalTokens += record.Tokens

		if isEndTurn(resp.FinishReason) {
			goalAchieved = true
			break
		}

		state.lastTurnFrom = len(state.messages)
		state.messages = append(state.messages, assistantMessageFor(resp, maxToolCalls))
		state.messages = append(state.messages, toolResultMessages(record.ToolCalls)...)

		if i == maxIterations {
			goalAchieved = false
		}
	}

	output := finalOutput(lastResponse.Content)
	completedAt := time.Now()

	agentic := &faas.AgenticExecution{
		Iterations:   len(state.trace),
		Trace:        state.trace,
		ToolsUsed:    toolsUsedList(state.toolsUsed),
		GoalAchieved: goalAchieved,
		TotalTokens:  state.totalTokens,
		Model:        def.Model,
	}
	if def.EnableReasoning {
		agentic.ReasoningSummary = reasoningSummary(state.trace)
	}
	if def.InputTokenPricePer1k != nil && def.OutputTokenPricePer1k != nil {
		cost := costEstimate(state.trace, *def.InputTokenPricePer1k, *def.OutputTokenPricePer1k)
		agentic.CostEstimate = &cost
	}

	result.Status = faas.StatusCompleted
	result.Output = output
	result.Metadata = faas.ResultMetadata{StartedAt: startedAt, CompletedAt: completedAt}
	result.Agentic = agentic
	return result
}

func (e *Executor) cancelled(result faas.Result, startedAt time.Time) faas.Result {
	result.Status = faas.StatusCancelled
	result.Metadata = faas.ResultMetadata{StartedAt: startedAt, CompletedAt: time.Now()}
	result.Error = &faas.ResultError{Name: "CancelledError", Message: "execution cancelled"}
	return result
}

func (e *Executor) timedOut(result faas.Result, startedAt time.Time, timeout time.Duration) faas.Result {
	result.Status = faas.StatusTimeout
	result.Metadata = faas.ResultMetadata{StartedAt: startedAt, CompletedAt: time.Now()}
	result.Error = &faas.ResultError{Name: "TimeoutError", Message: fmt.Sprintf("agentic execution exceeded timeout of %s", timeout)}
	return result
}

func (e *Executor) failed(result faas.Result, startedAt time.Time, resultErr *faas.ResultError) faas.Result {
	result.Status = faas.StatusFailed
	result.Metadata = faas.ResultMetadata{StartedAt: startedAt, CompletedAt: time.Now()}
	result.Error = resultErr
	return result
}

// executeIteration implements steps 2-8 of one loop pass. It is unexported,
// so it is not callable from outside this package.
func (e *Executor) executeIteration(ctx context.Context, def faas.AgenticFunctionDef, state *iterationState, iteration int, execCtx ExecutionContext) (aiclient.Response, faas.IterationRecord, error) {
	iterStart := time.Now()

	req := aiclient.Request{
		Model:    def.Model,
		Messages: requestMessages(def, state),
		Tools:    e.visibleTools(def.Tools),
	}

	resp, err := e.ai.Complete(ctx, req)
	if err != nil {
		return aiclient.Response{}, faas.IterationRecord{}, err
	}

	record := faas.IterationRecord{
		Iteration:        iteration,
		Timestamp:        iterStart,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Tokens:           resp.Usage.TotalTokens,
	}
	if def.EnableReasoning {
		record.Reasoning = resp.Content
	}

	if !isEndTurn(resp.FinishReason) {
		accepted := resp.ToolCalls
		maxToolCalls := def.MaxToolCallsPerIteration
		if maxToolCalls <= 0 {
			maxToolCalls = defaultMaxToolCallsPerIteration
		}
		if len(accepted) > maxToolCalls {
			slog.Warn("agentic: dropping tool calls beyond per-iteration cap", "requested", len(accepted), "cap", maxToolCalls)
			accepted = accepted[:maxToolCalls]
		}
		for _, tc := range accepted {
			callRecord := e.executeToolCall(ctx, tc, execCtx)
			record.ToolCalls = append(record.ToolCalls, callRecord)
			if callRecord.Success {
				state.toolsUsed[tc.Name] = struct{}{}
			}
		}
	}

	record.DurationMs = time.Since(iterStart).Milliseconds()
	return resp, record, nil
}

// executeToolCall implements step 7's sub-steps a-e for one accepted call.
func (e *Executor) executeToolCall(ctx context.Context, call aiclient.ToolCall, execCtx ExecutionContext) faas.ToolCallRecord {
	start := time.Now()
	record := faas.ToolCallRecord{Tool: call.Name}

	var input any
	if err := json.Unmarshal(call.Arguments, &input); err != nil {
		record.Success = false
		record.Error = fmt.Sprintf("validation error: malformed arguments: %v", err)
		record.DurationMs = time.Since(start).Milliseconds()
		return record
	}
	record.Input = input

	entry, ok := e.tools[call.Name]
	if !ok {
		record.Success = false
		record.Error = fmt.Sprintf("no handler registered for tool %q", call.Name)
		record.DurationMs = time.Since(start).Milliseconds()
		return record
	}

	if err := entry.schema.Validate(input); err != nil {
		record.Success = false
		record.Error = fmt.Sprintf("validation error: %v", err)
		record.DurationMs = time.Since(start).Milliseconds()
		return record
	}

	if entry.def.RequiresApproval {
		timeout := execCtx.ApprovalTimeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		granted, approvedBy := e.approvals.Wait(ctx, execCtx.ExecutionID, call.Name, timeout)
		record.Approval = &faas.ToolCallApproval{Required: true, Granted: granted, ApprovedBy: approvedBy}
		if !granted {
			record.Success = false
			record.Error = "tool call not approved"
			record.DurationMs = time.Since(start).Milliseconds()
			return record
		}
	}

	output, err := e.executeTool(ctx, entry, input, execCtx)
	record.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		record.Success = false
		record.Error = err.Error()
		return record
	}
	record.Success = true
	record.Output = output
	return record
}

// executeTool invokes one already-validated, already-approved tool
// handler. It is unexported, so it is not callable from outside this
// package.
func (e *Executor) executeTool(ctx context.Context, entry *toolEntry, input any, execCtx ExecutionContext) (any, error) {
	if entry.handler == nil {
		return nil, fmt.Errorf("no handler registered for tool %q", entry.def.Name)
	}
	return entry.handler(ctx, input, entry.def, execCtx)
}

func (e *Executor) visibleTools(defs []faas.ToolDefinition) []aiclient.ToolSpec {
	out := make([]aiclient.ToolSpec, 0, len(defs))
	for _, d := range defs {
		if _, ok := e.tools[d.Name]; !ok || e.tools[d.Name].handler == nil {
			continue
		}
		out = append(out, aiclient.ToolSpec{Name: d.Name, Description: d.Description, Parameters: d.InputSchema})
	}
	return out
}

func isEndTurn(finishReason string) bool {
	return finishReason == "end_turn" || finishReason == "stop"
}

func assistantMessageFor(resp aiclient.Response, maxToolCalls int) aiclient.Message {
	calls := resp.ToolCalls
	if len(calls) > maxToolCalls {
		calls = calls[:maxToolCalls]
	}
	return aiclient.Message{Role: aiclient.RoleAssistant, Content: resp.Content, ToolCalls: calls}
}

func toolResultMessages(calls []faas.ToolCallRecord) []aiclient.Message {
	out := make([]aiclient.Message, 0, len(calls))
	for _, c := range calls {
		content := c.Error
		if c.Success {
			b, _ := json.Marshal(c.Output)
			content = string(b)
		}
		out = append(out, aiclient.Message{Role: aiclient.RoleTool, Content: content})
	}
	return out
}

func toolsUsedList(used map[string]struct{}) []string {
	out := make([]string, 0, len(used))
	for name := range used {
		out = append(out, name)
	}
	return out
}

// finalOutput JSON-parses content when it round-trips cleanly, otherwise
// returns it as a raw string, per step 5's output rule.
func finalOutput(content string) any {
	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err == nil {
		reencoded, _ := json.Marshal(parsed)
		if string(reencoded) == strings.TrimSpace(content) {
			return parsed
		}
	}
	return content
}

func reasoningSummary(trace []faas.IterationRecord) string {
	var b strings.Builder
	for _, r := range trace {
		if r.Reasoning == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(r.Reasoning)
	}
	return b.String()
}

// costEstimate implements spec §4.9's formula exactly:
// sum(promptTokens)/1000*inPrice + sum(completionTokens)/1000*outPrice.
func costEstimate(trace []faas.IterationRecord, inPrice, outPrice float64) float64 {
	var promptTotal, completionTotal int
	for _, r := range trace {
		promptTotal += r.PromptTokens
		completionTotal += r.CompletionTokens
	}
	return float64(promptTotal)/1000*inPrice + float64(completionTotal)/1000*outPrice
}

func buildSystemPrompt(def faas.AgenticFunctionDef) string {
	var b strings.Builder
	b.WriteString(def.SystemPrompt)
	if def.Goal != "" {
		b.WriteString("\n\nGoal: ")
		b.WriteString(def.Goal)
	}
	return b.String()
}

func compileSchema(schema map[string]any) (*jsonschema.Resolved, error) {
	if schema == nil {
		schema = map[string]any{}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return s.Resolve(nil)
}
