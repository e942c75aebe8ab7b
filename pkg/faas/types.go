// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package faas holds the domain types shared across the invocation plane:
// function identity, code and agentic function definitions, tool
// definitions, and the result/metrics shapes returned by the executors.
package faas

import "time"

// Kind distinguishes the two function flavors.
type Kind string

const (
	KindCode    Kind = "code"
	KindAgentic Kind = "agentic"
)

// Language tags a code function's source language.
type Language string

const (
	LangTypeScript     Language = "typescript"
	LangJavaScript     Language = "javascript"
	LangRust           Language = "rust"
	LangGo             Language = "go"
	LangPython         Language = "python"
	LangCSharp         Language = "csharp"
	LangZig            Language = "zig"
	LangAssemblyScript Language = "assemblyscript"
)

// IsolateType names the sandbox runtime used to run a compiled artifact.
type IsolateType string

const (
	IsolateV8           IsolateType = "v8"
	IsolateWASM         IsolateType = "wasm"
	IsolateWorkerLoader IsolateType = "worker-loader"
)

// SourceKind distinguishes the four ways a code function's source may be
// referenced.
type SourceKind string

const (
	SourceInline   SourceKind = "inline"
	SourceObjectKey SourceKind = "object_key"
	SourceHTTPSURL  SourceKind = "https_url"
	SourceRegistry  SourceKind = "registry"
)

// SourceRef is a tagged union over the four source reference kinds.
type SourceRef struct {
	Kind SourceKind

	Inline string // SourceInline

	ObjectKey string // SourceObjectKey

	URL string // SourceHTTPSURL

	RegistryFunctionID string // SourceRegistry
	RegistryVersion    string // SourceRegistry, optional ("" means latest)
}

// SandboxPolicy configures the execution sandbox for a code function.
type SandboxPolicy struct {
	Deterministic    bool
	MemoryLimitBytes int64
	CPULimitMs       int64
	AllowedGlobals   []string
	NetworkEnabled   bool
	NetworkAllowlist []string
	Isolate          IsolateType // explicit override; "" means derive from language
}

// InvocationConfig overlays the definition's default config at invoke time.
type InvocationConfig struct {
	TimeoutMs *int64
	Model     *string
}

// CodeFunctionDef is the C7-facing definition of a code function.
type CodeFunctionDef struct {
	ID            string
	Version       string
	Language      Language
	Source        SourceRef
	SandboxPolicy *SandboxPolicy
	DefaultConfig *InvocationConfig
	TimeoutMs     int64 // 0 means use system default
}

// ToolImplKind is the tagged-union discriminant for a tool implementation.
type ToolImplKind string

const (
	ToolImplBuiltin  ToolImplKind = "builtin"
	ToolImplInline   ToolImplKind = "inline"
	ToolImplFunction ToolImplKind = "function"
	ToolImplAPI      ToolImplKind = "api"
)

// ToolImpl is a tagged union over the four tool implementation variants.
type ToolImpl struct {
	Kind ToolImplKind

	BuiltinName string // ToolImplBuiltin

	InlineHandler string // ToolImplInline: handler source code

	FunctionID string // ToolImplFunction

	APIEndpoint string            // ToolImplAPI
	APIHeaders  map[string]string // ToolImplAPI, optional
}

// ToolDefinition describes one tool an agentic function may call.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any // JSON-Schema document
	Impl        ToolImpl

	// RequiresApproval, when true, gates every call to this tool behind
	// the approval rendezvous described in spec §4.9 step 7c.
	RequiresApproval bool
}

// AgenticFunctionDef is the C9-facing definition of an agentic function.
type AgenticFunctionDef struct {
	ID           string
	Version      string
	SystemPrompt string
	Goal         string
	Tools        []ToolDefinition

	EnableMemory    bool
	EnableReasoning bool

	MaxIterations            int // default 10
	MaxToolCallsPerIteration int // default 5
	TimeoutMs                int64 // default 5 minutes

	Model        string
	OutputSchema map[string]any // optional

	InputTokenPricePer1k  *float64
	OutputTokenPricePer1k *float64
}

// Status is the terminal state of an invocation.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// ResultError is the JSON-serializable form of a structured error attached
// to a Result.
type ResultError struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Stack     string `json:"stack,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Metrics collects the C7 per-invocation measurements.
type Metrics struct {
	Language          Language    `json:"language"`
	IsolateType       IsolateType `json:"isolateType"`
	MemoryUsedBytes   int64       `json:"memoryUsedBytes"`
	CPUTimeMs         int64       `json:"cpuTimeMs"`
	Deterministic     bool        `json:"deterministic"`
	CompilationTimeMs *int64      `json:"compilationTimeMs,omitempty"`
	CacheHit          bool        `json:"cacheHit"`

	DurationMs      int64 `json:"durationMs"`
	InputSizeBytes  int64 `json:"inputSizeBytes"`
	OutputSizeBytes int64 `json:"outputSizeBytes"`
	RetryCount      int   `json:"retryCount"`
}

// ResultMetadata carries the wall-clock bounds of an invocation.
type ResultMetadata struct {
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// ToolCallApproval records the outcome of an approval-gated tool call.
type ToolCallApproval struct {
	Required   bool    `json:"required"`
	Granted    bool    `json:"granted"`
	ApprovedBy *string `json:"approvedBy,omitempty"`
}

// ToolCallRecord is one entry of an iteration's toolCalls list.
type ToolCallRecord struct {
	Tool       string            `json:"tool"`
	Input      any               `json:"input"`
	Output     any               `json:"output,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Approval   *ToolCallApproval `json:"approval,omitempty"`
	DurationMs int64             `json:"durationMs"`
}

// IterationRecord is one entry of the agentic execution trace.
type IterationRecord struct {
	Iteration        int              `json:"iteration"`
	Timestamp        time.Time        `json:"timestamp"`
	Reasoning        string           `json:"reasoning,omitempty"`
	ToolCalls        []ToolCallRecord `json:"toolCalls"`
	PromptTokens     int              `json:"promptTokens"`
	CompletionTokens int              `json:"completionTokens"`
	Tokens           int              `json:"tokens"`
	DurationMs       int64            `json:"durationMs"`
}

// AgenticExecution is the §4.9 result extension attached to agentic
// invocations.
type AgenticExecution struct {
	Iterations       int               `json:"iterations"`
	Trace            []IterationRecord `json:"trace"`
	ToolsUsed        []string          `json:"toolsUsed"`
	GoalAchieved     bool              `json:"goalAchieved"`
	TotalTokens      int               `json:"totalTokens"`
	ReasoningSummary string            `json:"reasoningSummary,omitempty"`
	Model            string            `json:"model"`
	CostEstimate     *float64          `json:"costEstimate,omitempty"`
}

// Result is the shape returned by both C7 and C9.
type Result struct {
	FunctionID      string          `json:"functionId"`
	FunctionVersion string          `json:"functionVersion"`
	ExecutionID     string          `json:"executionId"`
	Metadata        ResultMetadata  `json:"metadata"`
	Status          Status          `json:"status"`
	Output          any             `json:"output,omitempty"`
	Error           *ResultError    `json:"error,omitempty"`
	Metrics         *Metrics        `json:"metrics,omitempty"`
	Agentic         *AgenticExecution `json:"agenticExecution,omitempty"`
}
