// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleutianAI/faas-core/internal/agentic"
	"github.com/AleutianAI/faas-core/internal/executor"
	"github.com/AleutianAI/faas-core/pkg/faas"
)

// validate runs the `validate:"..."` struct tags on a DTO, catching
// constraints Gin's own `binding:"..."` tags don't express (ranges,
// nested-struct validation, cross-field rules). One instance is reused
// across requests per validator's own documented concurrency guarantee.
var validate = validator.New()

// InvokeRequest is the invoke endpoint's request DTO.
type InvokeRequest struct {
	Input  json.RawMessage      `json:"input" binding:"required" validate:"required"`
	Config *InvocationConfigDTO `json:"config,omitempty" validate:"omitempty"`
}

// InvocationConfigDTO overlays a CodeFunctionDef/AgenticFunctionDef's
// default config for this one invocation, per §3's InvocationConfig.
type InvocationConfigDTO struct {
	TimeoutMs *int64  `json:"timeoutMs,omitempty" validate:"omitempty,gt=0"`
	Model     *string `json:"model,omitempty" validate:"omitempty,min=1"`
}

func (d *InvocationConfigDTO) toDomain() *faas.InvocationConfig {
	if d == nil {
		return nil
	}
	return &faas.InvocationConfig{TimeoutMs: d.TimeoutMs, Model: d.Model}
}

// Server holds the wired C7/C9 executors and the function registry behind
// the HTTP surface.
type Server struct {
	registry *Registry
	code     *executor.Executor
	agentic  *agentic.Executor
	workers  executor.WorkerLoaderBaseURL
}

func NewServer(registry *Registry, code *executor.Executor, ag *agentic.Executor, workers executor.WorkerLoaderBaseURL) *Server {
	return &Server{registry: registry, code: code, agentic: ag, workers: workers}
}

func (s *Server) handleInvoke(c *gin.Context) {
	route := ResolveRoute(c.Request.URL.Path, c.GetHeader("X-Function-Id"))
	if route.FunctionID == "" {
		errorResponse(c, "missing function id", 400)
		return
	}

	entry, ok := s.registry.Lookup(route.FunctionID)
	if !ok {
		errorResponse(c, "function not found", 404)
		return
	}

	var req InvokeRequest
	if err := bindAndValidate(c, &req); err != nil {
		errorResponse(c, "invalid request body: "+err.Error(), 400)
		return
	}

	var input any
	if err := json.Unmarshal(req.Input, &input); err != nil {
		errorResponse(c, "invalid input: "+err.Error(), 400)
		return
	}

	switch entry.Kind {
	case faas.KindCode:
		result := s.code.Execute(c.Request.Context(), *entry.Code, input, req.Config.toDomain(), s.workers)
		jsonResponse(c, result, 200)
	case faas.KindAgentic:
		goal := string(req.Input)
		if str, ok := input.(string); ok {
			goal = str
		}
		execCtx := agentic.ExecutionContext{ExecutionID: uuid.NewString()}
		result := s.agentic.Execute(c.Request.Context(), *entry.Agentic, goal, execCtx)
		jsonResponse(c, result, 200)
	default:
		errorResponse(c, "unknown function kind", 500)
	}
}

// InfoResponse is the info endpoint's response shape: enough to identify
// and describe a registered function without exposing its source.
type InfoResponse struct {
	FunctionID string   `json:"functionId"`
	Kind       faas.Kind `json:"kind"`
	Version    string   `json:"version,omitempty"`
	Language   string   `json:"language,omitempty"`
	Tools      []string `json:"tools,omitempty"`
}

func (s *Server) handleInfo(c *gin.Context) {
	route := ResolveRoute(c.Request.URL.Path, c.GetHeader("X-Function-Id"))
	if route.FunctionID == "" {
		errorResponse(c, "missing function id", 400)
		return
	}

	entry, ok := s.registry.Lookup(route.FunctionID)
	if !ok {
		errorResponse(c, "function not found", 404)
		return
	}

	info := InfoResponse{FunctionID: route.FunctionID, Kind: entry.Kind}
	switch entry.Kind {
	case faas.KindCode:
		info.Version = entry.Code.Version
		info.Language = string(entry.Code.Language)
	case faas.KindAgentic:
		info.Version = entry.Agentic.Version
		for _, t := range entry.Agentic.Tools {
			info.Tools = append(info.Tools, t.Name)
		}
	}
	jsonResponse(c, info, 200)
}

// ApproveToolCallRequest is the request DTO for the out-of-band approval
// rendezvous described in spec §4.9 step 7c.
type ApproveToolCallRequest struct {
	ExecutionID string  `json:"executionId" binding:"required" validate:"required,uuid4"`
	ToolName    string  `json:"toolName" binding:"required" validate:"required"`
	Granted     bool    `json:"granted"`
	ApprovedBy  *string `json:"approvedBy,omitempty" validate:"omitempty,min=1"`
}

func (s *Server) handleApproveToolCall(c *gin.Context) {
	var req ApproveToolCallRequest
	if err := bindAndValidate(c, &req); err != nil {
		errorResponse(c, "invalid request body: "+err.Error(), 400)
		return
	}
	s.agentic.ApproveToolCall(req.ExecutionID, req.ToolName, req.Granted, req.ApprovedBy)
	jsonResponse(c, gin.H{"ok": true}, 200)
}

// bindAndValidate runs Gin's own structural/required-field binding first
// (cheap, and covers malformed JSON) and then validator/v10's `validate`
// tags for the range/format constraints binding tags can't express.
func bindAndValidate(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return err
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
