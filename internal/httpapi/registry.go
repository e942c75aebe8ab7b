// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package httpapi

import (
	"sync"

	"github.com/AleutianAI/faas-core/pkg/faas"
)

// FunctionEntry is a registered function's definition, tagged by kind.
type FunctionEntry struct {
	Kind    faas.Kind
	Code    *faas.CodeFunctionDef
	Agentic *faas.AgenticFunctionDef
}

// Registry is an in-memory function definition store for the host entrypoint.
// Function definition persistence (as opposed to function *code*, which
// lives in C2) is a host concern the spec leaves unaddressed; this registry
// is the minimal concrete form needed to exercise C7/C9 over HTTP.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]FunctionEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]FunctionEntry)}
}

func (r *Registry) RegisterCode(def faas.CodeFunctionDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[def.ID] = FunctionEntry{Kind: faas.KindCode, Code: &def}
}

func (r *Registry) RegisterAgentic(def faas.AgenticFunctionDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[def.ID] = FunctionEntry{Kind: faas.KindAgentic, Agentic: &def}
}

func (r *Registry) Lookup(fid string) (FunctionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[fid]
	return e, ok
}
