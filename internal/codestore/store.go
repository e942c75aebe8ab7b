// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package codestore implements C2: versioned code storage with a
// fast key-value surface for code text and a bytes-object surface for
// source maps and binary (WASM) artifacts, plus fallback-chain reads.
package codestore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/faas-core/pkg/ferrors"
	"github.com/AleutianAI/faas-core/pkg/validation"
)

// KV is the fast/small-value storage surface (§4.2).
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Exists(key string) (bool, error)
	ListKeysWithPrefix(prefix string) ([]string, error)
}

// ObjectStore is the large/binary storage surface (§4.2), treated as an
// external collaborator per spec.md §1 — only the operations it must
// support are declared here.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	ListKeysWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Store is the C2 orchestrator over a KV backend (code text, "latest"
// pointer and fixed versions) and an ObjectStore backend (source maps and
// binary artifacts).
type Store struct {
	kv  KV
	obj ObjectStore
}

func New(kv KV, obj ObjectStore) *Store {
	return &Store{kv: kv, obj: obj}
}

func kvKey(fid, version string) string {
	if version == "" {
		return fmt.Sprintf("code:%s", fid)
	}
	return fmt.Sprintf("code:%s:v:%s", fid, version)
}

func objKey(fid, version, suffix string) string {
	base := fmt.Sprintf("code/%s/latest", fid)
	if version != "" {
		base = fmt.Sprintf("code/%s/v/%s", fid, version)
	}
	return base + suffix
}

// Get reads the versioned key if version is given, else the latest key.
// A miss returns (nil, nil); only backend errors are returned as errors.
func (s *Store) Get(fid, version string) ([]byte, error) {
	if err := validation.ValidateFunctionID(fid); err != nil {
		return nil, ferrors.Validation("%v", err)
	}
	b, err := s.kv.Get(kvKey(fid, version))
	if err != nil {
		return nil, ferrors.Transport(err, "kv get failed for fid %q", fid)
	}
	return b, nil
}

// Put validates fid and writes bytes under the corresponding key,
// unconditionally overwriting any existing value.
func (s *Store) Put(fid string, bytes []byte, version string) error {
	if err := validation.ValidateFunctionID(fid); err != nil {
		return ferrors.Validation("%v", err)
	}
	if err := s.kv.Put(kvKey(fid, version), bytes); err != nil {
		return ferrors.Transport(err, "kv put failed for fid %q", fid)
	}
	return nil
}

// Delete removes one key; a no-op if absent.
func (s *Store) Delete(fid, version string) error {
	if err := validation.ValidateFunctionID(fid); err != nil {
		return ferrors.Validation("%v", err)
	}
	if err := s.kv.Delete(kvKey(fid, version)); err != nil {
		return ferrors.Transport(err, "kv delete failed for fid %q", fid)
	}
	return nil
}

// DeleteAll removes every key matching fid, including all versions and all
// associated source maps and binaries.
func (s *Store) DeleteAll(ctx context.Context, fid string) error {
	if err := validation.ValidateFunctionID(fid); err != nil {
		return ferrors.Validation("%v", err)
	}

	keys, err := s.kv.ListKeysWithPrefix(fmt.Sprintf("code:%s", fid))
	if err != nil {
		return ferrors.Transport(err, "listing kv keys for fid %q", fid)
	}
	for _, k := range keys {
		if !isOwnKVKey(k, fid) {
			continue
		}
		if err := s.kv.Delete(k); err != nil {
			return ferrors.Transport(err, "deleting kv key %q", k)
		}
	}

	objKeys, err := s.obj.ListKeysWithPrefix(ctx, fmt.Sprintf("code/%s/", fid))
	if err != nil {
		return ferrors.Transport(err, "listing object keys for fid %q", fid)
	}
	for _, k := range objKeys {
		if err := s.obj.Delete(ctx, k); err != nil {
			return ferrors.Transport(err, "deleting object key %q", k)
		}
	}

	return nil
}

// isOwnKVKey guards ListKeysWithPrefix("code:<fid>") from also matching a
// different function id that merely shares fid as a prefix (e.g. "abc" vs
// "abcd").
func isOwnKVKey(key, fid string) bool {
	prefix := "code:" + fid
	if key == prefix {
		return true
	}
	return strings.HasPrefix(key, prefix+":v:")
}

// ListVersions returns the set of version tags present, which may include
// "latest".
func (s *Store) ListVersions(fid string) (map[string]struct{}, error) {
	if err := validation.ValidateFunctionID(fid); err != nil {
		return nil, ferrors.Validation("%v", err)
	}
	keys, err := s.kv.ListKeysWithPrefix(fmt.Sprintf("code:%s", fid))
	if err != nil {
		return nil, ferrors.Transport(err, "listing versions for fid %q", fid)
	}
	out := make(map[string]struct{})
	prefix := "code:" + fid
	for _, k := range keys {
		switch {
		case k == prefix:
			out["latest"] = struct{}{}
		case strings.HasPrefix(k, prefix+":v:"):
			out[strings.TrimPrefix(k, prefix+":v:")] = struct{}{}
		}
	}
	return out, nil
}

// ListVersionsSorted returns only semver versions in ascending semver
// order, excluding "latest".
func (s *Store) ListVersionsSorted(fid string) ([]string, error) {
	versions, err := s.ListVersions(fid)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(versions))
	for v := range versions {
		if v == "latest" {
			continue
		}
		if validation.ValidateVersion(v) == nil {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return compareSemver(out[i], out[j]) < 0
	})
	return out, nil
}

// ListVersionsPaginated pages through ListVersionsSorted plus "latest",
// starting after cursor (a version string), returning up to limit entries.
func (s *Store) ListVersionsPaginated(fid string, limit int, cursor string) (versions []string, hasMore bool, nextCursor string, err error) {
	sorted, err := s.ListVersionsSorted(fid)
	if err != nil {
		return nil, false, "", err
	}
	all, err := s.ListVersions(fid)
	if err != nil {
		return nil, false, "", err
	}
	if _, ok := all["latest"]; ok {
		sorted = append(sorted, "latest")
	}

	start := 0
	if cursor != "" {
		for i, v := range sorted {
			if v == cursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(sorted) {
		return nil, false, "", nil
	}
	end := start + limit
	if limit <= 0 || end > len(sorted) {
		end = len(sorted)
	}
	page := sorted[start:end]
	more := end < len(sorted)
	next := ""
	if more {
		next = page[len(page)-1]
	}
	return page, more, next, nil
}

// FallbackResult is the response shape of GetWithFallback.
type FallbackResult struct {
	Code     []byte
	Version  string
	Fallback bool
}

// GetWithFallback tries requested first, then walks fallback in order,
// returning the first hit. Returns nil if every candidate misses.
func (s *Store) GetWithFallback(fid, requested string, fallback []string) (*FallbackResult, error) {
	candidates := append([]string{requested}, fallback...)
	for i, v := range candidates {
		code, err := s.Get(fid, v)
		if err != nil {
			return nil, err
		}
		if code != nil {
			return &FallbackResult{Code: code, Version: v, Fallback: i != 0}, nil
		}
	}
	return nil, nil
}

// Exists reports whether the given (fid, version) key is present.
func (s *Store) Exists(fid, version string) (bool, error) {
	if err := validation.ValidateFunctionID(fid); err != nil {
		return false, ferrors.Validation("%v", err)
	}
	ok, err := s.kv.Exists(kvKey(fid, version))
	if err != nil {
		return false, ferrors.Transport(err, "kv exists failed for fid %q", fid)
	}
	return ok, nil
}

// PutSourceMap stores a source map alongside the given version (or latest).
func (s *Store) PutSourceMap(ctx context.Context, fid, version string, data []byte) error {
	if err := validation.ValidateFunctionID(fid); err != nil {
		return ferrors.Validation("%v", err)
	}
	if err := s.obj.Put(ctx, objKey(fid, version, ".map"), data); err != nil {
		return ferrors.Transport(err, "putting source map for fid %q", fid)
	}
	return nil
}

// GetSourceMap reads a source map; miss returns (nil, nil).
func (s *Store) GetSourceMap(ctx context.Context, fid, version string) ([]byte, error) {
	if err := validation.ValidateFunctionID(fid); err != nil {
		return nil, ferrors.Validation("%v", err)
	}
	data, ok, err := s.obj.Get(ctx, objKey(fid, version, ".map"))
	if err != nil {
		return nil, ferrors.Transport(err, "getting source map for fid %q", fid)
	}
	if !ok {
		return nil, nil
	}
	return data, nil
}

// PutBinary stores a compiled (WASM) artifact under the same key scheme as
// code, suffixed with nothing (object-store surface).
func (s *Store) PutBinary(ctx context.Context, fid, version string, data []byte) error {
	if err := validation.ValidateFunctionID(fid); err != nil {
		return ferrors.Validation("%v", err)
	}
	if err := s.obj.Put(ctx, objKey(fid, version, ""), data); err != nil {
		return ferrors.Transport(err, "putting binary for fid %q", fid)
	}
	return nil
}

// GetBinary reads a compiled artifact; miss returns (nil, nil).
func (s *Store) GetBinary(ctx context.Context, fid, version string) ([]byte, error) {
	if err := validation.ValidateFunctionID(fid); err != nil {
		return nil, ferrors.Validation("%v", err)
	}
	data, ok, err := s.obj.Get(ctx, objKey(fid, version, ""))
	if err != nil {
		return nil, ferrors.Transport(err, "getting binary for fid %q", fid)
	}
	if !ok {
		return nil, nil
	}
	return data, nil
}

// GetByObjectKey reads a bytes-object directly by its raw key, for source
// references that name an object-store key rather than a (fid, version)
// pair. A miss returns (nil, nil).
func (s *Store) GetByObjectKey(ctx context.Context, key string) ([]byte, error) {
	data, ok, err := s.obj.Get(ctx, key)
	if err != nil {
		return nil, ferrors.Transport(err, "getting object by key %q", key)
	}
	if !ok {
		return nil, nil
	}
	return data, nil
}

// compareSemver orders two dotted major.minor.patch strings (ignoring any
// pre-release/build suffix, which is enough for the ascending-order
// operation listVersionsSorted requires).
func compareSemver(a, b string) int {
	pa := splitSemverCore(a)
	pb := splitSemverCore(b)
	for i := 0; i < 3; i++ {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func splitSemverCore(v string) [3]int {
	core := v
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		core = v[:i]
	}
	parts := strings.SplitN(core, ".", 3)
	var out [3]int
	for i := 0; i < 3 && i < len(parts); i++ {
		n, _ := strconv.Atoi(parts[i])
		out[i] = n
	}
	return out
}
