// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ratelimit

import (
	"net/http"
	"strings"
	"sync"
)

// Category names one configured limiter (typically "ip" or "function").
type Category string

// Client holds one or more named limiters, each routing (category, key) to
// its owning shard by deterministic mapping (shard name = key).
type Client struct {
	mu       sync.Mutex
	configs  map[Category]Config
	shards   map[Category]map[string]*Shard
	now      func() int64
}

// NewClient constructs a client with the given per-category configs.
func NewClient(configs map[Category]Config) *Client {
	return &Client{
		configs: configs,
		shards:  make(map[Category]map[string]*Shard),
	}
}

// DefaultClient returns a client preconfigured with spec.md §4.4's typical
// policy: ip = {60s, 100 req}, function = {60s, 1000 req}.
func DefaultClient() *Client {
	return NewClient(map[Category]Config{
		"ip":       DefaultIPConfig(),
		"function": DefaultFunctionConfig(),
	})
}

func (c *Client) shardFor(cat Category, key string) *Shard {
	c.mu.Lock()
	defer c.mu.Unlock()
	byKey, ok := c.shards[cat]
	if !ok {
		byKey = make(map[string]*Shard)
		c.shards[cat] = byKey
	}
	s, ok := byKey[key]
	if !ok {
		s = NewShard(c.now)
		byKey[key] = s
	}
	return s
}

// CategoryResult is one category's outcome within an aggregate check.
type CategoryResult struct {
	Category Category
	CheckResult
}

// AggregateResult is the fan-in of every configured category's check.
type AggregateResult struct {
	Allowed          bool
	BlockingCategory Category // set iff !Allowed
	Results          map[Category]CheckResult
}

// CheckAll queries every configured category in order, without
// incrementing. order fixes iteration order so "the first failing
// category" is deterministic even when several categories would reject;
// callers that don't care about a specific order may pass the keys' map
// in any fixed order of their choosing.
func (c *Client) CheckAll(order []Category, keys map[Category]string) AggregateResult {
	results := make(map[Category]CheckResult, len(keys))
	allowed := true
	var blocking Category
	for _, cat := range order {
		key, ok := keys[cat]
		if !ok {
			continue
		}
		cfg, ok := c.configs[cat]
		if !ok {
			continue
		}
		r := c.shardFor(cat, key).Check(cfg)
		results[cat] = r
		if !r.Allowed && allowed {
			allowed = false
			blocking = cat
		}
	}
	return AggregateResult{Allowed: allowed, BlockingCategory: blocking, Results: results}
}

// CheckAndIncrementAll increments each configured category in the declared
// order; on the first rejection it halts and does not increment subsequent
// categories.
func (c *Client) CheckAndIncrementAll(order []Category, keys map[Category]string) AggregateResult {
	results := make(map[Category]CheckResult, len(order))
	for _, cat := range order {
		key, ok := keys[cat]
		if !ok {
			continue
		}
		cfg, ok := c.configs[cat]
		if !ok {
			continue
		}
		r := c.shardFor(cat, key).CheckAndIncrement(cfg)
		results[cat] = r
		if !r.Allowed {
			return AggregateResult{Allowed: false, BlockingCategory: cat, Results: results}
		}
	}
	return AggregateResult{Allowed: true, Results: results}
}

// ClientIP extracts the client IP from an inbound request following the
// order CF-Connecting-IP, first element of X-Forwarded-For, X-Real-IP,
// else "unknown".
func ClientIP(h http.Header) string {
	if v := h.Get("CF-Connecting-IP"); v != "" {
		return v
	}
	if v := h.Get("X-Forwarded-For"); v != "" {
		first := strings.TrimSpace(strings.Split(v, ",")[0])
		if first != "" {
			return first
		}
	}
	if v := h.Get("X-Real-IP"); v != "" {
		return v
	}
	return "unknown"
}
