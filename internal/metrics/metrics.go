// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package metrics holds the process-wide Prometheus collectors for the
// invocation plane: compile cache hit/miss/eviction counts, rate-limiter
// allow/deny counts, and executor duration histograms.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CompileCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "faas", Subsystem: "compilecache", Name: "hits_total",
	})
	CompileCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "faas", Subsystem: "compilecache", Name: "misses_total",
	})
	CompileCacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "faas", Subsystem: "compilecache", Name: "evictions_total",
	})

	RateLimitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faas", Subsystem: "ratelimit", Name: "decisions_total",
	}, []string{"category", "allowed"})

	ExecutorDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faas", Subsystem: "executor", Name: "duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"language", "status"})

	AgenticDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faas", Subsystem: "agentic", Name: "duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(
		CompileCacheHits, CompileCacheMisses, CompileCacheEvictions,
		RateLimitDecisions, ExecutorDuration, AgenticDuration,
	)
}
