// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tracer

import (
	"context"
	"math/rand"

	"golang.org/x/time/rate"
)

// SampleDecision is a custom sampler's verdict.
type SampleDecision struct {
	Sample     bool
	Attributes map[string]any
}

// Sampler decides, at span-creation time, whether a span should be
// recorded/exported. Built-in and user-provided samplers are
// interchangeable through this one small capability interface.
type Sampler interface {
	Sample(ctx context.Context, name string) SampleDecision
}

// ProbabilisticSampler samples uniformly at the configured rate.
// rate==0 never samples; rate==1 always samples.
type ProbabilisticSampler struct {
	Rate float64
}

func (p ProbabilisticSampler) Sample(_ context.Context, _ string) SampleDecision {
	switch p.Rate {
	case 0:
		return SampleDecision{Sample: false}
	case 1:
		return SampleDecision{Sample: true}
	default:
		return SampleDecision{Sample: rand.Float64() < p.Rate}
	}
}

// SamplerFunc adapts a plain function to the Sampler interface.
type SamplerFunc func(ctx context.Context, name string) SampleDecision

func (f SamplerFunc) Sample(ctx context.Context, name string) SampleDecision {
	return f(ctx, name)
}

// RateLimitingSampler is the built-in token-bucket sampler: capacity and
// refill rate both equal maxSpansPerSecond; the bucket never exceeds
// capacity; each sampled decision consumes one token.
type RateLimitingSampler struct {
	limiter *rate.Limiter
}

// NewRateLimitingSampler constructs a sampler bucketed at
// maxSpansPerSecond tokens/second with burst capacity maxSpansPerSecond.
func NewRateLimitingSampler(maxSpansPerSecond float64) *RateLimitingSampler {
	return &RateLimitingSampler{
		limiter: rate.NewLimiter(rate.Limit(maxSpansPerSecond), int(maxSpansPerSecond)),
	}
}

func (r *RateLimitingSampler) Sample(_ context.Context, _ string) SampleDecision {
	return SampleDecision{Sample: r.limiter.Allow()}
}
