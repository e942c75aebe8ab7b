// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tracer

import (
	"context"
	"sync"
	"time"
)

// Exporter is C6's common interface: export a batch of spans, grouped
// into one exported trace.
type Exporter interface {
	Export(ctx context.Context, trace ExportedTrace) error
}

// Config configures a Tracer.
type Config struct {
	ServiceName         string
	Sampler             Sampler
	Exporter            Exporter
	ResourceAttributes  map[string]any
}

func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName: serviceName,
		Sampler:     ProbabilisticSampler{Rate: 1.0},
	}
}

func (c Config) Validate() error {
	if c.ServiceName == "" {
		return errServiceNameRequired
	}
	return nil
}

var errServiceNameRequired = configError("tracer: ServiceName is required")

type configError string

func (e configError) Error() string { return string(e) }

// Tracer owns the pending-span buffer for one process. The buffer is
// single-owner per tracer instance: appended to in End() order, and a
// concurrent Flush captures a snapshot and clears it atomically with
// respect to subsequent End() calls.
type Tracer struct {
	cfg Config

	mu       sync.Mutex
	pending  []*Span
	shutdown bool
}

func New(cfg Config) (*Tracer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracer{cfg: cfg}, nil
}

// StartOpts configures StartSpan.
type StartOpts struct {
	Parent        *Span
	ParentContext *Context
	Kind          SpanKind
	Attributes    map[string]any
	Links         []Link
	StartTime     time.Time
}

// StartSpan resolves the trace id and parent id, makes the sampling
// decision, and returns a new Span.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts StartOpts) *Span {
	traceID := ""
	parentSpanID := ""
	var inheritedSampled *bool

	switch {
	case opts.Parent != nil:
		traceID = opts.Parent.TraceID()
		parentSpanID = opts.Parent.SpanID()
		v := opts.Parent.IsSampled()
		inheritedSampled = &v
	case opts.ParentContext != nil:
		traceID = opts.ParentContext.TraceID
		parentSpanID = opts.ParentContext.SpanID
		v := opts.ParentContext.Sampled
		inheritedSampled = &v
	default:
		traceID = GenerateTraceID()
	}

	sampled, samplerAttrs := t.decideSampled(ctx, name, inheritedSampled)

	startTime := opts.StartTime
	if startTime.IsZero() {
		startTime = time.Now()
	}

	kind := opts.Kind
	if kind == "" {
		kind = SpanKindInternal
	}

	span := &Span{
		traceID:      traceID,
		spanID:       GenerateSpanID(),
		parentSpanID: parentSpanID,
		sampled:      sampled,
		name:         name,
		kind:         kind,
		startTime:    startTime,
		attributes:   map[string]any{},
		onEnd:        t.onSpanEnd,
	}
	if sampled {
		for _, l := range opts.Links {
			span.links = append(span.links, l)
		}
		for k, v := range samplerAttrs {
			span.attributes[k] = v
		}
		for k, v := range opts.Attributes {
			span.attributes[k] = v
		}
	}
	return span
}

// decideSampled implements the §4.5 sampling decision chain: inherit from
// parent if known, else consult a custom sampler (whose decision may carry
// attributes to stamp on the span), else probabilistic.
func (t *Tracer) decideSampled(ctx context.Context, name string, inherited *bool) (bool, map[string]any) {
	if inherited != nil {
		return *inherited, nil
	}
	if t.cfg.Sampler != nil {
		decision := t.cfg.Sampler.Sample(ctx, name)
		return decision.Sample, decision.Attributes
	}
	return true, nil
}

// CreateContext derives a propagatable Context from a span.
func (t *Tracer) CreateContext(s *Span) Context {
	return Context{
		TraceID:      s.TraceID(),
		SpanID:       s.SpanID(),
		ParentSpanID: s.ParentSpanID(),
		Sampled:      s.IsSampled(),
	}
}

// onSpanEnd is the hook invoked exactly once per span, from Span.End.
func (t *Tracer) onSpanEnd(s *Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		return
	}
	if !s.IsSampled() {
		return
	}
	t.pending = append(t.pending, s)
}

// Flush drains all sampled, ended spans to the configured exporter,
// grouped into one exported trace. It clears the pending buffer even if no
// exporter is configured, and swallows exporter errors entirely.
func (t *Tracer) Flush(ctx context.Context) {
	t.mu.Lock()
	batch := t.pending
	t.pending = nil
	t.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	trace := toExportedTrace(t.cfg.ServiceName, t.cfg.ResourceAttributes, batch)

	if t.cfg.Exporter == nil {
		return
	}
	_ = t.cfg.Exporter.Export(ctx, trace)
}

// Shutdown disables further span collection. Already-created spans still
// work, but their end events are no longer enqueued.
func (t *Tracer) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shutdown = true
}
