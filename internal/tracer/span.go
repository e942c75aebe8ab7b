// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tracer implements C5: span lifecycle, W3C Trace Context
// propagation, sampling, and the buffered batching pipeline that feeds
// C6's exporters.
package tracer

import (
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SpanKind mirrors the OpenTelemetry span kinds.
type SpanKind string

const (
	SpanKindInternal SpanKind = "internal"
	SpanKindServer   SpanKind = "server"
	SpanKindClient   SpanKind = "client"
	SpanKindProducer SpanKind = "producer"
	SpanKindConsumer SpanKind = "consumer"
)

// Status is a span's terminal status.
type Status struct {
	Code    codes.Code
	Message string
}

// Exception is one recorded exception on a span.
type Exception struct {
	Type       string
	Message    string
	Stacktrace string
}

// Link references another span, e.g. a batch's originating request.
type Link struct {
	TraceID    string
	SpanID     string
	Attributes map[string]any
}

// Span is a single timed operation within a trace. Its identity
// (traceID, spanID, parentSpanID) is immutable; everything else mutates
// under its own mutex. A span that is not sampled silently drops every
// recorded attribute, status change, and exception.
type Span struct {
	mu sync.Mutex

	traceID      string
	spanID       string
	parentSpanID string
	sampled      bool

	name       string
	kind       SpanKind
	startTime  time.Time
	endTime    time.Time
	ended      bool
	status     Status
	attributes map[string]any
	exceptions []Exception
	links      []Link

	onEnd func(*Span)
}

// TraceID returns the span's trace id.
func (s *Span) TraceID() string { return s.traceID }

// SpanID returns the span's own id.
func (s *Span) SpanID() string { return s.spanID }

// ParentSpanID returns the parent id, or "" if this is a root span.
func (s *Span) ParentSpanID() string { return s.parentSpanID }

// IsSampled reports the span's sampling decision.
func (s *Span) IsSampled() bool { return s.sampled }

// IsRecording reports whether the span currently accepts mutations:
// sampled AND not yet ended.
func (s *Span) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampled && s.endTime.IsZero()
}

// Name returns the span's name.
func (s *Span) Name() string { return s.name }

// Kind returns the span's kind.
func (s *Span) Kind() SpanKind { return s.kind }

// SetAttribute sets one attribute. No-op on unsampled or ended spans.
func (s *Span) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recordingLocked() {
		return
	}
	if s.attributes == nil {
		s.attributes = make(map[string]any)
	}
	s.attributes[key] = value
}

// SetAttributes merges attrs. No-op on unsampled or ended spans.
func (s *Span) SetAttributes(attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recordingLocked() {
		return
	}
	if s.attributes == nil {
		s.attributes = make(map[string]any)
	}
	for k, v := range attrs {
		s.attributes[k] = v
	}
}

// SetStatus sets the span's terminal status. No-op on unsampled or ended
// spans.
func (s *Span) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recordingLocked() {
		return
	}
	s.status = status
}

// RecordException appends an exception record and mirrors it into
// attributes exception.type/message/stacktrace, merging extra on top.
// No-op on unsampled or ended spans.
func (s *Span) RecordException(exc Exception, extra map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recordingLocked() {
		return
	}
	s.exceptions = append(s.exceptions, exc)
	if s.attributes == nil {
		s.attributes = make(map[string]any)
	}
	s.attributes["exception.type"] = exc.Type
	s.attributes["exception.message"] = exc.Message
	s.attributes["exception.stacktrace"] = exc.Stacktrace
	for k, v := range extra {
		s.attributes[k] = v
	}
}

// AddLink appends a link. No-op on unsampled or ended spans.
func (s *Span) AddLink(l Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recordingLocked() {
		return
	}
	s.links = append(s.links, l)
}

func (s *Span) recordingLocked() bool {
	return s.sampled && s.endTime.IsZero()
}

// GetExceptions returns a defensive copy of the recorded exceptions.
func (s *Span) GetExceptions() []Exception {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Exception, len(s.exceptions))
	copy(out, s.exceptions)
	return out
}

// GetLinks returns a defensive copy of the recorded links.
func (s *Span) GetLinks() []Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Link, len(s.links))
	copy(out, s.links)
	return out
}

// GetAttributes returns a defensive copy of the recorded attributes.
func (s *Span) GetAttributes() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = v
	}
	return out
}

// GetStatus returns the span's status.
func (s *Span) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Duration returns endTime-startTime if ended, else now-startTime.
func (s *Span) Duration(now func() time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endTime.IsZero() {
		return s.endTime.Sub(s.startTime)
	}
	return now().Sub(s.startTime)
}

// End sets endTime, flips recording to false, and invokes the tracer's
// on-end hook exactly once. Idempotent: subsequent calls are no-ops.
func (s *Span) End(endTime time.Time) {
	s.mu.Lock()
	if !s.endTime.IsZero() {
		s.mu.Unlock()
		return
	}
	s.endTime = endTime
	hook := s.onEnd
	s.mu.Unlock()

	if hook != nil {
		hook(s)
	}
}

// snapshot captures the exported-span fields under lock.
type spanSnapshot struct {
	traceID      string
	spanID       string
	parentSpanID string
	name         string
	kind         SpanKind
	startTime    time.Time
	endTime      time.Time
	ended        bool
	status       Status
	attributes   map[string]any
	links        []Link
}

func (s *Span) snapshot() spanSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs := make(map[string]any, len(s.attributes))
	for k, v := range s.attributes {
		attrs[k] = v
	}
	links := make([]Link, len(s.links))
	copy(links, s.links)
	return spanSnapshot{
		traceID:      s.traceID,
		spanID:       s.spanID,
		parentSpanID: s.parentSpanID,
		name:         s.name,
		kind:         s.kind,
		startTime:    s.startTime,
		endTime:      s.endTime,
		ended:        !s.endTime.IsZero(),
		status:       s.status,
		attributes:   attrs,
		links:        links,
	}
}

// attrValue converts an attribute to an otel attribute.KeyValue, used by
// callers that want to bridge into OpenTelemetry-shaped vocabulary.
func attrValue(key string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case bool:
		return attribute.Bool(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case float64:
		return attribute.Float64(key, val)
	default:
		return attribute.String(key, toString(val))
	}
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}
