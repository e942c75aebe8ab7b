// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tracer

import "go.opentelemetry.io/otel/codes"

// ExportedStatus is the wire shape of a span's status.
type ExportedStatus struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// ExportedLink is the wire shape of a span link.
type ExportedLink struct {
	TraceID    string         `json:"traceId"`
	SpanID     string         `json:"spanId"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// ExportedSpan is the §6 wire shape of one span. Times are Unix
// nanoseconds; endTimeUnixNano is omitted if the span never ended; links
// is omitted if empty.
type ExportedSpan struct {
	TraceID         string          `json:"traceId"`
	SpanID          string          `json:"spanId"`
	ParentSpanID    string          `json:"parentSpanId,omitempty"`
	Name            string          `json:"name"`
	Kind            SpanKind        `json:"kind"`
	StartTimeUnixNano int64         `json:"startTimeUnixNano"`
	EndTimeUnixNano *int64          `json:"endTimeUnixNano,omitempty"`
	Attributes      map[string]any  `json:"attributes"`
	Status          ExportedStatus  `json:"status"`
	Links           []ExportedLink  `json:"links,omitempty"`
}

// ExportedTrace is the §4.5/§6 wire shape of one flushed batch:
// resource["service.name"] always equals serviceName, with configured
// resourceAttributes merged over it.
type ExportedTrace struct {
	ServiceName string         `json:"serviceName"`
	Spans       []ExportedSpan `json:"spans"`
	Resource    map[string]any `json:"resource"`
}

func statusCodeString(c codes.Code) string {
	switch c {
	case codes.Ok:
		return "ok"
	case codes.Error:
		return "error"
	default:
		return "unset"
	}
}

func toExportedTrace(serviceName string, resourceAttrs map[string]any, spans []*Span) ExportedTrace {
	resource := map[string]any{"service.name": serviceName}
	for k, v := range resourceAttrs {
		resource[k] = v
	}

	out := make([]ExportedSpan, 0, len(spans))
	for _, s := range spans {
		snap := s.snapshot()

		es := ExportedSpan{
			TraceID:           snap.traceID,
			SpanID:            snap.spanID,
			ParentSpanID:      snap.parentSpanID,
			Name:              snap.name,
			Kind:              snap.kind,
			StartTimeUnixNano: snap.startTime.UnixNano(),
			Attributes:        snap.attributes,
			Status:            ExportedStatus{Code: statusCodeString(snap.status.Code), Message: snap.status.Message},
		}
		if snap.ended {
			end := snap.endTime.UnixNano()
			es.EndTimeUnixNano = &end
		}
		for _, l := range snap.links {
			es.Links = append(es.Links, ExportedLink{TraceID: l.TraceID, SpanID: l.SpanID, Attributes: l.Attributes})
		}
		out = append(out, es)
	}

	return ExportedTrace{ServiceName: serviceName, Spans: out, Resource: resource}
}
