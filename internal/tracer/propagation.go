// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tracer

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// Context is the W3C trace context: (traceId, spanId, parentSpanId?,
// sampled, traceState?). TraceID, SpanID, Sampled and TraceState
// round-trip through the traceparent/tracestate headers; ParentSpanID is
// not carried by them and is empty after Extract.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Sampled      bool
	TraceState   string
}

const traceparentHeader = "traceparent"
const tracestateHeader = "tracestate"

func isLowerHex(s string) bool {
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}

// Inject writes the traceparent (and tracestate, if set) headers for ctx.
func Inject(ctx Context, h http.Header) {
	flags := "00"
	if ctx.Sampled {
		flags = "01"
	}
	h.Set(traceparentHeader, fmt.Sprintf("00-%s-%s-%s", ctx.TraceID, ctx.SpanID, flags))
	if ctx.TraceState != "" {
		h.Set(tracestateHeader, ctx.TraceState)
	}
}

// Extract parses the traceparent (and tracestate) headers. It requires
// version "00" and rejects any other version (including "ff"), uppercase
// hex, or malformed length/separators, returning (Context{}, false) on
// reject.
func Extract(h http.Header) (Context, bool) {
	tp := h.Get(traceparentHeader)
	if tp == "" {
		return Context{}, false
	}

	parts := strings.Split(tp, "-")
	if len(parts) != 4 {
		return Context{}, false
	}
	version, traceID, spanID, flags := parts[0], parts[1], parts[2], parts[3]

	if version != "00" {
		return Context{}, false
	}
	if len(traceID) != 32 || len(spanID) != 16 || len(flags) != 2 {
		return Context{}, false
	}
	if !isLowerHex(traceID) || !isLowerHex(spanID) || !isLowerHex(flags) {
		return Context{}, false
	}

	flagByte, err := hex.DecodeString(flags)
	if err != nil {
		return Context{}, false
	}
	sampled := flagByte[0]&0x01 == 1
	ctx := Context{TraceID: traceID, SpanID: spanID, Sampled: sampled}

	if ts := h.Get(tracestateHeader); ts != "" {
		ctx.TraceState = ts
	}

	return ctx, true
}
