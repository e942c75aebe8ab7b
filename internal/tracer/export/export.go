// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package export implements C6: pluggable trace sinks (http, console,
// noop), each batching spans into groups of batchSize (default 100)
// before handing them to an injected send function. A failure of one
// batch never aborts subsequent batches.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/AleutianAI/faas-core/internal/tracer"
)

const defaultBatchSize = 100

// SendFunc delivers one already-serialized batch. Implementations for the
// http() factory POST it; console()/noop() stub it out entirely.
type SendFunc func(ctx context.Context, batch tracer.ExportedTrace) error

// BatchingExporter splits an ExportedTrace's spans into batches of
// batchSize, preserving ServiceName and Resource on each batch, and hands
// each batch to send. A batch's failure is swallowed; subsequent batches
// still attempt.
type BatchingExporter struct {
	BatchSize int
	Send      SendFunc
}

func NewBatchingExporter(batchSize int, send SendFunc) *BatchingExporter {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &BatchingExporter{BatchSize: batchSize, Send: send}
}

func (b *BatchingExporter) Export(ctx context.Context, trace tracer.ExportedTrace) error {
	spans := trace.Spans
	for start := 0; start < len(spans); start += b.BatchSize {
		end := start + b.BatchSize
		if end > len(spans) {
			end = len(spans)
		}
		batch := tracer.ExportedTrace{
			ServiceName: trace.ServiceName,
			Resource:    trace.Resource,
			Spans:       spans[start:end],
		}
		_ = b.Send(ctx, batch) // per-batch errors are swallowed
	}
	return nil
}

// HTTP returns a batching exporter that POSTs each batch's JSON to
// endpoint with the given headers merged in.
func HTTP(endpoint string, headers map[string]string) *BatchingExporter {
	client := &http.Client{}
	send := func(ctx context.Context, batch tracer.ExportedTrace) error {
		body, err := json.Marshal(batch)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return nil
	}
	return NewBatchingExporter(defaultBatchSize, send)
}

// Console returns an exporter that writes one line per span to w,
// including name, traceId, spanId, and duration in ms (0 if unended).
func Console(w io.Writer) *BatchingExporter {
	send := func(_ context.Context, batch tracer.ExportedTrace) error {
		for _, s := range batch.Spans {
			durationMs := int64(0)
			if s.EndTimeUnixNano != nil {
				durationMs = (*s.EndTimeUnixNano - s.StartTimeUnixNano) / 1_000_000
			}
			fmt.Fprintf(w, "span name=%s traceId=%s spanId=%s durationMs=%d\n",
				s.Name, s.TraceID, s.SpanID, durationMs)
		}
		return nil
	}
	return NewBatchingExporter(defaultBatchSize, send)
}

// Noop returns an exporter that discards every batch.
func Noop() *BatchingExporter {
	return NewBatchingExporter(defaultBatchSize, func(context.Context, tracer.ExportedTrace) error {
		return nil
	})
}
