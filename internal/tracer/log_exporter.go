// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tracer

import (
	"context"

	"github.com/AleutianAI/faas-core/pkg/logging"
)

// SpanEventExporter bridges pkg/logging's LogExporter extension point into
// C5: Warn/Error-level entries logged while the bound span is open are
// attached to it as exceptions, so a trace exported by C6 carries the
// structured log context that led to a failure instead of that context
// living only in stderr/file output. Entries below LevelWarn are dropped,
// since every invocation already logs at Info for normal operation and
// attaching all of it to the span would make C6 exports unreadable.
type SpanEventExporter struct {
	span *Span
}

// NewSpanEventExporter binds an exporter to span. span may be nil, in which
// case Export is a no-op — useful when logging is configured before a
// request's span exists yet.
func NewSpanEventExporter(span *Span) *SpanEventExporter {
	return &SpanEventExporter{span: span}
}

func (e *SpanEventExporter) Export(_ context.Context, entry logging.LogEntry) error {
	if e.span == nil || entry.Level < logging.LevelWarn {
		return nil
	}
	e.span.RecordException(Exception{
		Type:    "log." + entry.Level.String(),
		Message: entry.Message,
	}, entry.Attrs)
	return nil
}

// Flush is a no-op: RecordException already applies synchronously.
func (e *SpanEventExporter) Flush(_ context.Context) error { return nil }

// Close is a no-op: SpanEventExporter owns no resources of its own.
func (e *SpanEventExporter) Close() error { return nil }

var _ logging.LogExporter = (*SpanEventExporter)(nil)
