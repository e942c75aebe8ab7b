// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tracer

import (
	"context"
	"testing"
	"time"

	"github.com/AleutianAI/faas-core/pkg/logging"
)

func TestSpanEventExporterAttachesWarnAndErrorAsExceptions(t *testing.T) {
	tr, err := New(DefaultConfig("faasd-test"))
	if err != nil {
		t.Fatalf("new tracer: %v", err)
	}
	span := tr.StartSpan(context.Background(), "invoke", StartOpts{})

	exp := NewSpanEventExporter(span)
	logger := logging.New(logging.Config{Level: logging.LevelInfo, Quiet: true, Exporter: exp})

	logger.Info("request started", "function_id", "fn-1")
	logger.Error("invocation failed", "error", "timeout")

	// Export runs asynchronously (pkg/logging/logger.go's log method); give
	// it time to land, the same pattern the package's own tests use.
	time.Sleep(50 * time.Millisecond)

	exceptions := span.GetExceptions()
	if len(exceptions) != 1 {
		t.Fatalf("expected exactly 1 recorded exception (Info should be dropped), got %d: %+v", len(exceptions), exceptions)
	}
	if exceptions[0].Message != "invocation failed" {
		t.Errorf("expected exception message 'invocation failed', got %q", exceptions[0].Message)
	}
	if exceptions[0].Type != "log.ERROR" {
		t.Errorf("expected exception type 'log.ERROR', got %q", exceptions[0].Type)
	}
	attrs := span.GetAttributes()
	if attrs["error"] != "timeout" {
		t.Errorf("expected log attrs to be merged onto the span, got %+v", attrs)
	}
}

func TestSpanEventExporterNoopOnNilSpan(t *testing.T) {
	exp := NewSpanEventExporter(nil)
	if err := exp.Export(context.Background(), logging.LogEntry{Level: logging.LevelError, Message: "x"}); err != nil {
		t.Fatalf("expected no error from a nil-span exporter, got %v", err)
	}
}
