package tracer

import (
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
)

func newSampledSpan(sampled bool) *Span {
	return &Span{
		traceID:    GenerateTraceID(),
		spanID:     GenerateSpanID(),
		sampled:    sampled,
		name:       "test-span",
		kind:       SpanKindInternal,
		startTime:  time.Now(),
		attributes: map[string]any{},
	}
}

func TestIsRecordingInvariant(t *testing.T) {
	s := newSampledSpan(true)
	if !s.IsRecording() {
		t.Fatal("expected sampled, unended span to be recording")
	}
	s.End(time.Now())
	if s.IsRecording() {
		t.Fatal("expected ended span to not be recording")
	}

	unsampled := newSampledSpan(false)
	if unsampled.IsRecording() {
		t.Fatal("expected unsampled span to not be recording")
	}
}

func TestUnsampledSpanDropsAllMutations(t *testing.T) {
	s := newSampledSpan(false)
	s.SetAttribute("key", "value")
	s.SetStatus(Status{Code: codes.Error, Message: "boom"})
	s.RecordException(Exception{Type: "TypeError", Message: "x"}, nil)
	s.AddLink(Link{TraceID: "t", SpanID: "s"})

	if len(s.GetAttributes()) != 0 {
		t.Errorf("expected no attributes recorded on unsampled span, got %v", s.GetAttributes())
	}
	if len(s.GetExceptions()) != 0 {
		t.Error("expected no exceptions recorded on unsampled span")
	}
	if len(s.GetLinks()) != 0 {
		t.Error("expected no links recorded on unsampled span")
	}
	if s.GetStatus().Code != codes.Code(0) {
		t.Error("expected status unset on unsampled span")
	}
}

func TestEndedSpanDropsMutations(t *testing.T) {
	s := newSampledSpan(true)
	s.End(time.Now())
	s.SetAttribute("late", "value")
	if len(s.GetAttributes()) != 0 {
		t.Errorf("expected mutation after end() to be a no-op, got %v", s.GetAttributes())
	}
}

func TestRecordExceptionMirrorsAttributes(t *testing.T) {
	s := newSampledSpan(true)
	s.RecordException(Exception{Type: "TypeError", Message: "bad input", Stacktrace: "at fn.js:1"}, map[string]any{"extra": 1})

	attrs := s.GetAttributes()
	if attrs["exception.type"] != "TypeError" || attrs["exception.message"] != "bad input" {
		t.Errorf("got %v", attrs)
	}
	if attrs["extra"] != 1 {
		t.Error("expected extra attribute to be merged")
	}
}

func TestEndIsIdempotent(t *testing.T) {
	var hookCalls int
	s := newSampledSpan(true)
	s.onEnd = func(*Span) { hookCalls++ }

	first := time.Now()
	s.End(first)
	s.End(first.Add(time.Hour))

	if hookCalls != 1 {
		t.Errorf("expected onEnd hook exactly once, got %d", hookCalls)
	}
	if !s.endTime.Equal(first) {
		t.Errorf("expected endTime from first call, got %v", s.endTime)
	}
}

func TestDurationUsesNowWhenUnended(t *testing.T) {
	start := time.Now().Add(-5 * time.Second)
	s := &Span{startTime: start}
	d := s.Duration(time.Now)
	if d < 4*time.Second || d > 6*time.Second {
		t.Errorf("expected ~5s duration, got %v", d)
	}
}

func TestGenerateIDsUniqueAndFormatted(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := GenerateTraceID()
		if len(id) != 32 {
			t.Fatalf("trace id wrong length: %q", id)
		}
		if id == "00000000000000000000000000000000"[:32] {
			t.Fatal("trace id must never be all zero")
		}
		if seen[id] {
			t.Fatalf("duplicate trace id: %q", id)
		}
		seen[id] = true
		for _, r := range id {
			if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
				t.Fatalf("trace id contains non-lowercase-hex char: %q", id)
			}
		}
	}
}
