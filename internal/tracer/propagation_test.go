package tracer

import (
	"net/http"
	"testing"
)

// TestS2W3CExtract is the literal §8 scenario S2.
func TestS2W3CExtract(t *testing.T) {
	h := http.Header{}
	h.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")

	ctx, ok := Extract(h)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if ctx.TraceID != "0af7651916cd43dd8448eb211c80319c" {
		t.Errorf("traceId = %q", ctx.TraceID)
	}
	if ctx.SpanID != "b7ad6b7169203331" {
		t.Errorf("spanId = %q", ctx.SpanID)
	}
	if !ctx.Sampled {
		t.Error("expected sampled=true")
	}

	out := http.Header{}
	Inject(ctx, out)
	if out.Get("traceparent") != "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01" {
		t.Errorf("re-injected header = %q", out.Get("traceparent"))
	}
}

func TestExtractRejectsBadVersion(t *testing.T) {
	tests := []string{
		"ff-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01",
		"00-0AF7651916CD43DD8448EB211C80319C-b7ad6b7169203331-01",
		"00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331",
		"00-short-b7ad6b7169203331-01",
	}
	for _, tp := range tests {
		h := http.Header{}
		h.Set("traceparent", tp)
		if _, ok := Extract(h); ok {
			t.Errorf("expected Extract to reject %q", tp)
		}
	}
}

func TestExtractMissingHeader(t *testing.T) {
	if _, ok := Extract(http.Header{}); ok {
		t.Error("expected Extract to fail with no header present")
	}
}

func TestExtractCarriesTracestateVerbatim(t *testing.T) {
	h := http.Header{}
	h.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-00")
	h.Set("tracestate", "vendor1=value1,vendor2=value2")

	ctx, ok := Extract(h)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if ctx.Sampled {
		t.Error("expected sampled=false for flags=00")
	}
	if ctx.TraceState != "vendor1=value1,vendor2=value2" {
		t.Errorf("tracestate = %q", ctx.TraceState)
	}
}

func TestExtractInjectRoundTrip(t *testing.T) {
	want := Context{TraceID: GenerateTraceID(), SpanID: GenerateSpanID(), Sampled: true}
	h := http.Header{}
	Inject(want, h)
	got, ok := Extract(h)
	if !ok {
		t.Fatal("expected round-trip extraction to succeed")
	}
	if got.TraceID != want.TraceID || got.SpanID != want.SpanID || got.Sampled != want.Sampled {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
