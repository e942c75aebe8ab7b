package aiclient

import (
	"context"
	"testing"
)

func TestFakeClientReplaysQueueInOrder(t *testing.T) {
	f := NewFakeClient(
		Response{Content: "first"},
		Response{Content: "second"},
	)
	r1, err := f.Complete(context.Background(), Request{})
	if err != nil || r1.Content != "first" {
		t.Fatalf("got %+v, %v", r1, err)
	}
	r2, err := f.Complete(context.Background(), Request{})
	if err != nil || r2.Content != "second" {
		t.Fatalf("got %+v, %v", r2, err)
	}
}

func TestFakeClientErrorsPastQueueEnd(t *testing.T) {
	f := NewFakeClient(Response{Content: "only"})
	f.Complete(context.Background(), Request{})
	if _, err := f.Complete(context.Background(), Request{}); err == nil {
		t.Error("expected error once queue is exhausted")
	}
}

func TestFakeClientRecordsCalls(t *testing.T) {
	f := NewFakeClient(Response{}, Response{})
	f.Complete(context.Background(), Request{Model: "m1"})
	f.Complete(context.Background(), Request{Model: "m2"})
	calls := f.Calls()
	if len(calls) != 2 || calls[0].Model != "m1" || calls[1].Model != "m2" {
		t.Errorf("got %+v", calls)
	}
}
