package codestore

import (
	"context"
	"testing"
)

func newTestStore() *Store {
	return New(NewMemKV(), NewMemObjectStore())
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore()

	if err := s.Put("fn1", []byte("console.log(1)"), ""); err != nil {
		t.Fatalf("Put latest: %v", err)
	}
	got, err := s.Get("fn1", "")
	if err != nil || string(got) != "console.log(1)" {
		t.Fatalf("Get latest = %q, %v", got, err)
	}

	if err := s.Put("fn1", []byte("v2 code"), "1.0.0"); err != nil {
		t.Fatalf("Put v1.0.0: %v", err)
	}
	got, err = s.Get("fn1", "1.0.0")
	if err != nil || string(got) != "v2 code" {
		t.Fatalf("Get 1.0.0 = %q, %v", got, err)
	}
}

func TestGetMissIsNotError(t *testing.T) {
	s := newTestStore()
	got, err := s.Get("missing-fn", "")
	if err != nil {
		t.Fatalf("expected no error on miss, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil on miss, got %q", got)
	}
}

func TestInvalidFunctionIDRejected(t *testing.T) {
	s := newTestStore()
	if err := s.Put("../etc/passwd", []byte("x"), ""); err == nil {
		t.Fatal("expected validation error for traversal fid")
	}
}

func TestDeleteAllRemovesVersionsAndMaps(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_ = s.Put("fn2", []byte("latest"), "")
	_ = s.Put("fn2", []byte("v1"), "1.0.0")
	_ = s.Put("fn2", []byte("v2"), "2.0.0")
	_ = s.PutSourceMap(ctx, "fn2", "1.0.0", []byte("map-data"))

	if err := s.DeleteAll(ctx, "fn2"); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}

	for _, v := range []string{"", "1.0.0", "2.0.0"} {
		got, err := s.Get("fn2", v)
		if err != nil || got != nil {
			t.Errorf("expected fn2 version %q gone, got %q err=%v", v, got, err)
		}
	}
	mapData, err := s.GetSourceMap(ctx, "fn2", "1.0.0")
	if err != nil || mapData != nil {
		t.Errorf("expected source map gone, got %q err=%v", mapData, err)
	}
}

func TestListVersionsSorted(t *testing.T) {
	s := newTestStore()
	_ = s.Put("fn3", []byte("x"), "")
	_ = s.Put("fn3", []byte("x"), "2.1.0")
	_ = s.Put("fn3", []byte("x"), "1.0.0")
	_ = s.Put("fn3", []byte("x"), "1.10.0")

	sorted, err := s.ListVersionsSorted("fn3")
	if err != nil {
		t.Fatalf("ListVersionsSorted: %v", err)
	}
	want := []string{"1.0.0", "1.10.0", "2.1.0"}
	if len(sorted) != len(want) {
		t.Fatalf("got %v, want %v", sorted, want)
	}
	for i := range want {
		if sorted[i] != want[i] {
			t.Errorf("index %d: got %q want %q", i, sorted[i], want[i])
		}
	}
}

func TestGetWithFallback(t *testing.T) {
	s := newTestStore()
	_ = s.Put("fn4", []byte("v1-code"), "1.0.0")
	_ = s.Put("fn4", []byte("v3-code"), "3.0.0")

	res, err := s.GetWithFallback("fn4", "2.0.0", []string{"1.0.0", "3.0.0"})
	if err != nil {
		t.Fatalf("GetWithFallback: %v", err)
	}
	if res == nil {
		t.Fatal("expected a fallback hit")
	}
	if res.Version != "1.0.0" || string(res.Code) != "v1-code" || !res.Fallback {
		t.Errorf("got %+v", res)
	}
}

func TestGetWithFallbackAllMiss(t *testing.T) {
	s := newTestStore()
	res, err := s.GetWithFallback("fn5", "2.0.0", []string{"1.0.0", "3.0.0"})
	if err != nil {
		t.Fatalf("GetWithFallback: %v", err)
	}
	if res != nil {
		t.Errorf("expected nil result on all-miss, got %+v", res)
	}
}

func TestGetWithFallbackRequestedHit(t *testing.T) {
	s := newTestStore()
	_ = s.Put("fn6", []byte("req-code"), "2.0.0")

	res, err := s.GetWithFallback("fn6", "2.0.0", []string{"1.0.0"})
	if err != nil {
		t.Fatalf("GetWithFallback: %v", err)
	}
	if res.Fallback {
		t.Error("expected fallback=false when requested version hits directly")
	}
}

func TestPutBinaryAndSourceMap(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	if err := s.PutBinary(ctx, "fn7", "1.0.0", []byte{0x00, 0x61, 0x73, 0x6d}); err != nil {
		t.Fatalf("PutBinary: %v", err)
	}
	bin, err := s.GetBinary(ctx, "fn7", "1.0.0")
	if err != nil || len(bin) != 4 {
		t.Fatalf("GetBinary = %v, %v", bin, err)
	}

	if err := s.PutSourceMap(ctx, "fn7", "1.0.0", []byte(`{"version":3}`)); err != nil {
		t.Fatalf("PutSourceMap: %v", err)
	}
	m, err := s.GetSourceMap(ctx, "fn7", "1.0.0")
	if err != nil || string(m) != `{"version":3}` {
		t.Fatalf("GetSourceMap = %q, %v", m, err)
	}
}

func TestExists(t *testing.T) {
	s := newTestStore()
	ok, err := s.Exists("fn8", "")
	if err != nil || ok {
		t.Fatalf("expected not exists, got %v %v", ok, err)
	}
	_ = s.Put("fn8", []byte("x"), "")
	ok, err = s.Exists("fn8", "")
	if err != nil || !ok {
		t.Fatalf("expected exists, got %v %v", ok, err)
	}
}

func TestListVersionsPaginated(t *testing.T) {
	s := newTestStore()
	_ = s.Put("fn9", []byte("x"), "1.0.0")
	_ = s.Put("fn9", []byte("x"), "2.0.0")
	_ = s.Put("fn9", []byte("x"), "3.0.0")

	page1, more1, cursor1, err := s.ListVersionsPaginated("fn9", 2, "")
	if err != nil {
		t.Fatalf("page1: %v", err)
	}
	if len(page1) != 2 || !more1 {
		t.Fatalf("page1 = %v more=%v", page1, more1)
	}

	page2, more2, _, err := s.ListVersionsPaginated("fn9", 2, cursor1)
	if err != nil {
		t.Fatalf("page2: %v", err)
	}
	if len(page2) != 1 || more2 {
		t.Fatalf("page2 = %v more=%v", page2, more2)
	}
}
