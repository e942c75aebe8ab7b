package ratelimit

import (
	"net/http"
	"testing"
)

func TestCheckAndIncrementAllHaltsOnFirstRejection(t *testing.T) {
	c := NewClient(map[Category]Config{
		"ip":       {WindowMs: 60_000, MaxRequests: 1},
		"function": {WindowMs: 60_000, MaxRequests: 100},
	})
	keys := map[Category]string{"ip": "1.2.3.4", "function": "fn1"}
	order := []Category{"ip", "function"}

	first := c.CheckAndIncrementAll(order, keys)
	if !first.Allowed {
		t.Fatalf("expected first call allowed, got %+v", first)
	}

	second := c.CheckAndIncrementAll(order, keys)
	if second.Allowed {
		t.Fatal("expected second call blocked by ip category")
	}
	if second.BlockingCategory != "ip" {
		t.Errorf("expected blocking category ip, got %v", second.BlockingCategory)
	}
	// function category must not have been incremented since ip halted first.
	if r, ok := second.Results["function"]; ok {
		t.Errorf("function category should not be present/incremented after ip halt, got %+v", r)
	}
}

func TestCheckAllDoesNotIncrement(t *testing.T) {
	c := NewClient(map[Category]Config{"ip": {WindowMs: 60_000, MaxRequests: 1}})
	keys := map[Category]string{"ip": "9.9.9.9"}
	order := []Category{"ip"}

	for i := 0; i < 5; i++ {
		res := c.CheckAll(order, keys)
		if !res.Allowed {
			t.Fatalf("call %d: CheckAll should never report blocked since it never increments", i)
		}
	}
}

func TestCheckAllBlockingCategoryFollowsDeclaredOrderWhenBothFail(t *testing.T) {
	c := NewClient(map[Category]Config{
		"ip":       {WindowMs: 60_000, MaxRequests: 0},
		"function": {WindowMs: 60_000, MaxRequests: 0},
	})
	keys := map[Category]string{"ip": "9.9.9.9", "function": "fn1"}

	res := c.CheckAll([]Category{"ip", "function"}, keys)
	if res.Allowed {
		t.Fatal("expected both categories to reject")
	}
	if res.BlockingCategory != "ip" {
		t.Errorf("expected blocking category ip (first in order), got %v", res.BlockingCategory)
	}

	res2 := c.CheckAll([]Category{"function", "ip"}, keys)
	if res2.BlockingCategory != "function" {
		t.Errorf("expected blocking category function (first in order), got %v", res2.BlockingCategory)
	}
}

func TestClientIPExtractionOrder(t *testing.T) {
	tests := []struct {
		name string
		h    http.Header
		want string
	}{
		{"cf header wins", http.Header{"Cf-Connecting-Ip": []string{"1.1.1.1"}, "X-Forwarded-For": []string{"2.2.2.2"}}, "1.1.1.1"},
		{"xff first element trimmed", http.Header{"X-Forwarded-For": []string{" 3.3.3.3 , 4.4.4.4"}}, "3.3.3.3"},
		{"x-real-ip fallback", http.Header{"X-Real-Ip": []string{"5.5.5.5"}}, "5.5.5.5"},
		{"unknown when nothing set", http.Header{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClientIP(tt.h)
			if got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
