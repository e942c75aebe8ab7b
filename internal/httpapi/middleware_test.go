package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/faas-core/internal/ratelimit"
)

func newTestRouter(client *ratelimit.Client) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(client))
	r.GET("/functions/:fid/info", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	return r
}

func TestRateLimitAllowsUnderLimit(t *testing.T) {
	client := ratelimit.NewClient(map[ratelimit.Category]ratelimit.Config{
		"ip": {WindowMs: 60_000, MaxRequests: 5},
	})
	router := newTestRouter(client)

	req := httptest.NewRequest(http.MethodGet, "/functions/fn-1/info", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRateLimitRejectsOverLimitWithExactShape(t *testing.T) {
	client := ratelimit.NewClient(map[ratelimit.Category]ratelimit.Config{
		"ip": {WindowMs: 60_000, MaxRequests: 1},
	})
	router := newTestRouter(client)

	req1 := httptest.NewRequest(http.MethodGet, "/functions/fn-1/info", nil)
	router.ServeHTTP(httptest.NewRecorder(), req1)

	req2 := httptest.NewRequest(http.MethodGet, "/functions/fn-1/info", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req2)

	if w.Code != 429 {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json; charset=utf-8" && w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("unexpected content-type %q", w.Header().Get("Content-Type"))
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining=0, got %q", w.Header().Get("X-RateLimit-Remaining"))
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header to be set")
	}
	if w.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("expected X-RateLimit-Reset header to be set")
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Too Many Requests" {
		t.Errorf("unexpected error field: %+v", body)
	}
	if _, ok := body["retryAfter"]; !ok {
		t.Error("expected retryAfter in body")
	}
	if _, ok := body["resetAt"]; !ok {
		t.Error("expected resetAt in body")
	}
}
