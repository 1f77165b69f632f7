package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSAllowsListedOrigin(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	mw := CORS([]string{"https://example.com"})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("expected allow methods header")
	}
}

func TestCORSDeniesUnknownOrigin(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw := CORS([]string{"https://example.com"})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://unknown.example")
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin header, got %q", got)
	}
}

func TestCORSHandlesPreflight(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	mw := CORS([]string{"https://example.com"})
	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if called {
		t.Fatalf("expected handler to not be called on preflight")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}

func TestRateLimiterAllowsBurstThenRejects(t *testing.T) {
	rl := NewRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should fit within the burst", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("request beyond the burst should be rejected")
	}
	// other clients keep their own buckets
	if !rl.Allow("10.0.0.2") {
		t.Fatal("a different ip should not be affected")
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := RateLimit(0.001, 1)

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("X-Real-Ip", "10.0.0.9")

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
}

func TestRateLimiterChargesCost(t *testing.T) {
	rl := NewRateLimiter(0.001, 8)

	if !rl.AllowN("10.0.0.1", 4) {
		t.Fatal("first LLM-weight request should fit")
	}
	if !rl.AllowN("10.0.0.1", 4) {
		t.Fatal("second LLM-weight request should drain the bucket")
	}
	if rl.AllowN("10.0.0.1", 4) {
		t.Fatal("third LLM-weight request should be rejected")
	}
	// a cheap read no longer fits either, the bucket is empty
	if rl.Allow("10.0.0.1") {
		t.Fatal("read should be rejected once the bucket is drained")
	}
}

func TestRateLimitWeighsLLMEndpoints(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := RateLimit(0.001, 4)

	submit := httptest.NewRequest(http.MethodPost, "/sessions/abc/responses", nil)
	submit.Header.Set("X-Real-Ip", "10.0.0.3")

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, submit)
	if rec.Code != http.StatusOK {
		t.Fatalf("first submit status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, submit)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second submit status = %d, want 429", rec.Code)
	}

	// reads cost one token each, so the same burst covers four of them
	mw = RateLimit(0.001, 4)
	get := httptest.NewRequest(http.MethodGet, "/sessions/abc", nil)
	get.Header.Set("X-Real-Ip", "10.0.0.4")
	for i := 0; i < 4; i++ {
		rec = httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, get)
		if rec.Code != http.StatusOK {
			t.Fatalf("read %d status = %d", i+1, rec.Code)
		}
	}
	rec = httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, get)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("fifth read status = %d, want 429", rec.Code)
	}
}

func TestRequestCostClassifiesRoutes(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   float64
	}{
		{http.MethodPost, "/sessions/abc/responses", llmRequestCost},
		{http.MethodPost, "/sessions/abc/start", llmRequestCost},
		{http.MethodPost, "/sessions/abc/clarify", llmRequestCost},
		{http.MethodPost, "/sessions/abc/end", llmRequestCost},
		{http.MethodPost, "/sessions/abc/report", llmRequestCost},
		{http.MethodPost, "/sessions/abc/pause", 1},
		{http.MethodPost, "/sessions", 1},
		{http.MethodGet, "/sessions/abc/report", 1},
		{http.MethodGet, "/health", 1},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if got := requestCost(req); got != tc.want {
			t.Errorf("requestCost(%s %s) = %v, want %v", tc.method, tc.path, got, tc.want)
		}
	}
}
