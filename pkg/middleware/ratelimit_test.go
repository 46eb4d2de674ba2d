package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/curateio/curate/pkg/auth"
	"github.com/curateio/curate/pkg/contextkeys"
	"github.com/curateio/curate/pkg/identity"
)

func authedRequest(r *http.Request, authCtx *auth.AuthContext) *http.Request {
	return r.WithContext(contextkeys.WithAuth(r.Context(), authCtx))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_AllowAndRefill(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	})

	allowed := 0
	for i := 0; i < 20; i++ {
		if limiter.Allow("curator:alice") {
			allowed++
		}
	}
	if allowed != 12 {
		t.Errorf("Allowed %d requests, want window plus burst = 12", allowed)
	}

	time.Sleep(time.Second)
	if !limiter.Allow("curator:alice") {
		t.Error("Bucket should refill after the window passes")
	}
}

func TestRateLimiter_Remaining(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	})

	if got := limiter.Remaining("curator:bob"); got != 12 {
		t.Errorf("Fresh bucket remaining = %d, want 12", got)
	}
	limiter.Allow("curator:bob")
	if got := limiter.Remaining("curator:bob"); got != 11 {
		t.Errorf("Remaining after one request = %d, want 11", got)
	}
}

func TestRateLimiter_RefillCapsAtMax(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    100 * time.Millisecond,
		BurstSize:         5,
	})

	for i := 0; i < 5; i++ {
		limiter.Allow("curator:carol")
	}

	// Several full windows pass; refill must not stack beyond the cap.
	time.Sleep(500 * time.Millisecond)

	allowed := 0
	for i := 0; i < 20; i++ {
		if limiter.Allow("curator:carol") {
			allowed++
		}
	}
	if allowed != 15 {
		t.Errorf("Allowed %d requests after idle period, want 15", allowed)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    100 * time.Millisecond,
		BurstSize:         2,
	})

	limiter.Allow("ip:10.0.0.1")
	limiter.Allow("ip:10.0.0.2")
	if len(limiter.buckets) != 2 {
		t.Fatalf("Expected 2 buckets, got %d", len(limiter.buckets))
	}

	time.Sleep(300 * time.Millisecond)
	limiter.Cleanup()

	if len(limiter.buckets) != 0 {
		t.Errorf("Expected stale buckets to be dropped, got %d", len(limiter.buckets))
	}
}

func TestRateLimiter_StartCleanup(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    20 * time.Millisecond,
		BurstSize:         2,
	})
	limiter.Allow("ip:10.0.0.9")

	ctx, cancel := context.WithCancel(context.Background())
	limiter.StartCleanup(ctx)

	time.Sleep(100 * time.Millisecond)

	limiter.mu.RLock()
	count := len(limiter.buckets)
	limiter.mu.RUnlock()
	if count != 0 {
		t.Errorf("Expected background cleanup to drop stale buckets, got %d", count)
	}

	cancel()
	time.Sleep(50 * time.Millisecond)
	// If we reach here without crashing, the cleanup goroutine survived.
}

func TestNewRateLimiter_NilConfig(t *testing.T) {
	limiter := NewRateLimiter(nil)
	if limiter.config.RequestsPerWindow != DefaultRateLimitConfig().RequestsPerWindow {
		t.Error("Nil config should fall back to the default tier")
	}
}

func TestRateLimitTiers(t *testing.T) {
	anon := DefaultRateLimitConfig()
	user := PerUserRateLimitConfig()
	service := PerServiceRateLimitConfig()

	if user.RequestsPerWindow <= anon.RequestsPerWindow {
		t.Error("Authenticated tier should be more generous than anonymous")
	}
	if service.RequestsPerWindow <= user.RequestsPerWindow {
		t.Error("Service tier should be more generous than per-user")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "forwarded for",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			remoteAddr: "10.0.0.1:12345",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded for keeps only first hop",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.8"},
			remoteAddr: "10.0.0.1:12345",
			want:       "203.0.113.7",
		},
		{
			name:       "real ip",
			headers:    map[string]string{"X-Real-IP": "203.0.113.8"},
			remoteAddr: "10.0.0.1:12345",
			want:       "203.0.113.8",
		},
		{
			name:       "forwarded for wins over real ip",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "203.0.113.8"},
			remoteAddr: "10.0.0.1:12345",
			want:       "203.0.113.7",
		},
		{
			name:       "remote addr fallback",
			remoteAddr: "10.0.0.1:12345",
			want:       "10.0.0.1:12345",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitMiddleware_Classify(t *testing.T) {
	m := NewRateLimitMiddleware()

	anonReq := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	anonReq.RemoteAddr = "203.0.113.7:40000"
	limiter, key := m.classify(anonReq)
	if limiter != m.anonymousLimiter || key != "ip:203.0.113.7:40000" {
		t.Errorf("Anonymous request classified as (%p, %q)", limiter, key)
	}

	userReq := authedRequest(httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil), &auth.AuthContext{
		User:   &identity.User{ID: 12},
		Scopes: []auth.Scope{auth.ScopeWorkspaceRead},
	})
	limiter, key = m.classify(userReq)
	if limiter != m.userLimiter || key != "user:12" {
		t.Errorf("Session request classified as (%p, %q)", limiter, key)
	}

	svcReq := authedRequest(httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil), &auth.AuthContext{
		User:   &identity.User{ID: 12},
		Token:  &auth.APIToken{ID: 3, UserID: 12},
		Scopes: []auth.Scope{auth.ScopeAll},
	})
	limiter, key = m.classify(svcReq)
	if limiter != m.serviceLimiter || key != "user:12" {
		t.Errorf("Full-scope token classified as (%p, %q)", limiter, key)
	}
}

func TestRateLimitMiddleware_AnonymousLimit(t *testing.T) {
	m := NewRateLimitMiddleware()
	m.anonymousLimiter.config = &RateLimitConfig{
		RequestsPerWindow: 3,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	}
	handler := m.Handler(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
		req.RemoteAddr = "198.51.100.1:9000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i+1, rec.Code)
		}
		for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"} {
			if rec.Header().Get(h) == "" {
				t.Errorf("Request %d: header %s should be set", i+1, h)
			}
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req.RemoteAddr = "198.51.100.1:9000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 once the bucket is empty, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("Retry-After") == "0" {
		t.Errorf("Retry-After should be positive, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", rec.Header().Get("X-RateLimit-Remaining"))
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", rec.Header().Get("Content-Type"))
	}
	body := rec.Body.String()
	if !strings.Contains(body, "rate limit exceeded") || !strings.Contains(body, "retry_after") {
		t.Errorf("Unexpected 429 body: %s", body)
	}
}

func TestRateLimitMiddleware_UserLimit(t *testing.T) {
	m := NewRateLimitMiddleware()
	m.userLimiter.config = &RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	}
	handler := m.Handler(okHandler())

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil), &auth.AuthContext{
		User:   &identity.User{ID: 42},
		Scopes: []auth.Scope{auth.ScopeWorkspaceRead},
	})

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after exhausting the user bucket, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_IndependentClients(t *testing.T) {
	m := NewRateLimitMiddleware()
	m.anonymousLimiter.config = &RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	}
	handler := m.Handler(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	first.RemoteAddr = "198.51.100.1:9000"
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, first)
		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("First client request %d: expected 200, got %d", i+1, rec.Code)
		}
		if i == 2 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("First client should be limited, got %d", rec.Code)
		}
	}

	// A different address has its own bucket.
	second := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	second.RemoteAddr = "198.51.100.2:9000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Errorf("Second client: expected 200, got %d", rec.Code)
	}
}
