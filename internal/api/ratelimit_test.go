package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr with port", "203.0.113.7:5412", "", "203.0.113.7"},
		{"forwarded single", "10.0.0.1:80", "198.51.100.9", "198.51.100.9"},
		{"forwarded chain takes first", "10.0.0.1:80", "198.51.100.9, 10.0.0.2", "198.51.100.9"},
		{"forwarded with spaces", "10.0.0.1:80", "  198.51.100.9  ", "198.51.100.9"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/events", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := clientIP(r); got != tc.want {
				t.Errorf("clientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIPLimiterAllowsBurstThenBlocks(t *testing.T) {
	t.Parallel()

	l := &ipLimiter{
		entries: make(map[string]*ipLimiterEntry),
		rps:     rate.Limit(1),
		burst:   3,
		ttl:     time.Minute,
	}

	for i := 0; i < 3; i++ {
		if !l.allow("1.2.3.4") {
			t.Fatalf("request %d within burst was blocked", i+1)
		}
	}
	if l.allow("1.2.3.4") {
		t.Error("request past burst was allowed")
	}
	// Other clients have their own bucket.
	if !l.allow("5.6.7.8") {
		t.Error("independent client was blocked")
	}
}

func TestRateLimitMiddlewareBypassesHealthAndJobs(t *testing.T) {
	// Not parallel: leans on the process-wide limiter.
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := rateLimitMiddleware(next)

	for _, path := range []string{"/health", "/jobs/hourly"} {
		for i := 0; i < 100; i++ {
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, path, nil)
			r.RemoteAddr = "192.0.2.1:1234"
			h.ServeHTTP(rec, r)
			if rec.Code != http.StatusOK {
				t.Fatalf("%s request %d limited: %d", path, i+1, rec.Code)
			}
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := corsMiddleware(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/events", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
}
