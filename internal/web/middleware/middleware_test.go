package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/claimdesk/internal/config"
	"github.com/JonMunkholm/claimdesk/internal/core"
)

// ---- TrustedRealIP Tests ----

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"no proxies ignores headers", nil, "1.2.3.4:5555", map[string]string{"X-Real-IP": "9.9.9.9"}, "1.2.3.4:5555"},
		{"untrusted proxy ignored", []string{"10.0.0.0/8"}, "1.2.3.4:5555", map[string]string{"X-Real-IP": "9.9.9.9"}, "1.2.3.4:5555"},
		{"trusted X-Real-IP", []string{"10.0.0.0/8"}, "10.1.2.3:5555", map[string]string{"X-Real-IP": "9.9.9.9"}, "9.9.9.9"},
		{"trusted single host", []string{"127.0.0.1"}, "127.0.0.1:80", map[string]string{"X-Forwarded-For": "8.8.8.8, 10.0.0.1"}, "8.8.8.8"},
		{"invalid header kept", []string{"10.0.0.0/8"}, "10.1.2.3:5555", map[string]string{"X-Real-IP": "not-an-ip"}, "10.1.2.3:5555"},
		{"bad cidr skipped", []string{"garbage", "10.0.0.0/8"}, "10.1.2.3:5555", map[string]string{"X-Real-IP": "9.9.9.9"}, "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAddr, gotCtx string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAddr = r.RemoteAddr
				gotCtx = core.IPAddressFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if gotAddr != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", gotAddr, tt.want)
			}
			if want := extractIP(tt.want).String(); gotCtx != want {
				t.Errorf("context IP = %q, want %q", gotCtx, want)
			}
		})
	}
}

// ---- APIKeyAuth Tests ----

func TestAPIKeyAuth(t *testing.T) {
	cfg := config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"alpha", "beta"}}
	h := APIKeyAuth(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"gamma", http.StatusForbidden},
		{"alph", http.StatusForbidden},
		{"alpha", http.StatusNoContent},
		{"beta", http.StatusNoContent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/claims", nil)
		if tt.key != "" {
			req.Header.Set("X-API-Key", tt.key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("key %q: status = %d, want %d", tt.key, rec.Code, tt.want)
		}
	}
}

func TestIsValidAPIKey_NoKeys(t *testing.T) {
	if isValidAPIKey("anything", nil) {
		t.Error("no configured keys must reject every key")
	}
}

// ---- RateLimiter Tests ----

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(2)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Error("third request within the minute should be limited")
	}
	if !rl.Allow("b") {
		t.Error("limits are per IP")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(10)
	rl.Allow("a")
	rl.visitors["a"].lastSeen = time.Now().Add(-time.Hour)
	rl.Allow("b")

	rl.Cleanup()

	if _, ok := rl.visitors["a"]; ok {
		t.Error("idle visitor not removed")
	}
	if _, ok := rl.visitors["b"]; !ok {
		t.Error("active visitor removed")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "5.5.5.5:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: status = %d, want %d", i, rec.Code, want)
		}
	}
}

// ---- SecurityHeaders Tests ----

func TestSecurityHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	SecurityHeaders(true)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("CSP missing")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("X-Frame-Options missing")
	}

	rec = httptest.NewRecorder()
	SecurityHeaders(false)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("Content-Security-Policy") != "" {
		t.Error("CSP set while disabled")
	}
}
