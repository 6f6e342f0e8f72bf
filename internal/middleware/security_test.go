package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/costtrack/costtrack/internal/handler/dto"
)

func TestSecurity(t *testing.T) {
	tests := []struct {
		name        string
		hsts        bool
		checkHeader string
		wantValue   string
	}{
		{"X-Content-Type-Options is set", false, "X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options is set", false, "X-Frame-Options", "DENY"},
		{"Referrer-Policy is set", false, "Referrer-Policy", "strict-origin-when-cross-origin"},
		{"CSP is set", false, "Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
		{"Cache-Control is no-store", false, "Cache-Control", "no-store"},
		{"HSTS is set behind TLS", true, "Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
		{"HSTS is not set without TLS", false, "Strict-Transport-Security", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Security(SecurityConfig{HSTS: tt.hsts})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if got := rec.Header().Get(tt.checkHeader); got != tt.wantValue {
				t.Errorf("%s = %q, want %q", tt.checkHeader, got, tt.wantValue)
			}
		})
	}
}

func TestMaxBodySize(t *testing.T) {
	const limit = 16
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := MaxBodySize(limit)(echo)

	t.Run("small body passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/costs", strings.NewReader(`{"a":1}`)))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("declared oversize body rejected with JSON", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/costs", strings.NewReader(strings.Repeat("x", limit+1))))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413", rec.Code)
		}
		var body dto.ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Code != dto.CodePayloadTooLarge {
			t.Errorf("code = %q", body.Code)
		}
	})

	t.Run("streamed oversize body capped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/costs", strings.NewReader(strings.Repeat("x", limit*4)))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", rec.Code)
		}
	})
}
