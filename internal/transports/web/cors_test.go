package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSPolicy(t *testing.T) {
	h := newTestAdapter(t, Config{CORSAllowedOrigins: []string{"https://ops.example"}}).Handler()

	cases := []struct {
		name   string
		origin string
		method string
		status int
	}{
		{"allowed preflight", "https://ops.example", http.MethodDelete, http.StatusNoContent},
		{"method denied", "https://ops.example", http.MethodPut, http.StatusForbidden},
		{"origin denied", "https://evil.example", http.MethodGet, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/v1/regions/orders", nil)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("Access-Control-Request-Method", tc.method)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestSanitizeRequestID(t *testing.T) {
	for in, want := range map[string]string{
		"abc-123":                "abc-123",
		" trace:1.2_x ":          "trace:1.2_x",
		"bad id":                 "",
		"semi;colon":             "",
		string(make([]byte, 65)): "",
	} {
		if got := sanitizeRequestID(in); got != want {
			t.Fatalf("sanitizeRequestID(%q) = %q, want %q", in, got, want)
		}
	}
}
