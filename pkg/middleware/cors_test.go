package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name        string
		origins     []string
		origin      string
		method      string
		preflight   string
		reqHeaders  string
		wantOrigin  string
		wantHeaders string
	}{
		{
			name:       "default origin when none configured",
			origin:     DefaultOrigin,
			method:     http.MethodGet,
			wantOrigin: DefaultOrigin,
		},
		{
			name:   "other origins refused by default",
			origin: "http://qc.example.com",
			method: http.MethodGet,
		},
		{
			name:       "configured origin",
			origins:    []string{"http://qc.example.com"},
			origin:     "http://qc.example.com",
			method:     http.MethodGet,
			wantOrigin: "http://qc.example.com",
		},
		{
			name:    "configured list replaces default",
			origins: []string{"http://qc.example.com"},
			origin:  DefaultOrigin,
			method:  http.MethodGet,
		},
		{
			name:        "preflight with bearer token",
			origin:      DefaultOrigin,
			method:      http.MethodOptions,
			preflight:   http.MethodGet,
			reqHeaders:  "Authorization",
			wantOrigin:  DefaultOrigin,
			wantHeaders: "Authorization",
		},
		{
			name:        "preflight login post",
			origin:      DefaultOrigin,
			method:      http.MethodOptions,
			preflight:   http.MethodPost,
			reqHeaders:  "Content-Type",
			wantOrigin:  DefaultOrigin,
			wantHeaders: "Content-Type",
		},
		{
			name:      "preflight delete refused",
			origin:    DefaultOrigin,
			method:    http.MethodOptions,
			preflight: http.MethodDelete,
		},
		{
			name:       "preflight unknown header refused",
			origin:     DefaultOrigin,
			method:     http.MethodOptions,
			preflight:  http.MethodGet,
			reqHeaders: "X-CSRF-Token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/presence", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight != "" {
				req.Header.Set("Access-Control-Request-Method", tt.preflight)
			}
			if tt.reqHeaders != "" {
				req.Header.Set("Access-Control-Request-Headers", tt.reqHeaders)
			}

			rec := httptest.NewRecorder()
			CORS(tt.origins)(handler).ServeHTTP(rec, req)

			if acao := rec.Header().Get("Access-Control-Allow-Origin"); acao != tt.wantOrigin {
				t.Errorf("expected Access-Control-Allow-Origin %q, got %q", tt.wantOrigin, acao)
			}
			if acah := rec.Header().Get("Access-Control-Allow-Headers"); !strings.EqualFold(acah, tt.wantHeaders) {
				t.Errorf("expected Access-Control-Allow-Headers %q, got %q", tt.wantHeaders, acah)
			}
			if acac := rec.Header().Get("Access-Control-Allow-Credentials"); acac != "" {
				t.Errorf("expected no Access-Control-Allow-Credentials, got %q", acac)
			}
		})
	}
}
