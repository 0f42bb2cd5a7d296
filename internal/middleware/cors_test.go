package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSMiddleware(t *testing.T) {
	const origins = "https://autowheel.lk, https://admin.autowheel.lk"

	tests := []struct {
		name        string
		method      string
		origin      string
		wantOrigin  string
		wantStatus  int
		wantHandled bool
	}{
		{"公開サイトからのGET", http.MethodGet, "https://autowheel.lk", "https://autowheel.lk", http.StatusOK, true},
		{"管理画面からのPATCH", http.MethodPatch, "https://admin.autowheel.lk", "https://admin.autowheel.lk", http.StatusOK, true},
		{"未許可のOriginは先頭の許可Originを返す", http.MethodGet, "https://evil.example", "https://autowheel.lk", http.StatusOK, true},
		{"Originなし", http.MethodPost, "", "https://autowheel.lk", http.StatusOK, true},
		{"プリフライト", http.MethodOptions, "https://admin.autowheel.lk", "https://admin.autowheel.lk", http.StatusNoContent, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handled := false
			handler := NewCORSMiddleware(origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handled = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/cars", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if handled != tt.wantHandled {
				t.Errorf("handled = %v, want %v", handled, tt.wantHandled)
			}
			h := w.Header()
			if got := h.Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if h.Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("Allow-Credentials should be true")
			}
			if h.Get("Vary") != "Origin" {
				t.Errorf("Vary = %q, want Origin", h.Get("Vary"))
			}
			if got := h.Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization, X-CSRF-Token" {
				t.Errorf("Allow-Headers = %q", got)
			}
		})
	}
}
