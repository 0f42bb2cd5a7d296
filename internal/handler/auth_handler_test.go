package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/autowheel/internal/auth"
	"github.com/hitoshi/autowheel/internal/middleware"
	"github.com/hitoshi/autowheel/internal/model"
)

var testAuthConfig = AuthHandlerConfig{
	CookieDomain:  "localhost",
	CookieSecure:  true,
	SessionMaxAge: 3600,
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Login_SetsSessionCookie(t *testing.T) {
	expires := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := &mockAuthService{
		loginFn: func(email, password string) (*auth.Session, error) {
			if email != "admin@example.com" || password != "s3cret-pass" {
				t.Errorf("Login(%q, %q)", email, password)
			}
			return &auth.Session{Token: "tok-123", ExpiresAt: expires}, nil
		},
		verifyFn: func(token string) (*auth.Admin, error) {
			return &auth.Admin{ID: auth.AdminID, Email: "admin@example.com"}, nil
		},
	}
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))
	h := NewAuthHandler(svc, testAuthConfig, logger)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email": "admin@example.com", "password": "s3cret-pass"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	cookie := findCookie(w, middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("session cookie not set")
	}
	if cookie.Value != "tok-123" || !cookie.HttpOnly || !cookie.Secure || cookie.MaxAge != 3600 {
		t.Errorf("cookie = %+v", cookie)
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", cookie.SameSite)
	}

	var body loginResponse
	json.NewDecoder(w.Body).Decode(&body)
	if body.Token != "tok-123" || !body.ExpiresAt.Equal(expires) || body.Admin.ID != auth.AdminID {
		t.Errorf("body = %+v", body)
	}

	if !strings.Contains(logBuf.String(), `"msg":"admin logged in"`) {
		t.Errorf("login should be logged, got: %s", logBuf.String())
	}
	if strings.Contains(logBuf.String(), "s3cret-pass") {
		t.Error("password must not be logged")
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email": "admin@example.com", "password": "wrong"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidCredentials)
	}
	if findCookie(w, middleware.SessionCookieName) != nil {
		t.Error("no cookie should be set on failure")
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig, discardLogger())

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	cookie := findCookie(w, middleware.SessionCookieName)
	if cookie == nil || cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Errorf("cookie = %+v, want an expired session cookie", cookie)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	svc := &mockAuthService{
		verifyFn: func(token string) (*auth.Admin, error) {
			if token == "good" {
				return &auth.Admin{ID: auth.AdminID, Email: "admin@example.com"}, nil
			}
			return nil, auth.ErrInvalidToken
		},
	}
	h := NewAuthHandler(svc, testAuthConfig, discardLogger())

	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  int
	}{
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "good"})
		}, http.StatusOK},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, http.StatusOK},
		{"invalid token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer bad") }, http.StatusUnauthorized},
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			h.Me(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
