package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newTestRateLimiter(t *testing.T, cfg RateLimiterConfig) *RateLimiter {
	t.Helper()
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	rl := NewRateLimiter(cfg, discardLogger())
	t.Cleanup(rl.Stop)
	return rl
}

func requestFrom(method, path, remoteAddr string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	return req
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// --- API全般 ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 2, GeneralBurst: 5, InquiryRate: 1, InquiryBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom(http.MethodGet, "/api/cars", "203.0.113.10:5555"))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 0.5, GeneralBurst: 2, InquiryRate: 1, InquiryBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler)

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestFrom(http.MethodGet, "/api/cars", "203.0.113.10:1"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom(http.MethodGet, "/api/cars", "203.0.113.10:2"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil {
		t.Fatalf("Retry-After is not a number: %q", resp.Header.Get("Retry-After"))
	}
	if retryAfter != 2 {
		t.Errorf("Retry-After = %d, want 2", retryAfter)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q, want RATE_LIMIT_EXCEEDED", body.Code)
	}
	if body.Category != "system" {
		t.Errorf("category = %q, want system", body.Category)
	}
}

func TestRateLimitMiddleware_IsolatesClients(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 0.1, GeneralBurst: 1, InquiryRate: 1, InquiryBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, requestFrom(http.MethodGet, "/api/cars", "198.51.100.1:1000"))
	blocked := httptest.NewRecorder()
	handler.ServeHTTP(blocked, requestFrom(http.MethodGet, "/api/cars", "198.51.100.1:1001"))
	other := httptest.NewRecorder()
	handler.ServeHTTP(other, requestFrom(http.MethodGet, "/api/cars", "198.51.100.2:1000"))

	if first.Code != http.StatusOK || blocked.Code != http.StatusTooManyRequests || other.Code != http.StatusOK {
		t.Errorf("codes = %d, %d, %d; want 200, 429, 200", first.Code, blocked.Code, other.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestRateLimitMiddleware_AdminKeyedByAdminID(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 0.1, GeneralBurst: 1, InquiryRate: 1, InquiryBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler)

	anon := httptest.NewRecorder()
	handler.ServeHTTP(anon, requestFrom(http.MethodGet, "/api/cars", "192.0.2.7:1"))

	req := requestFrom(http.MethodGet, "/api/admin/inquiries", "192.0.2.7:2")
	req = req.WithContext(ContextWithAdminID(req.Context(), "admin"))
	admin := httptest.NewRecorder()
	handler.ServeHTTP(admin, req)

	if anon.Code != http.StatusOK || admin.Code != http.StatusOK {
		t.Errorf("codes = %d, %d; want 200, 200", anon.Code, admin.Code)
	}
}

// --- 問い合わせ送信 ---

func TestInquiryRateLimit_IndependentFromGeneralLimit(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 10, GeneralBurst: 10, InquiryRate: 0.1, InquiryBurst: 2})
	handler := rl.GeneralMiddleware()(rl.InquiryMiddleware()(okHandler))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom(http.MethodPost, "/api/cars/1/inquiries", "203.0.113.50:9"))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	browse := rl.GeneralMiddleware()(okHandler)
	w := httptest.NewRecorder()
	browse.ServeHTTP(w, requestFrom(http.MethodGet, "/api/cars", "203.0.113.50:9"))
	if w.Code != http.StatusOK {
		t.Errorf("general request after inquiry limit: status = %d, want 200", w.Code)
	}
	if rl.InquiryLimiterCount() != 1 {
		t.Errorf("InquiryLimiterCount() = %d, want 1", rl.InquiryLimiterCount())
	}
}

// --- クリーンアップ ---

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 2, GeneralBurst: 5, InquiryRate: 1, InquiryBurst: 1, CleanupInterval: time.Hour})
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.GeneralMiddleware()(okHandler).ServeHTTP(httptest.NewRecorder(), requestFrom(http.MethodGet, "/", "10.0.0.1:1"))
	rl.InquiryMiddleware()(okHandler).ServeHTTP(httptest.NewRecorder(), requestFrom(http.MethodPost, "/", "10.0.0.1:1"))

	now = now.Add(90 * time.Minute)
	rl.GeneralMiddleware()(okHandler).ServeHTTP(httptest.NewRecorder(), requestFrom(http.MethodGet, "/", "10.0.0.2:1"))

	now = now.Add(45 * time.Minute)
	rl.cleanup()

	if got := rl.GeneralLimiterCount(); got != 1 {
		t.Errorf("GeneralLimiterCount() = %d, want 1", got)
	}
	if got := rl.InquiryLimiterCount(); got != 0 {
		t.Errorf("InquiryLimiterCount() = %d, want 0", got)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig(), discardLogger())
	rl.Stop()
	rl.Stop()
}

// --- 設定値 ---

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralRate != 2.0 {
		t.Errorf("GeneralRate = %f, want 2.0", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.InquiryBurst != 5 {
		t.Errorf("InquiryBurst = %d, want 5", cfg.InquiryBurst)
	}
	if cfg.InquiryRate <= 0 {
		t.Error("InquiryRate should be positive")
	}
}

func TestClientKey(t *testing.T) {
	req := requestFrom(http.MethodGet, "/", "[2001:db8::1]:443")
	if got := ClientKey(req); got != "ip:2001:db8::1" {
		t.Errorf("ClientKey() = %q, want %q", got, "ip:2001:db8::1")
	}

	req = requestFrom(http.MethodGet, "/", "unix-socket")
	if got := ClientKey(req); got != "ip:unix-socket" {
		t.Errorf("ClientKey() = %q, want %q", got, "ip:unix-socket")
	}
}
