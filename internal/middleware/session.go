// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/autowheel/internal/auth"
)

// SessionCookieName は管理者セッショントークンを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// adminIDContextKey はリクエストコンテキストに管理者IDを格納するためのキー。
var adminIDContextKey = contextKey("admin_id")

// TokenVerifier はセッショントークンの検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type TokenVerifier interface {
	Verify(token string) (*auth.Admin, error)
}

// NewAdminMiddleware はセッショントークンを検証し、管理者IDを
// リクエストコンテキストに注入するミドルウェアを返す。
// トークンは Authorization: Bearer ヘッダー、次にHTTP Only Cookieの順で探す。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAdminMiddleware(verifier TokenVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			admin, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("admin session rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := ContextWithAdminID(r.Context(), admin.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionToken はリクエストからセッショントークンを取り出す。見つからなければ空文字を返す。
func SessionToken(r *http.Request) string {
	if token, ok := bearerToken(r); ok {
		return token
	}
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AdminIDFromContext はリクエストコンテキストから管理者IDを取得する。
// 管理者ミドルウェアを通過したリクエストでのみ有効。
func AdminIDFromContext(ctx context.Context) (string, error) {
	adminID, ok := ctx.Value(adminIDContextKey).(string)
	if !ok || adminID == "" {
		return "", fmt.Errorf("admin ID not found in context")
	}
	return adminID, nil
}

// ContextWithAdminID はコンテキストに管理者IDを注入する。
func ContextWithAdminID(ctx context.Context, adminID string) context.Context {
	return context.WithValue(ctx, adminIDContextKey, adminID)
}
