package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/autowheel/internal/auth"
	"github.com/hitoshi/autowheel/internal/middleware"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(email, password string) (*auth.Session, error)
	Verify(token string) (*auth.Admin, error)
}

var _ AuthServiceInterface = (*auth.Service)(nil)

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は管理者ログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	logger  *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		logger:  logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Admin     auth.Admin `json:"admin"`
}

// Login は管理者の資格情報を検証し、セッションCookieを発行する。
// POST /auth/login
// Cookieを使えないクライアント向けに、同じトークンをレスポンスにも含める。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.service.Login(req.Email, req.Password)
	if err != nil {
		h.logger.Warn("admin login failed", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	admin, err := h.service.Verify(session.Token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(session.Token, h.config.SessionMaxAge))
	h.logger.Info("admin logged in", slog.String("admin_id", admin.ID))
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Admin:     *admin,
	})
}

// Logout はセッションCookieを破棄する。
// POST /auth/logout
// トークンはステートレスなので、サーバー側で消すものはない。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在ログイン中の管理者情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionToken(r)
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	admin, err := h.service.Verify(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, admin)
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
