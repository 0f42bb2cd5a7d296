// Package auth は管理者の認証とセッショントークンの発行・検証を提供する。
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/autowheel/internal/model"
)

// AdminID は唯一の管理者アカウントを表すID。トークンのsubjectに入る。
const AdminID = "admin"

// ErrInvalidToken はセッショントークンが無効または期限切れであることを表す。
var ErrInvalidToken = errors.New("invalid session token")

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	AdminEmail        string
	AdminPasswordHash string // bcryptハッシュ
	SessionSecret     string
	SessionMaxAge     int // セッション有効期間（秒）
}

// Claims はセッショントークンのクレーム。
type Claims struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Session は発行したセッショントークンと有効期限。
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Admin はログイン中の管理者を表す。
type Admin struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Service は管理者認証のビジネスロジックを提供する。
type Service struct {
	config ServiceConfig
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(config ServiceConfig) *Service {
	return &Service{config: config, now: time.Now}
}

// Login はメールアドレスとパスワードを照合し、セッションを発行する。
// どちらが誤っていても同じエラーを返す。
func (s *Service) Login(email, password string) (*Session, error) {
	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))),
		[]byte(strings.ToLower(s.config.AdminEmail)),
	) == 1
	passwordOK := CheckPasswordHash(password, s.config.AdminPasswordHash)
	if !emailOK || !passwordOK {
		return nil, model.NewInvalidCredentialsError()
	}

	now := s.now()
	expiresAt := now.Add(time.Duration(s.config.SessionMaxAge) * time.Second)
	claims := &Claims{
		Email:   s.config.AdminEmail,
		IsAdmin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   AdminID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.SessionSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &Session{Token: token, ExpiresAt: expiresAt}, nil
}

// Verify はセッショントークンを検証し、管理者情報を返す。
func (s *Service) Verify(token string) (*Admin, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.SessionSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.IsAdmin || claims.Subject != AdminID {
		return nil, ErrInvalidToken
	}

	return &Admin{ID: claims.Subject, Email: claims.Email}, nil
}

// HashPassword はパスワードのbcryptハッシュを生成する。ADMIN_PASSWORD_HASHの作成に使う。
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPasswordHash は平文パスワードとbcryptハッシュを照合する。
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
