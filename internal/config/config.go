package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// KVバックエンドの種類。
const (
	KVBackendPostgres = "postgres"
	KVBackendRedis    = "redis"
	KVBackendMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Admin
	AdminEmail        string
	AdminPasswordHash string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Inquiry queue
	KVBackend       string
	InquiryQueueKey string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Handoff
	WhatsAppNumber string
	NATSURL        string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SMTPFrom       string
	DealerEmail    string

	// Asset
	MinIOEndpoint      string
	MinIOAccessKey     string
	MinIOSecretKey     string
	MinIOBucket        string
	MinIOUseSSL        bool
	AssetPublicBaseURL string
	AssetMaxSize       int64

	// Rate Limit
	RateLimitGeneral int
	RateLimitInquiry int

	// Debounce
	SearchDebounce  time.Duration
	ConsoleDebounce time.Duration

	// Worker
	FollowUpInterval     time.Duration
	InquiryRetentionDays int
	CleanupInterval      time.Duration

	// Logging / Tracing
	LogLevel     string
	OTLPEndpoint string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は、未設定のものをまとめてエラーで返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.AdminEmail = os.Getenv("ADMIN_EMAIL")
	if cfg.AdminEmail == "" {
		missing = append(missing, "ADMIN_EMAIL")
	}

	cfg.AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")
	if cfg.AdminPasswordHash == "" {
		missing = append(missing, "ADMIN_PASSWORD_HASH")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvPositiveInt("SESSION_MAX_AGE", 86400)

	cfg.KVBackend = strings.ToLower(getEnvString("KV_BACKEND", KVBackendPostgres))
	switch cfg.KVBackend {
	case KVBackendPostgres, KVBackendRedis, KVBackendMemory:
	default:
		return nil, fmt.Errorf("KV_BACKEND must be one of postgres, redis, memory: %q", cfg.KVBackend)
	}
	cfg.InquiryQueueKey = getEnvString("INQUIRY_QUEUE_KEY", "autowheel:inquiries")
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)

	cfg.WhatsAppNumber = getEnvString("WHATSAPP_NUMBER", "94771234567")
	cfg.NATSURL = getEnvString("NATS_URL", "")
	cfg.SMTPHost = getEnvString("SMTP_HOST", "")
	cfg.SMTPPort = getEnvPositiveInt("SMTP_PORT", 587)
	cfg.SMTPUser = getEnvString("SMTP_USER", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.SMTPFrom = getEnvString("SMTP_FROM", "")
	cfg.DealerEmail = getEnvString("DEALER_EMAIL", "")

	cfg.MinIOEndpoint = getEnvString("MINIO_ENDPOINT", "")
	cfg.MinIOAccessKey = getEnvString("MINIO_ACCESS_KEY", "")
	cfg.MinIOSecretKey = getEnvString("MINIO_SECRET_KEY", "")
	cfg.MinIOBucket = getEnvString("MINIO_BUCKET", "autowheel")
	cfg.MinIOUseSSL = getEnvBool("MINIO_USE_SSL", false)
	cfg.AssetPublicBaseURL = getEnvString("ASSET_PUBLIC_BASE_URL", "")
	cfg.AssetMaxSize = getEnvPositiveInt64("ASSET_MAX_SIZE", 10485760)

	cfg.RateLimitGeneral = getEnvPositiveInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitInquiry = getEnvPositiveInt("RATE_LIMIT_INQUIRY", 5)

	cfg.SearchDebounce = getEnvNonNegativeDuration("SEARCH_DEBOUNCE", 500*time.Millisecond)
	cfg.ConsoleDebounce = getEnvNonNegativeDuration("CONSOLE_DEBOUNCE", 250*time.Millisecond)

	cfg.FollowUpInterval = getEnvPositiveDuration("FOLLOWUP_INTERVAL", 15*time.Minute)
	cfg.InquiryRetentionDays = getEnvPositiveInt("INQUIRY_RETENTION_DAYS", 180)
	cfg.CleanupInterval = getEnvPositiveDuration("CLEANUP_INTERVAL", 24*time.Hour)

	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.OTLPEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// SMTPEnabled はメール送信に必要な設定が揃っているかを返す。
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != "" && c.DealerEmail != ""
}

// AssetStoreEnabled は画像ストレージが設定されているかを返す。
func (c *Config) AssetStoreEnabled() bool {
	return c.MinIOEndpoint != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvPositiveInt は0以下の値を未設定として扱う。
// 間隔や保持日数が0以下だとtickerのpanicや全件削除につながる。
func getEnvPositiveInt(key string, defaultVal int) int {
	if i := getEnvInt(key, defaultVal); i > 0 {
		return i
	}
	return defaultVal
}

func getEnvPositiveInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvPositiveDuration は0以下の値を未設定として扱う。time.NewTickerは0以下でpanicする。
func getEnvPositiveDuration(key string, defaultVal time.Duration) time.Duration {
	if d := getEnvDuration(key, defaultVal); d > 0 {
		return d
	}
	return defaultVal
}

// getEnvNonNegativeDuration は負の値を未設定として扱う。0はデバウンスなしを意味する。
func getEnvNonNegativeDuration(key string, defaultVal time.Duration) time.Duration {
	if d := getEnvDuration(key, defaultVal); d >= 0 {
		return d
	}
	return defaultVal
}
