package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/autowheel/internal/middleware"
)

// HealthChecker は依存先の疎通確認を行う。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig
	StatusRecorder    middleware.StatusRecorder
	HSTS              bool

	// ヘルスチェックとメトリクス
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 車両・問い合わせ
	CatalogService   CatalogServiceInterface
	InquirySubmitter InquirySubmitter
	InquiryConsole   InquiryConsoleInterface
	InquiryStreamer  InquiryStreamer

	// 体験談・画像
	StoryService StoryServiceInterface
	AssetService AssetServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → SecurityHeaders → CORS → RateLimit(General)
//	管理者ルート: → Admin → CSRF
//	問い合わせ送信: → RateLimit(Inquiry)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Logger)
	carHandler := NewCarHandler(deps.CatalogService)
	inquiryHandler := NewInquiryHandler(deps.CatalogService, deps.InquirySubmitter)
	adminInquiryHandler := NewAdminInquiryHandler(deps.InquiryConsole, deps.InquiryStreamer)
	storyHandler := NewStoryHandler(deps.StoryService)
	uploadHandler := NewUploadHandler(deps.AssetService)

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// --- 認証不要のルート ---

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

		r.Route("/api/cars", func(r chi.Router) {
			r.Get("/", carHandler.ListCars)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", carHandler.GetCar)
				r.Post("/view", carHandler.RecordView)
				// POST /api/cars/{id}/inquiries - 問い合わせ送信（送信専用レート制限を追加）
				r.With(deps.RateLimiter.InquiryMiddleware()).Post("/inquiries", inquiryHandler.Submit)
			})
		})

		r.Route("/api/success-stories", func(r chi.Router) {
			r.Get("/", storyHandler.ListStories)
			r.Get("/{id}", storyHandler.GetStory)
		})

		// --- 管理者ルート ---
		// ミドルウェアスタック: Admin → CSRF
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.NewAdminMiddleware(deps.TokenVerifier, deps.Logger))
			r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

			r.Route("/cars", func(r chi.Router) {
				r.Post("/", carHandler.CreateCar)
				r.Put("/{id}", carHandler.UpdateCar)
				r.Delete("/{id}", carHandler.DeleteCar)
			})

			r.Route("/inquiries", func(r chi.Router) {
				r.Get("/", adminInquiryHandler.ListInquiries)
				r.Get("/stats", adminInquiryHandler.Stats)
				r.Get("/stream", adminInquiryHandler.Stream)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", adminInquiryHandler.GetInquiry)
					r.Patch("/status", adminInquiryHandler.UpdateStatus)
					r.Delete("/", adminInquiryHandler.DeleteInquiry)
					r.Get("/contact", adminInquiryHandler.Contact)
				})
			})

			r.Route("/success-stories", func(r chi.Router) {
				r.Post("/", storyHandler.CreateStory)
				r.Put("/{id}", storyHandler.UpdateStory)
				r.Delete("/{id}", storyHandler.DeleteStory)
			})

			r.Route("/uploads", func(r chi.Router) {
				r.Post("/", uploadHandler.Upload)
				r.Post("/remote", uploadHandler.Import)
			})
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
