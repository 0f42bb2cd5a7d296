package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/autowheel/internal/asset"
	"github.com/hitoshi/autowheel/internal/auth"
	"github.com/hitoshi/autowheel/internal/catalog"
	"github.com/hitoshi/autowheel/internal/config"
	"github.com/hitoshi/autowheel/internal/console"
	"github.com/hitoshi/autowheel/internal/database"
	"github.com/hitoshi/autowheel/internal/handler"
	"github.com/hitoshi/autowheel/internal/handoff"
	"github.com/hitoshi/autowheel/internal/inquiry"
	"github.com/hitoshi/autowheel/internal/kv"
	"github.com/hitoshi/autowheel/internal/logger"
	"github.com/hitoshi/autowheel/internal/metrics"
	"github.com/hitoshi/autowheel/internal/middleware"
	"github.com/hitoshi/autowheel/internal/model"
	"github.com/hitoshi/autowheel/internal/notify"
	"github.com/hitoshi/autowheel/internal/repository"
	"github.com/hitoshi/autowheel/internal/security"
	"github.com/hitoshi/autowheel/internal/story"
	"github.com/hitoshi/autowheel/internal/tracing"
	"github.com/hitoshi/autowheel/internal/worker/cleanup"
	"github.com/hitoshi/autowheel/internal/worker/followup"
)

// defaultPool はAPIサーバーとワーカーで共通のコネクションプール設定。
var defaultPool = database.PoolConfig{
	MaxOpenConns:    25,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
}

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。wはログの出力先。
func Run(w io.Writer, args []string) error {
	return run(os.Stdin, os.Stdout, w, args)
}

func run(in io.Reader, out, logw io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// 軽量サブコマンドはフル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandHashPassword:
		return runHashPassword(in, out, args[1:])
	}

	cfg, err := Init(logw)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	log := slog.Default()

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("kv_backend", cfg.KVBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg, log)
	case CommandMigrate:
		return runMigrate(cfg, log)
	case CommandBrowse:
		return runBrowseFromDB(ctx, cfg, in, out, log)
	default:
		return runServe(ctx, cfg, log)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config, log *slog.Logger) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, defaultPool)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(db, 5*time.Second); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("database connection established")
	return db, nil
}

// openStore はKV_BACKENDに応じた問い合わせキューの保存先を開く。
// 返すclose関数はシャットダウン時に呼ぶ。
func openStore(ctx context.Context, cfg *config.Config, db *sql.DB, log *slog.Logger) (kv.Store, func(), error) {
	switch cfg.KVBackend {
	case config.KVBackendMemory:
		log.Warn("in-memory inquiry queue is not shared between processes")
		return kv.NewMemory(), func() {}, nil
	case config.KVBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store := kv.NewRedis(client, log)
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("failed to close redis store", slog.String("error", err.Error()))
			}
		}, nil
	default:
		store := kv.NewPostgres(db, cfg.DatabaseURL, log)
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("failed to close postgres store", slog.String("error", err.Error()))
			}
		}, nil
	}
}

// newDispatcher は設定されている外部チャネルでDispatcherを構築する。
// チャネルが1つもなければnilを返し、問い合わせはキューへの保存だけになる。
func newDispatcher(cfg *config.Config, log *slog.Logger, collector metrics.MetricsCollector) (*handoff.Dispatcher, func(), error) {
	var channels []handoff.Channel
	closeFn := func() {}

	if cfg.SMTPEnabled() {
		mailer, err := handoff.NewMailer(handoff.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			return nil, nil, err
		}
		channels = append(channels, handoff.NewMailChannel(mailer, cfg.DealerEmail))
	}

	if cfg.NATSURL != "" {
		events, err := handoff.NewEventChannel(cfg.NATSURL)
		if err != nil {
			return nil, nil, err
		}
		channels = append(channels, events)
		closeFn = events.Close
	}

	if len(channels) == 0 {
		log.Info("no handoff channels configured")
		return nil, closeFn, nil
	}

	d := handoff.NewDispatcher(log, collector, channels...).WithRetry(handoff.DefaultRetryPolicy)
	log.Info("handoff channels configured", slog.Any("channels", d.Channels()))
	return d, closeFn, nil
}

// newAssetService はMinIOが設定されていればアップロード先付きのasset.Serviceを返す。
func newAssetService(ctx context.Context, cfg *config.Config, guard security.SSRFGuardService, log *slog.Logger, collector metrics.MetricsCollector) (*asset.Service, error) {
	var uploader asset.Uploader
	if cfg.AssetStoreEnabled() {
		store, err := asset.NewMinIOStore(ctx, asset.MinIOConfig{
			Endpoint:      cfg.MinIOEndpoint,
			AccessKey:     cfg.MinIOAccessKey,
			SecretKey:     cfg.MinIOSecretKey,
			Bucket:        cfg.MinIOBucket,
			UseSSL:        cfg.MinIOUseSSL,
			PublicBaseURL: cfg.AssetPublicBaseURL,
		}, log)
		if err != nil {
			return nil, err
		}
		uploader = store
	} else {
		log.Info("asset store disabled", slog.String("reason", "MINIO_ENDPOINT is not set"))
	}
	return asset.NewService(uploader, guard, cfg.AssetMaxSize, log, collector), nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// 1. DB接続
	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. トレーシングとメトリクス
	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. 問い合わせキューと変更通知
	store, closeStore, err := openStore(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeStore()

	bus := notify.NewBus(log)
	stopBridge, err := notify.Bridge(ctx, bus, store, cfg.InquiryQueueKey)
	if err != nil {
		return fmt.Errorf("failed to subscribe to inquiry queue changes: %w", err)
	}
	defer stopBridge()

	queue := inquiry.NewQueue(store, cfg.InquiryQueueKey)

	// 4. 外部チャネル
	dispatcher, closeChannels, err := newDispatcher(cfg, log, collector)
	if err != nil {
		return err
	}
	defer closeChannels()

	// 5. ドメインサービス
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	catalogService := catalog.NewService(repository.NewPostgresListingRepo(db), sanitizer)
	storyService := story.NewService(repository.NewPostgresStoryRepo(db), ssrfGuard, sanitizer)
	assetService, err := newAssetService(ctx, cfg, ssrfGuard, log, collector)
	if err != nil {
		return err
	}

	var handoffs inquiry.HandoffDispatcher
	if dispatcher != nil {
		handoffs = dispatcher
	}
	submitter := inquiry.NewSubmitter(queue, bus, handoffs, log,
		inquiry.WithMetrics(collector),
		inquiry.WithDestination(cfg.WhatsAppNumber),
	)

	inquiryConsole := console.New(queue, bus, log, console.WithDestination(cfg.WhatsAppNumber))
	streamer := handler.InquiryStreamerFunc(func(ctx context.Context, push func([]model.Inquiry)) func() {
		return console.Watch(ctx, inquiryConsole, bus, cfg.ConsoleDebounce, push).Close
	})

	authService := auth.NewService(auth.ServiceConfig{
		AdminEmail:        cfg.AdminEmail,
		AdminPasswordHash: cfg.AdminPasswordHash,
		SessionSecret:     cfg.SessionSecret,
		SessionMaxAge:     cfg.SessionMaxAge,
	})

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitInquiry),
		log,
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		TokenVerifier:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		StatusRecorder: collector,
		HSTS:           cfg.CookieSecure,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		CatalogService:   catalogService,
		InquirySubmitter: submitter,
		InquiryConsole:   inquiryConsole,
		InquiryStreamer:  streamer,

		StoryService: storyService,
		AssetService: assetService,
	})

	// 7. HTTPサーバーの起動
	// SSEはハンドラー側でResponseControllerにより書き込み期限を外す
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// フォローアップ通知（SMTP設定時のみ）と問い合わせの自動削除をctxがキャンセルされるまで実行する。
func runWorker(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	store, closeStore, err := openStore(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeStore()

	collector := metrics.NewCollector(prometheus.NewRegistry())
	queue := inquiry.NewQueue(store, cfg.InquiryQueueKey)
	// ワーカー内の通知はプロセス内に閉じる。APIサーバーへはKVの変更通知で伝わる
	bus := notify.NewBus(log)

	done := make(chan struct{})
	jobs := 0

	if cfg.SMTPEnabled() {
		mailer, err := handoff.NewMailer(handoff.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			return err
		}
		job := followup.NewJob(queue, bus, mailer, cfg.DealerEmail, log,
			followup.WithMetrics(collector),
			followup.WithDestination(cfg.WhatsAppNumber),
		)
		jobs++
		go func() {
			job.Start(ctx, cfg.FollowUpInterval)
			done <- struct{}{}
		}()
	} else {
		log.Info("follow-up reminders disabled", slog.String("reason", "SMTP is not configured"))
	}

	cleanupJob := cleanup.NewCleanupJob(queue, bus, log, collector)
	cleanupJob.RetentionDays = cfg.InquiryRetentionDays
	jobs++
	go func() {
		cleanupJob.Start(ctx, cfg.CleanupInterval)
		done <- struct{}{}
	}()

	log.Info("worker starting",
		slog.Duration("followup_interval", cfg.FollowUpInterval),
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("retention_days", cfg.InquiryRetentionDays),
	)

	for i := 0; i < jobs; i++ {
		<-done
	}

	log.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	log.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL, log); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully")
	return nil
}

// runBrowseFromDB は現在の在庫を読み込み、対話的な閲覧セッションを開始する。
func runBrowseFromDB(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, log *slog.Logger) error {
	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	service := catalog.NewService(repository.NewPostgresListingRepo(db), security.NewContentSanitizer())
	listings, err := service.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to load listings: %w", err)
	}
	return runBrowse(in, out, listings, cfg.SearchDebounce)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
