// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"virology-test-service/config"
	"virology-test-service/internal/domain"
	"virology-test-service/internal/handler"
	"virology-test-service/internal/infra"
	"virology-test-service/internal/middleware"
	"virology-test-service/internal/repository"
	"virology-test-service/internal/usecase"
)

// sweepInterval は期限切れレコード掃除の実行間隔。
const sweepInterval = time.Hour

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()

	// ログレベル設定
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "DEBUG":
		logLevel = slog.LevelDebug
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg, logLevel)

	// DB初期化
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	db, err := infra.NewDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}

	// KMSクライアント初期化
	kmsClient, err := infra.NewKMSClient(ctx, cfg)
	if err != nil {
		slog.Error("failed to init KMS client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := kmsClient.Close(); closeErr != nil {
			slog.Error("failed to close KMS client", "error", closeErr)
		}
	}()

	if cfg.APIBearerToken == "" {
		slog.Error("API_BEARER_TOKEN is not set")
		os.Exit(1)
	}
	if cfg.OrderWebsiteURL == "" || cfg.RegisterWebsiteURL == "" {
		slog.Error("ORDER_WEBSITE_URL and REGISTER_WEBSITE_URL must be set")
		os.Exit(1)
	}

	// DI
	clock := domain.Clock(func() time.Time { return time.Now().UTC() })
	retention := time.Duration(cfg.TokenRetentionDays) * 24 * time.Hour
	repo := repository.NewOrderRepository(db)
	service := usecase.NewVirologyService(
		repo,
		usecase.NewTokensGenerator(),
		clock,
		cfg.OrderWebsiteURL,
		cfg.RegisterWebsiteURL,
		retention,
	)
	h := handler.NewVirologyHandler(service)
	signer := middleware.NewResponseSigner(kmsClient, clock)
	router := handler.NewRouter(h, signer, middleware.StaticBearerToken(cfg.APIBearerToken), cfg)

	// 期限切れレコードの掃除
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go runSweeper(sweepCtx, repo, clock)

	// サーバー起動
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		stopSweep()
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// runSweeper は期限切れの注文・結果レコードを定期的に削除する。
func runSweeper(ctx context.Context, repo *repository.OrderRepository, clock domain.Clock) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := repo.DeleteExpired(ctx, clock())
			if err != nil {
				slog.ErrorContext(ctx, "failed to sweep expired records", "error", err)
				continue
			}
			if deleted > 0 {
				slog.InfoContext(ctx, "swept expired records", "deleted", deleted)
			}
		}
	}
}
