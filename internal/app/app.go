// Package app はアプリケーションの初期化と起動モードの切り替えを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/postrelay/internal/config"
	"github.com/hitoshi/postrelay/internal/graph"
	"github.com/hitoshi/postrelay/internal/handler"
	"github.com/hitoshi/postrelay/internal/image"
	"github.com/hitoshi/postrelay/internal/logger"
	"github.com/hitoshi/postrelay/internal/metrics"
	"github.com/hitoshi/postrelay/internal/publish"
	"github.com/hitoshi/postrelay/internal/security"
	"github.com/hitoshi/postrelay/internal/tracing"
)

// shutdownTimeout は処理中のリクエストの完了を待つ最大時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.Port),
		slog.String("service", cfg.ServiceName),
		slog.Bool("default_page_id_configured", cfg.FacebookPageID != ""),
		slog.String("photo_strategy", string(cfg.FacebookPhotoStrategy)),
		slog.String("image_routing", string(cfg.ImageRouting)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runServe(ctx, cfg)
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			slog.Error("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           buildHandler(cfg, slog.Default(), registry),
		ReadHeaderTimeout: 15 * time.Second,
		// 画像のダウンロードとアップロードを含むため書き込みタイムアウトは長めに取る
		WriteTimeout: cfg.ImageFetchTimeout + cfg.PhotoUploadTimeout + 2*cfg.PublishTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(sctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildHandler は設定から全依存関係を組み立て、トレーシング付きのHTTPハンドラーを返す。
func buildHandler(cfg *config.Config, log *slog.Logger, registry *prometheus.Registry) http.Handler {
	collector := metrics.NewCollector(registry)

	// 1. 画像取得（Google Drive関連ホストのみ許可するSSRFガード付き）
	ssrfGuard := security.NewSSRFGuard(driveAllowedHosts(cfg.DriveBaseURL)...)
	acquirer := image.NewAcquirer(ssrfGuard, cfg.DriveBaseURL, cfg.ImageFetchTimeout, log)
	acquirer.WrapTransport(tracing.NewTransport)

	// 2. 外部APIクライアント。呼び出しごとのタイムアウトはcontextで設定し、クライアント側は上限として使う
	apiClient := &http.Client{
		Transport: tracing.NewTransport(nil),
		Timeout:   max(cfg.PhotoUploadTimeout, cfg.PublishTimeout),
	}
	facebook := graph.NewFacebookClient(apiClient, cfg.GraphAPIBaseURL,
		cfg.PhotoUploadTimeout, cfg.PublishTimeout, collector, log)
	threads := graph.NewThreadsClient(apiClient, cfg.ThreadsAPIBaseURL,
		cfg.ThreadsUserID, cfg.PublishTimeout, collector, log)

	// 3. サービス層
	service := publish.NewService(acquirer, facebook, threads, cfg.FacebookPhotoStrategy, collector, log)

	// 4. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		ServiceName:       cfg.ServiceName,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		PublishService:    service,
		PostConfig: handler.PostHandlerConfig{
			DefaultPageID:  cfg.FacebookPageID,
			ImageRouting:   cfg.ImageRouting,
			MaxRequestBody: cfg.MaxRequestBody,
		},
		MetricsGatherer: registry,
	})

	return tracing.NewHandler(router, cfg.ServiceName)
}

// driveAllowedHosts はSSRFガードで許可するホストの一覧を返す。
// 設定されたDriveベースURLのホストに加え、リダイレクト先となるGoogleのホストを含む。
func driveAllowedHosts(driveBaseURL string) []string {
	hosts := append([]string{}, security.DriveDownloadHosts...)
	if u, err := url.Parse(driveBaseURL); err == nil && u.Hostname() != "" {
		hosts = append(hosts, u.Hostname())
	}
	return hosts
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	healthURL := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(healthURL)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
