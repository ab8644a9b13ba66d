package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// FacebookPhotoStrategy は画像付きFacebook投稿の送信方式。
type FacebookPhotoStrategy string

const (
	// StrategyPhotoThenFeed は未公開の写真をアップロードしてから
	// attached_mediaで /feed に投稿する方式。
	StrategyPhotoThenFeed FacebookPhotoStrategy = "photo_then_feed"
	// StrategyDirectPhoto は /photos にmessage付きで直接投稿する方式。
	StrategyDirectPhoto FacebookPhotoStrategy = "direct_photo"
)

// ImageRouting は画像がある場合に /photos へ振り分ける条件。
type ImageRouting string

const (
	// RoutingExplicit は画像があり、かつ呼び出し側が photos を明示した場合のみ /photos を使う。
	RoutingExplicit ImageRouting = "explicit"
	// RoutingAuto は画像があれば /photos を使う。facebookEndpoint=feed の場合のみテキスト投稿にする。
	RoutingAuto ImageRouting = "auto"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	Port              string
	ServiceName       string
	MaxRequestBody    int64
	CORSAllowedOrigin string

	// Facebook
	FacebookPageID        string
	GraphAPIBaseURL       string
	FacebookPhotoStrategy FacebookPhotoStrategy
	ImageRouting          ImageRouting

	// Threads
	ThreadsUserID     string
	ThreadsAPIBaseURL string

	// Google Drive
	DriveBaseURL string

	// Timeouts
	ImageFetchTimeout  time.Duration
	PhotoUploadTimeout time.Duration
	PublishTimeout     time.Duration

	// Logging / Tracing
	LogLevel     string
	OTLPEndpoint string
}

// デフォルト値
const (
	DefaultGraphAPIBaseURL   = "https://graph.facebook.com/v18.0"
	DefaultThreadsAPIBaseURL = "https://graph.threads.net/v1.0"
	DefaultDriveBaseURL      = "https://drive.google.com"
	DefaultThreadsUserID     = "me"
)

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 列挙値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	// .envが存在しない場合は無視する
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Port = getEnvString("PORT", "8080")
	cfg.ServiceName = getEnvString("SERVICE_NAME", "Facebook API Server")
	cfg.MaxRequestBody = getEnvInt64("MAX_REQUEST_BODY", 50*1024*1024)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	cfg.FacebookPageID = os.Getenv("FACEBOOK_PAGE_ID")
	cfg.GraphAPIBaseURL = getEnvString("GRAPH_API_BASE_URL", DefaultGraphAPIBaseURL)
	cfg.ThreadsUserID = getEnvString("THREADS_USER_ID", DefaultThreadsUserID)
	cfg.ThreadsAPIBaseURL = getEnvString("THREADS_API_BASE_URL", DefaultThreadsAPIBaseURL)
	cfg.DriveBaseURL = getEnvString("GOOGLE_DRIVE_BASE_URL", DefaultDriveBaseURL)

	cfg.ImageFetchTimeout = getEnvDuration("IMAGE_FETCH_TIMEOUT", 30*time.Second)
	cfg.PhotoUploadTimeout = getEnvDuration("PHOTO_UPLOAD_TIMEOUT", 60*time.Second)
	cfg.PublishTimeout = getEnvDuration("PUBLISH_TIMEOUT", 30*time.Second)

	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	strategy := FacebookPhotoStrategy(getEnvString("FACEBOOK_PHOTO_STRATEGY", string(StrategyPhotoThenFeed)))
	switch strategy {
	case StrategyPhotoThenFeed, StrategyDirectPhoto:
		cfg.FacebookPhotoStrategy = strategy
	default:
		return nil, fmt.Errorf("invalid FACEBOOK_PHOTO_STRATEGY: %q (allowed: %s, %s)",
			strategy, StrategyPhotoThenFeed, StrategyDirectPhoto)
	}

	routing := ImageRouting(getEnvString("IMAGE_ROUTING", string(RoutingExplicit)))
	switch routing {
	case RoutingExplicit, RoutingAuto:
		cfg.ImageRouting = routing
	default:
		return nil, fmt.Errorf("invalid IMAGE_ROUTING: %q (allowed: %s, %s)",
			routing, RoutingExplicit, RoutingAuto)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
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
