package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnvVars はテスト対象の環境変数を空にする。
// .envの読み込みが既存の環境変数を上書きしないため、空文字で上書きしておく。
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "SERVICE_NAME", "MAX_REQUEST_BODY", "CORS_ALLOWED_ORIGIN",
		"FACEBOOK_PAGE_ID", "GRAPH_API_BASE_URL", "FACEBOOK_PHOTO_STRATEGY", "IMAGE_ROUTING",
		"THREADS_USER_ID", "THREADS_API_BASE_URL", "GOOGLE_DRIVE_BASE_URL",
		"IMAGE_FETCH_TIMEOUT", "PHOTO_UPLOAD_TIMEOUT", "PUBLISH_TIMEOUT",
		"LOG_LEVEL", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.ServiceName != "Facebook API Server" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "Facebook API Server")
	}
	if cfg.MaxRequestBody != 50*1024*1024 {
		t.Errorf("MaxRequestBody = %d, want %d", cfg.MaxRequestBody, 50*1024*1024)
	}
	if cfg.FacebookPageID != "" {
		t.Errorf("FacebookPageID = %q, want empty", cfg.FacebookPageID)
	}
	if cfg.GraphAPIBaseURL != DefaultGraphAPIBaseURL {
		t.Errorf("GraphAPIBaseURL = %q, want %q", cfg.GraphAPIBaseURL, DefaultGraphAPIBaseURL)
	}
	if cfg.ThreadsUserID != DefaultThreadsUserID {
		t.Errorf("ThreadsUserID = %q, want %q", cfg.ThreadsUserID, DefaultThreadsUserID)
	}
	if cfg.ThreadsAPIBaseURL != DefaultThreadsAPIBaseURL {
		t.Errorf("ThreadsAPIBaseURL = %q, want %q", cfg.ThreadsAPIBaseURL, DefaultThreadsAPIBaseURL)
	}
	if cfg.DriveBaseURL != DefaultDriveBaseURL {
		t.Errorf("DriveBaseURL = %q, want %q", cfg.DriveBaseURL, DefaultDriveBaseURL)
	}
	if cfg.FacebookPhotoStrategy != StrategyPhotoThenFeed {
		t.Errorf("FacebookPhotoStrategy = %q, want %q", cfg.FacebookPhotoStrategy, StrategyPhotoThenFeed)
	}
	if cfg.ImageRouting != RoutingExplicit {
		t.Errorf("ImageRouting = %q, want %q", cfg.ImageRouting, RoutingExplicit)
	}

	// Timeouts
	if cfg.ImageFetchTimeout != 30*time.Second {
		t.Errorf("ImageFetchTimeout = %v, want %v", cfg.ImageFetchTimeout, 30*time.Second)
	}
	if cfg.PhotoUploadTimeout != 60*time.Second {
		t.Errorf("PhotoUploadTimeout = %v, want %v", cfg.PhotoUploadTimeout, 60*time.Second)
	}
	if cfg.PublishTimeout != 30*time.Second {
		t.Errorf("PublishTimeout = %v, want %v", cfg.PublishTimeout, 30*time.Second)
	}
	if cfg.OTLPEndpoint != "" {
		t.Errorf("OTLPEndpoint = %q, want empty", cfg.OTLPEndpoint)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("PORT", "3000")
	t.Setenv("FACEBOOK_PAGE_ID", "page-123")
	t.Setenv("THREADS_USER_ID", "threads-456")
	t.Setenv("FACEBOOK_PHOTO_STRATEGY", "direct_photo")
	t.Setenv("IMAGE_ROUTING", "auto")
	t.Setenv("IMAGE_FETCH_TIMEOUT", "10s")
	t.Setenv("PHOTO_UPLOAD_TIMEOUT", "2m")
	t.Setenv("PUBLISH_TIMEOUT", "45s")
	t.Setenv("MAX_REQUEST_BODY", "1048576")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want %q", cfg.Port, "3000")
	}
	if cfg.FacebookPageID != "page-123" {
		t.Errorf("FacebookPageID = %q, want %q", cfg.FacebookPageID, "page-123")
	}
	if cfg.ThreadsUserID != "threads-456" {
		t.Errorf("ThreadsUserID = %q, want %q", cfg.ThreadsUserID, "threads-456")
	}
	if cfg.FacebookPhotoStrategy != StrategyDirectPhoto {
		t.Errorf("FacebookPhotoStrategy = %q, want %q", cfg.FacebookPhotoStrategy, StrategyDirectPhoto)
	}
	if cfg.ImageRouting != RoutingAuto {
		t.Errorf("ImageRouting = %q, want %q", cfg.ImageRouting, RoutingAuto)
	}
	if cfg.ImageFetchTimeout != 10*time.Second {
		t.Errorf("ImageFetchTimeout = %v, want %v", cfg.ImageFetchTimeout, 10*time.Second)
	}
	if cfg.PhotoUploadTimeout != 2*time.Minute {
		t.Errorf("PhotoUploadTimeout = %v, want %v", cfg.PhotoUploadTimeout, 2*time.Minute)
	}
	if cfg.PublishTimeout != 45*time.Second {
		t.Errorf("PublishTimeout = %v, want %v", cfg.PublishTimeout, 45*time.Second)
	}
	if cfg.MaxRequestBody != 1048576 {
		t.Errorf("MaxRequestBody = %d, want %d", cfg.MaxRequestBody, 1048576)
	}
}

func TestLoad_InvalidStrategy_ReturnsError(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("FACEBOOK_PHOTO_STRATEGY", "carrier_pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid FACEBOOK_PHOTO_STRATEGY, got nil")
	}
}

func TestLoad_InvalidImageRouting_ReturnsError(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("IMAGE_ROUTING", "sometimes")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid IMAGE_ROUTING, got nil")
	}
}

func TestLoad_InvalidDuration_FallsBackToDefault(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("IMAGE_FETCH_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.ImageFetchTimeout != 30*time.Second {
		t.Errorf("ImageFetchTimeout = %v, want %v", cfg.ImageFetchTimeout, 30*time.Second)
	}
}

// TestLoad_DotEnvFile は.envの値が未設定の環境変数に反映されることを検証する。
func TestLoad_DotEnvFile(t *testing.T) {
	clearEnvVars(t)
	os.Unsetenv("FACEBOOK_PAGE_ID")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("FACEBOOK_PAGE_ID=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("FACEBOOK_PAGE_ID") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.FacebookPageID != "from-dotenv" {
		t.Errorf("FacebookPageID = %q, want %q", cfg.FacebookPageID, "from-dotenv")
	}
}
