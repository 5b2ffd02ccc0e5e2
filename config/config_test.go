package config

import (
	"log/slog"
	"testing"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("PDFEMBED_TEST_INT", "42")
	t.Setenv("PDFEMBED_TEST_BAD_INT", "forty")
	t.Setenv("PDFEMBED_TEST_FLOAT", "1.5")
	t.Setenv("PDFEMBED_TEST_BOOL", "true")

	if got := getEnvInt("PDFEMBED_TEST_INT", 1); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
	if got := getEnvInt("PDFEMBED_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("Expected default 7 for unparsable int, got %d", got)
	}
	if got := getEnvFloat("PDFEMBED_TEST_FLOAT", 2.0); got != 1.5 {
		t.Errorf("Expected 1.5, got %v", got)
	}
	if got := getEnvBool("PDFEMBED_TEST_BOOL", false); !got {
		t.Error("Expected true")
	}
	if got := getEnv("PDFEMBED_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %s", got)
	}
}

func TestLoadConversionConfig_Defaults(t *testing.T) {
	for _, key := range []string{"RENDER_SCALE", "RENDER_ENGINE", "IMAGE_FORMAT", "JPEG_QUALITY", "MAX_IMAGE_WIDTH", "PDFIUM_WORKERS"} {
		t.Setenv(key, "")
	}

	cfg := LoadConversionConfig()
	if cfg.RenderScale != DefaultRenderScale {
		t.Errorf("Expected scale %v, got %v", DefaultRenderScale, cfg.RenderScale)
	}
	if cfg.RenderEngine != DefaultEngine {
		t.Errorf("Expected engine %s, got %s", DefaultEngine, cfg.RenderEngine)
	}
	if cfg.ImageFormat != "png" {
		t.Errorf("Expected png, got %s", cfg.ImageFormat)
	}
	if cfg.MaxImageWidth != 0 {
		t.Errorf("Expected unlimited width, got %d", cfg.MaxImageWidth)
	}
}

func TestLoadConversionConfig_Overrides(t *testing.T) {
	t.Setenv("RENDER_SCALE", "3")
	t.Setenv("RENDER_ENGINE", "FITZ")
	t.Setenv("IMAGE_FORMAT", "JPEG")
	t.Setenv("JPEG_QUALITY", "75")

	cfg := LoadConversionConfig()
	if cfg.RenderScale != 3 {
		t.Errorf("Expected scale 3, got %v", cfg.RenderScale)
	}
	if cfg.RenderEngine != "fitz" {
		t.Errorf("Expected engine to be lower-cased, got %s", cfg.RenderEngine)
	}
	if cfg.ImageFormat != "jpeg" {
		t.Errorf("Expected jpeg, got %s", cfg.ImageFormat)
	}
	if cfg.JPEGQuality != 75 {
		t.Errorf("Expected quality 75, got %d", cfg.JPEGQuality)
	}
}

func TestSetupServer_UploadLimit(t *testing.T) {
	t.Setenv("LOG_OUTPUT", "stdout")
	t.Setenv("MAX_UPLOAD_MB", "")

	cfg, logger := SetupServer()
	if logger == nil {
		t.Fatal("Expected a logger")
	}
	if cfg.MaxUploadBytes != 15*1024*1024 {
		t.Errorf("Expected 15 MiB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.JobRetentionMinutes <= 0 {
		t.Errorf("Expected positive job retention, got %d", cfg.JobRetentionMinutes)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupServer_JobStore(t *testing.T) {
	t.Setenv("LOG_OUTPUT", "stdout")
	t.Setenv("JOB_STORE", "")

	cfg, _ := SetupServer()
	if cfg.JobStore != DefaultJobStore {
		t.Errorf("Expected %s, got %s", DefaultJobStore, cfg.JobStore)
	}

	t.Setenv("JOB_STORE", "SQLite")
	cfg, _ = SetupServer()
	if cfg.JobStore != "sqlite" {
		t.Errorf("Expected the store name to be lower-cased, got %s", cfg.JobStore)
	}
}

func TestSetupFrontend(t *testing.T) {
	t.Setenv("LOG_OUTPUT", "stdout")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("SERVER_API_URL", "")

	cfg, logger := SetupFrontend()
	if logger == nil {
		t.Fatal("Expected a logger")
	}
	if cfg.ListenAddrPort != DefaultFrontendPort {
		t.Errorf("Expected port %s, got %s", DefaultFrontendPort, cfg.ListenAddrPort)
	}
	if cfg.ServerAPIURL != "http://localhost:8000" {
		t.Errorf("Expected the local backend, got %s", cfg.ServerAPIURL)
	}

	t.Setenv("SERVER_PORT", "4100")
	t.Setenv("SERVER_API_URL", "http://backend:9000")
	cfg, _ = SetupFrontend()
	if cfg.ListenAddrPort != "4100" {
		t.Errorf("Expected SERVER_PORT to be honoured, got %s", cfg.ListenAddrPort)
	}
	if cfg.ServerAPIURL != "http://backend:9000" {
		t.Errorf("Expected SERVER_API_URL to be honoured, got %s", cfg.ServerAPIURL)
	}
}
