package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

const (
	// DefaultMaxUploadMB matches the browser-side limit of the upload form
	DefaultMaxUploadMB = 15
	// DefaultRenderScale renders at twice the nominal 72 DPI of a PDF page
	DefaultRenderScale = 2.0
	DefaultEngine      = "pdfium"
	DefaultImageFormat = "png"
	// DefaultJobStore keeps jobs in a map, "sqlite" uses an in-memory SQLite database
	DefaultJobStore = "memory"
	// DefaultFrontendPort is used by the standalone frontend when SERVER_PORT is unset
	DefaultFrontendPort = "3000"
)

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP   string
	ListenAddrPort string
	MaxUploadBytes int64
	MaxPages       int
	ConversionConfig
	JobStore                string // memory or sqlite, both vanish on exit
	JobRetentionMinutes     int
	JobSweepIntervalMinutes int
	FrontEndConfig
}

// ConversionConfig holds the rendering and encoding settings shared by the
// server and the command line tool
type ConversionConfig struct {
	RenderScale   float64
	RenderEngine  string // pdfium or fitz
	PDFiumWorkers int
	ImageFormat   string // png or jpeg
	JPEGQuality   int
	MaxImageWidth int // 0 keeps the rendered width
}

// FrontEndConfig stores all of the frontend settings
type FrontEndConfig struct {
	ServerAPIURL string
}

// FrontendServerConfig is what the standalone frontend needs to listen and
// reach the backend
type FrontendServerConfig struct {
	ListenAddrIP   string
	ListenAddrPort string
	FrontEndConfig
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

// loadEnvFiles loads .env files, silently ignoring the ones that don't exist
func loadEnvFiles(names ...string) {
	for _, name := range names {
		_ = godotenv.Load(name)
	}
}

// LoadConversionConfig reads the rendering settings from the environment
func LoadConversionConfig() ConversionConfig {
	return ConversionConfig{
		RenderScale:   getEnvFloat("RENDER_SCALE", DefaultRenderScale),
		RenderEngine:  strings.ToLower(getEnv("RENDER_ENGINE", DefaultEngine)),
		PDFiumWorkers: getEnvInt("PDFIUM_WORKERS", 2),
		ImageFormat:   strings.ToLower(getEnv("IMAGE_FORMAT", DefaultImageFormat)),
		JPEGQuality:   getEnvInt("JPEG_QUALITY", 90),
		MaxImageWidth: getEnvInt("MAX_IMAGE_WIDTH", 0),
	}
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	serverConfigLive := ServerConfig{}

	loadEnvFiles(".env", "config.env")

	logger := setupLogging()
	Logger = logger

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Upload limits
	serverConfigLive.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_MB", DefaultMaxUploadMB)) << 20
	serverConfigLive.MaxPages = getEnvInt("MAX_PAGES", 0)

	serverConfigLive.ConversionConfig = LoadConversionConfig()
	logger.Info("Conversion configuration loaded",
		"engine", serverConfigLive.RenderEngine,
		"scale", serverConfigLive.RenderScale,
		"format", serverConfigLive.ImageFormat)

	// Results are held in memory only, these control how long they live
	serverConfigLive.JobStore = strings.ToLower(getEnv("JOB_STORE", DefaultJobStore))
	serverConfigLive.JobRetentionMinutes = getEnvInt("JOB_RETENTION_MINUTES", 30)
	serverConfigLive.JobSweepIntervalMinutes = getEnvInt("JOB_SWEEP_INTERVAL_MINUTES", 5)

	serverConfigLive.FrontEndConfig = FrontEndConfig{
		ServerAPIURL: getEnv("SERVER_API_URL", ""),
	}

	fmt.Println("\n========================================")
	fmt.Println("   pdfembed - PDF pages to embedded images")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}

	return serverConfigLive, logger
}

// SetupFrontend loads configuration for frontend-only server
func SetupFrontend() (FrontendServerConfig, *slog.Logger) {
	// frontend.env first so it wins over the shared files
	loadEnvFiles("frontend.env", ".env", "config.env")

	logger := setupLogging()
	Logger = logger

	frontendConfig := FrontendServerConfig{
		ListenAddrIP:   getEnv("SERVER_ADDR", ""),
		ListenAddrPort: getEnv("SERVER_PORT", DefaultFrontendPort),
		FrontEndConfig: FrontEndConfig{
			ServerAPIURL: getEnv("SERVER_API_URL", "http://localhost:8000"),
		},
	}

	logger.Info("Frontend configuration loaded",
		"apiURL", frontendConfig.ServerAPIURL,
		"port", frontendConfig.ListenAddrPort)

	return frontendConfig, logger
}

// SetupCLI loads the conversion settings for the command line tool. Logs go
// to stderr so they never mix with command output.
func SetupCLI(verbose bool) (ConversionConfig, *slog.Logger) {
	loadEnvFiles(".env", "config.env")

	level := slog.LevelWarn
	if verbose || getEnvBool("PDFEMBED_VERBOSE", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	Logger = logger

	return LoadConversionConfig(), logger
}

// parseLevel maps LOG_LEVEL values to slog levels
func parseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	handlerOptions := &slog.HandlerOptions{Level: parseLevel(getEnv("LOG_LEVEL", "info"))}

	logOutput := getEnv("LOG_OUTPUT", "stdout")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "pdfembed.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}
