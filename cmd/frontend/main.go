// Command frontend serves the pdfembed web app on its own and forwards /api
// to a separately running backend.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/drummonds/pdfembed/config"
	"github.com/drummonds/pdfembed/internal/uiserver"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

func main() {
	port := flag.String("port", "", "port to listen on, overrides SERVER_PORT")
	apiURL := flag.String("api", "", "backend API URL, overrides SERVER_API_URL")
	flag.Parse()

	frontendConfig, logger := config.SetupFrontend()
	Logger = logger
	uiserver.Logger = logger

	if *port != "" {
		frontendConfig.ListenAddrPort = *port
	}
	if *apiURL != "" {
		frontendConfig.ServerAPIURL = *apiURL
	}

	e, err := newServer(frontendConfig)
	if err != nil {
		Logger.Error("Frontend not started", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%s", frontendConfig.ListenAddrIP, frontendConfig.ListenAddrPort)
	Logger.Info("Starting frontend", "address", addr, "backendAPI", frontendConfig.ServerAPIURL)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Logger.Error("Frontend server failed", "error", err)
		os.Exit(1)
	}
}

// newServer builds the echo instance: UI assets plus a proxy to the backend.
// The page talks to its own origin, so /config.js carries an empty API URL.
func newServer(frontendConfig config.FrontendServerConfig) (*echo.Echo, error) {
	backend, err := uiserver.ParseBackendURL(frontendConfig.ServerAPIURL)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = uiserver.ErrorHandler(e)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			Logger.Debug("Request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	uiserver.ProxyAPI(e, backend)
	uiserver.Register(e, "")
	return e, nil
}
