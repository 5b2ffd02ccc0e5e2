// Package uiserver registers the go-app shell and its assets on an echo
// instance. The combined server and the standalone frontend both use it, so
// the UI is served the same way whether or not the API runs alongside it.
package uiserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/drummonds/pdfembed/webapp"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// ErrInvalidBackendURL is returned by ParseBackendURL for anything that cannot be proxied to
var ErrInvalidBackendURL = errors.New("invalid backend API URL")

// notFoundHTML is served for unknown non-API paths that reach the error handler
const notFoundHTML = `<!DOCTYPE html>
<html>
<head><title>404 - Not Found</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
	<h1>404 - Page Not Found</h1>
	<p>The page you're looking for doesn't exist.</p>
	<a href="/" style="color: #2563eb; text-decoration: none; font-size: 18px;">← Convert a PDF</a>
</body>
</html>`

// ErrorHandler returns JSON for API paths and a plain page for everything else
func ErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		if code == http.StatusNotFound {
			path := c.Request().URL.Path
			if strings.HasPrefix(path, "/api/") {
				c.JSON(http.StatusNotFound, map[string]string{
					"error":   "Not Found",
					"message": "The requested API endpoint does not exist",
					"path":    path,
				})
				return
			}
			c.HTML(http.StatusNotFound, notFoundHTML)
			return
		}

		e.DefaultHTTPErrorHandler(err, c)
	}
}

// Register serves the go-app shell and its assets. apiURL is handed to the
// page through /config.js; empty means the API shares the page's origin.
// The go-app catch-all is registered last, so API routes must already be in place.
func Register(e *echo.Echo, apiURL string) {
	appHandler := echo.WrapHandler(webapp.Handler())

	// wasm_exec.js and app.wasm are produced by the build, not embedded
	e.GET("/wasm_exec.js", func(c echo.Context) error {
		return c.File("web/wasm_exec.js")
	})
	e.Static("/web", "web")

	e.GET("/app.js", appHandler)
	e.GET("/app.css", appHandler)
	e.GET("/manifest.webmanifest", appHandler)

	e.GET("/webapp/webapp.css", func(c echo.Context) error {
		return c.Blob(http.StatusOK, "text/css; charset=utf-8", webapp.Stylesheet)
	})

	script := webapp.ConfigScript(apiURL)
	e.GET("/config.js", func(c echo.Context) error {
		return c.Blob(http.StatusOK, "application/javascript", []byte(script))
	})

	// client-side routing, unknown pages render NotFoundPage
	e.Any("/*", appHandler)
}

// ParseBackendURL checks raw is an absolute http or https URL
func ParseBackendURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: SERVER_API_URL is empty", ErrInvalidBackendURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackendURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q needs an http or https scheme", ErrInvalidBackendURL, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidBackendURL, raw)
	}
	return u, nil
}

// ProxyAPI forwards every /api request to backend. Uploads pass through the
// proxy, so the page never needs cross-origin access to the backend.
func ProxyAPI(e *echo.Echo, backend *url.URL) {
	Logger.Info("Proxying API", "backend", backend.String())
	e.Group("/api", middleware.ProxyWithConfig(middleware.ProxyConfig{
		Balancer: middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{
			{URL: backend},
		}),
		ErrorHandler: func(c echo.Context, err error) error {
			Logger.Error("Backend API unreachable", "backend", backend.String(), "path", c.Request().URL.Path, "error", err)
			return c.JSON(http.StatusBadGateway, map[string]string{
				"error": "Backend API unreachable",
			})
		},
	}))
}
