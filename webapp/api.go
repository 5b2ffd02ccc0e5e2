package webapp

import (
	"fmt"
	"strings"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// GetAPIBaseURL returns the configured API base URL
// It reads from window.pdfembedConfig.apiURL if available,
// otherwise falls back to empty string (relative URLs)
func GetAPIBaseURL() string {
	// Check if config is available in browser
	if !app.IsClient {
		return "" // Server-side rendering - use relative URLs
	}

	config := app.Window().Get("pdfembedConfig")
	if config.Truthy() {
		apiURL := config.Get("apiURL")
		if apiURL.Truthy() {
			return strings.TrimSuffix(apiURL.String(), "/")
		}
	}

	// Fallback to relative URLs (same origin)
	return ""
}

// ConfigScript is served as /config.js. An empty apiURL keeps requests on the page's origin.
func ConfigScript(apiURL string) string {
	return fmt.Sprintf(`
// pdfembed Frontend Configuration
window.pdfembedConfig = {
    apiURL: %q
};
`, apiURL)
}

// BuildAPIURL constructs a full API URL from a path
// Example: BuildAPIURL("/api/jobs/active") -> "http://backend:8000/api/jobs/active"
// or just "/api/jobs/active" if using relative URLs
func BuildAPIURL(path string) string {
	baseURL := GetAPIBaseURL()
	if baseURL == "" {
		return path // Relative URL
	}
	return baseURL + path
}

// Job mirrors the job summary returned by the API
type Job struct {
	ID         string        `json:"id"`
	FileName   string        `json:"fileName"`
	Status     string        `json:"status"`
	Progress   float64       `json:"progress"`
	Message    string        `json:"message"`
	Error      string        `json:"error,omitempty"`
	TotalPages int           `json:"totalPages"`
	ImageCount int           `json:"imageCount"`
	Failures   []PageFailure `json:"failures,omitempty"`
}

// Finished reports whether the job will not change any more
func (j Job) Finished() bool {
	return j.Status == "completed" || j.Status == "failed"
}

// PageImage is one converted page
type PageImage struct {
	Page     int    `json:"page"`
	MIMEType string `json:"mimeType"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	DataURI  string `json:"dataUri"`
}

// PageFailure is a page that could not be converted
type PageFailure struct {
	Page  int    `json:"page"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// fetchJSON calls the API and hands the decoded JSON, re-serialised, to
// onResult from the UI goroutine
func fetchJSON(ctx app.Context, url string, options app.Value, onResult func(ctx app.Context, status int, jsonStr string), onError func(ctx app.Context)) {
	ctx.Async(func() {
		var res app.Value
		if options == nil {
			res = app.Window().Call("fetch", url)
		} else {
			res = app.Window().Call("fetch", url, options)
		}

		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
			if len(args) == 0 {
				return nil
			}
			response := args[0]
			status := response.Get("status").Int()

			response.Call("json").Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
				if len(args) == 0 {
					return nil
				}
				jsonStr := app.Window().Get("JSON").Call("stringify", args[0]).String()
				ctx.Dispatch(func(ctx app.Context) {
					onResult(ctx, status, jsonStr)
				})
				return nil
			})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) any {
				ctx.Dispatch(onError)
				return nil
			}))

			return nil
		})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) any {
			ctx.Dispatch(onError)
			return nil
		}))
	})
}

// copyToClipboard writes text to the clipboard and reports the outcome
func copyToClipboard(ctx app.Context, text string, onDone func(ctx app.Context, ok bool)) {
	clipboard := app.Window().Get("navigator").Get("clipboard")
	if !clipboard.Truthy() {
		onDone(ctx, false)
		return
	}
	clipboard.Call("writeText", text).Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
		ctx.Dispatch(func(ctx app.Context) { onDone(ctx, true) })
		return nil
	})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) any {
		ctx.Dispatch(func(ctx app.Context) { onDone(ctx, false) })
		return nil
	}))
}
