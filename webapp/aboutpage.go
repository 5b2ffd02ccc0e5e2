package webapp

import (
	"encoding/json"
	"fmt"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// AboutInfo represents the about information from the API
type AboutInfo struct {
	Version             string  `json:"version"`
	BuildDate           string  `json:"buildDate"`
	RenderEngine        string  `json:"renderEngine"`
	RenderScale         float64 `json:"renderScale"`
	ImageFormat         string  `json:"imageFormat"`
	MaxImageWidth       int     `json:"maxImageWidth"`
	MaxUploadBytes      int64   `json:"maxUploadBytes"`
	MaxPages            int     `json:"maxPages"`
	JobStore            string  `json:"jobStore"`
	JobRetentionMinutes int     `json:"jobRetentionMinutes"`
}

// AboutPage displays information about the application
type AboutPage struct {
	app.Compo
	aboutInfo AboutInfo
	loading   bool
	error     string
}

// OnMount is called when the component is mounted
func (a *AboutPage) OnMount(ctx app.Context) {
	a.loading = true
	fetchJSON(ctx, BuildAPIURL("/api/about"), nil, func(ctx app.Context, status int, jsonStr string) {
		if err := json.Unmarshal([]byte(jsonStr), &a.aboutInfo); err != nil {
			a.error = fmt.Sprintf("Failed to parse response: %v", err)
		}
		a.loading = false
	}, func(ctx app.Context) {
		a.error = "Network error"
		a.loading = false
	})
}

// Render renders the about page
func (a *AboutPage) Render() app.UI {
	if a.loading {
		return app.Div().Class("about-page").Body(
			app.H2().Text("About pdfembed"),
			app.Div().Class("loading").Body(app.Text("Loading...")),
		)
	}

	if a.error != "" {
		return app.Div().Class("about-page").Body(
			app.H2().Text("About pdfembed"),
			app.Div().Class("error").Body(app.Text("Error: "+a.error)),
		)
	}

	return app.Div().Class("about-page").Body(
		app.H2().Text("About pdfembed"),
		app.Div().Class("about-content").Body(
			app.Div().Class("about-section").Body(
				app.H3().Text("Application Information"),
				app.Div().Class("info-grid").Body(
					a.renderInfoItem("Version", a.aboutInfo.Version),
					a.renderInfoItem("Renderer", a.getEngineDisplay()),
					a.renderInfoItem("Output", a.getOutputDisplay()),
					a.renderInfoItem("Job Store", a.getJobStoreDisplay()),
				),
			),
			app.Div().Class("about-section").Body(
				app.H3().Text("Limits"),
				app.Div().Class("config-details").Body(
					app.P().Body(
						app.Strong().Text("Maximum upload: "),
						app.Text(formatBytes(a.aboutInfo.MaxUploadBytes)),
					),
					app.P().Body(
						app.Strong().Text("Maximum pages: "),
						app.Text(a.getPageLimit()),
					),
					app.P().Body(
						app.Strong().Text("Results kept for: "),
						app.Text(fmt.Sprintf("%d minutes", a.aboutInfo.JobRetentionMinutes)),
					),
				),
			),
			app.Div().Class("about-section").Body(
				app.H3().Text("About pdfembed"),
				app.P().Text("pdfembed renders every page of a PDF to an image and encodes it as a base64 data URI."),
				app.P().Text("Paste the generated HTML into an email composer and the pages travel inside the message, with no attachments or image hosting."),
			),
		),
	)
}

// renderInfoItem creates an info item display
func (a *AboutPage) renderInfoItem(label, value string) app.UI {
	return app.Div().Class("info-item").Body(
		app.Div().Class("info-label").Body(app.Text(label)),
		app.Div().Class("info-value").Body(app.Text(value)),
	)
}

// getEngineDisplay returns a user-friendly renderer name
func (a *AboutPage) getEngineDisplay() string {
	switch a.aboutInfo.RenderEngine {
	case "", "pdfium":
		return "PDFium (WebAssembly)"
	case "fitz", "mupdf":
		return "MuPDF"
	default:
		return a.aboutInfo.RenderEngine
	}
}

// getOutputDisplay describes the image format and scale
func (a *AboutPage) getOutputDisplay() string {
	format := "PNG"
	if a.aboutInfo.ImageFormat == "jpeg" || a.aboutInfo.ImageFormat == "jpg" {
		format = "JPEG"
	}
	out := fmt.Sprintf("%s at %gx", format, a.aboutInfo.RenderScale)
	if a.aboutInfo.MaxImageWidth > 0 {
		out += fmt.Sprintf(", max %dpx wide", a.aboutInfo.MaxImageWidth)
	}
	return out
}

// getJobStoreDisplay names where conversion results are held
func (a *AboutPage) getJobStoreDisplay() string {
	if a.aboutInfo.JobStore == "sqlite" {
		return "SQLite (in memory)"
	}
	return "In memory"
}

// getPageLimit returns the page limit as a user-friendly string
func (a *AboutPage) getPageLimit() string {
	if a.aboutInfo.MaxPages <= 0 {
		return "Unlimited"
	}
	return fmt.Sprintf("%d", a.aboutInfo.MaxPages)
}

// formatBytes formats bytes to human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
