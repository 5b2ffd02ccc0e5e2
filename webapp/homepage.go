package webapp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// DefaultMaxUploadBytes is used until the server reports its own limit
const DefaultMaxUploadBytes = 15 * 1024 * 1024

const pollInterval = 500 * time.Millisecond

// HomePage uploads a PDF, follows the conversion and shows the results
type HomePage struct {
	app.Compo
	maxUploadBytes int64
	dragging       bool
	fileName       string
	processing     bool
	progress       float64
	jobID          string
	images         []PageImage
	failures       []PageFailure
	html           string
	completed      bool
	error          string
	notice         string
	stopPolling    chan struct{}
}

// OnMount is called when the component is mounted
func (h *HomePage) OnMount(ctx app.Context) {
	h.maxUploadBytes = DefaultMaxUploadBytes
	fetchJSON(ctx, BuildAPIURL("/api/about"), nil, func(ctx app.Context, status int, jsonStr string) {
		var about AboutInfo
		if status == 200 && json.Unmarshal([]byte(jsonStr), &about) == nil && about.MaxUploadBytes > 0 {
			h.maxUploadBytes = about.MaxUploadBytes
		}
	}, func(ctx app.Context) {})
}

// OnDismount is called when the component is unmounted
func (h *HomePage) OnDismount() {
	h.stop()
}

// validateSelection applies the same checks as the server before uploading
func validateSelection(name, mimeType string, size, maxBytes int64) string {
	isPDF := mimeType == "application/pdf" ||
		(mimeType == "" && strings.HasSuffix(strings.ToLower(name), ".pdf"))
	if !isPDF {
		return "Please select a valid PDF file"
	}
	if size == 0 {
		return "The selected file is empty"
	}
	if maxBytes > 0 && size > maxBytes {
		return fmt.Sprintf("File size exceeds %dMB limit", maxBytes/(1024*1024))
	}
	return ""
}

// percent turns a progress fraction into a whole percentage
func percent(progress float64) int {
	switch {
	case progress <= 0:
		return 0
	case progress >= 1:
		return 100
	}
	return int(progress*100 + 0.5)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// joinDataURIs is what "Copy All Images" puts on the clipboard
func joinDataURIs(images []PageImage) string {
	uris := make([]string, len(images))
	for i, img := range images {
		uris[i] = img.DataURI
	}
	return strings.Join(uris, "\n")
}

func (h *HomePage) onFileChange(ctx app.Context, e app.Event) {
	files := e.Get("target").Get("files")
	if files.Truthy() && files.Length() > 0 {
		h.selectFile(ctx, files.Index(0))
	}
	// allow picking the same file again after a reset
	e.Get("target").Set("value", "")
}

func (h *HomePage) onDragOver(ctx app.Context, e app.Event) {
	e.PreventDefault()
	h.dragging = true
}

func (h *HomePage) onDragLeave(ctx app.Context, e app.Event) {
	e.PreventDefault()
	h.dragging = false
}

func (h *HomePage) onDrop(ctx app.Context, e app.Event) {
	e.PreventDefault()
	h.dragging = false
	files := e.Get("dataTransfer").Get("files")
	if files.Truthy() && files.Length() > 0 {
		h.selectFile(ctx, files.Index(0))
	}
}

func (h *HomePage) onSelectClick(ctx app.Context, e app.Event) {
	input := app.Window().GetElementByID("pdf-input")
	if input.Truthy() {
		input.Call("click")
	}
}

// selectFile validates the file and uploads it as a new conversion job
func (h *HomePage) selectFile(ctx app.Context, file app.Value) {
	if h.processing {
		return
	}
	name := file.Get("name").String()
	if msg := validateSelection(name, file.Get("type").String(), int64(file.Get("size").Float()), h.maxUploadBytes); msg != "" {
		h.error = msg
		return
	}

	h.reset()
	h.fileName = name
	h.processing = true
	h.notice = fmt.Sprintf("Processing %q", name)

	form := app.Window().Get("FormData").New()
	form.Call("append", "pdf", file, name)
	options := app.Window().Get("Object").New()
	options.Set("method", "POST")
	options.Set("body", form)

	fetchJSON(ctx, BuildAPIURL("/api/jobs"), options, func(ctx app.Context, status int, jsonStr string) {
		var resp struct {
			JobID string `json:"jobId"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
			h.fail(fmt.Sprintf("Failed to parse response: %v", err))
			return
		}
		if status != 202 || resp.JobID == "" {
			h.fail(resp.Error)
			return
		}
		h.jobID = resp.JobID
		h.startPolling(ctx)
	}, func(ctx app.Context) {
		h.fail("Network error: Could not connect to server")
	})
}

// startPolling asks for the job status until it has finished
func (h *HomePage) startPolling(ctx app.Context) {
	h.stop()
	stop := make(chan struct{})
	h.stopPolling = stop
	jobID := h.jobID

	ctx.Async(func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx.Dispatch(func(ctx app.Context) {
					if h.jobID == jobID {
						h.pollJob(ctx)
					}
				})
			}
		}
	})
}

func (h *HomePage) stop() {
	if h.stopPolling != nil {
		close(h.stopPolling)
		h.stopPolling = nil
	}
}

func (h *HomePage) pollJob(ctx app.Context) {
	jobID := h.jobID
	fetchJSON(ctx, BuildAPIURL("/api/jobs/"+jobID), nil, func(ctx app.Context, status int, jsonStr string) {
		if h.jobID != jobID || !h.processing {
			return
		}
		var job Job
		if status != 200 || json.Unmarshal([]byte(jsonStr), &job) != nil {
			h.stop()
			h.fail("Lost track of the conversion job")
			return
		}
		if job.Progress > h.progress {
			h.progress = job.Progress
		}
		if !job.Finished() {
			return
		}

		h.stop()
		h.failures = job.Failures
		if job.Status == "failed" {
			if job.ImageCount == 0 && job.TotalPages > 0 {
				h.fail("No pages could be converted")
			} else {
				h.fail("Failed to process PDF file: " + job.Error)
			}
			return
		}
		h.loadResults(ctx, jobID)
	}, func(ctx app.Context) {
		// try again on the next tick
	})
}

// loadResults fetches the images and the email snippet of a finished job
func (h *HomePage) loadResults(ctx app.Context, jobID string) {
	fetchJSON(ctx, BuildAPIURL("/api/jobs/"+jobID+"/images"), nil, func(ctx app.Context, status int, jsonStr string) {
		var images []PageImage
		if status != 200 || json.Unmarshal([]byte(jsonStr), &images) != nil {
			h.fail("Failed to load converted pages")
			return
		}
		if len(images) == 0 {
			h.fail("No pages could be converted")
			return
		}
		h.images = images
		h.progress = 1
		h.processing = false
		h.completed = true
		h.notice = fmt.Sprintf("Conversion complete! %s converted", plural(len(images), "page", "pages"))
		h.loadHTML(ctx, jobID)
	}, func(ctx app.Context) {
		h.fail("Network error: Could not load converted pages")
	})
}

func (h *HomePage) loadHTML(ctx app.Context, jobID string) {
	ctx.Async(func() {
		res := app.Window().Call("fetch", BuildAPIURL("/api/jobs/"+jobID+"/html"))
		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
			if len(args) == 0 {
				return nil
			}
			args[0].Call("text").Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
				if len(args) == 0 {
					return nil
				}
				text := args[0].String()
				ctx.Dispatch(func(ctx app.Context) {
					if h.jobID == jobID {
						h.html = text
					}
				})
				return nil
			}))
			return nil
		}))
	})
}

func (h *HomePage) fail(msg string) {
	if msg == "" {
		msg = "Failed to process PDF file"
	}
	h.processing = false
	h.completed = false
	h.error = msg
	h.notice = ""
}

// reset clears every trace of the previous conversion
func (h *HomePage) reset() {
	h.stop()
	h.fileName = ""
	h.processing = false
	h.progress = 0
	h.jobID = ""
	h.images = nil
	h.failures = nil
	h.html = ""
	h.completed = false
	h.error = ""
	h.notice = ""
}

func (h *HomePage) onReset(ctx app.Context, e app.Event) {
	if h.jobID != "" {
		// results only live on the server until swept, free them now
		options := app.Window().Get("Object").New()
		options.Set("method", "DELETE")
		app.Window().Call("fetch", BuildAPIURL("/api/jobs/"+h.jobID), options)
	}
	h.reset()
}

func (h *HomePage) copied(what string) func(ctx app.Context, ok bool) {
	return func(ctx app.Context, ok bool) {
		if ok {
			h.notice = what + " copied to clipboard"
			h.error = ""
		} else {
			h.error = "Failed to copy to clipboard"
		}
	}
}

func (h *HomePage) onCopyImage(img PageImage) app.EventHandler {
	return func(ctx app.Context, e app.Event) {
		copyToClipboard(ctx, img.DataURI, h.copied(fmt.Sprintf("Image %d", img.Page)))
	}
}

func (h *HomePage) onCopyAll(ctx app.Context, e app.Event) {
	copyToClipboard(ctx, joinDataURIs(h.images), h.copied("All images"))
}

func (h *HomePage) onCopyHTML(ctx app.Context, e app.Event) {
	copyToClipboard(ctx, h.html, h.copied("HTML"))
}

// Render renders the home page
func (h *HomePage) Render() app.UI {
	if h.completed {
		return app.Div().Class("home-page").Body(
			h.renderMessages(),
			h.renderResults(),
		)
	}

	return app.Div().
		Class("home-page").
		Body(
			app.Div().Class("intro").Body(
				app.H2().Text("PDF to Embedded Images"),
				app.P().Text("Convert PDF pages to base64 images for direct embedding in emails and documents."),
			),
			h.renderUpload(),
			h.renderMessages(),
			h.renderProgress(),
			h.renderHowItWorks(),
		)
}

func (h *HomePage) renderUpload() app.UI {
	class := "upload-zone"
	if h.dragging {
		class += " dragging"
	}
	if h.processing {
		class += " disabled"
	}
	limit := h.maxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}

	return app.Div().
		Class(class).
		OnDragOver(h.onDragOver).
		OnDragLeave(h.onDragLeave).
		OnDrop(h.onDrop).
		Body(
			app.H3().Text("Upload PDF File"),
			app.P().Text("Drag and drop your PDF file here, or click to browse"),
			app.P().Class("upload-hint").Text(fmt.Sprintf("PDF file up to %dMB", limit/(1024*1024))),
			app.Button().
				Class("btn-secondary").
				Disabled(h.processing).
				OnClick(h.onSelectClick).
				Body(app.Text("Select File")),
			app.Input().
				ID("pdf-input").
				Type("file").
				Class("hidden").
				Accept(".pdf,application/pdf").
				Disabled(h.processing).
				OnChange(h.onFileChange),
		)
}

func (h *HomePage) renderMessages() app.UI {
	return app.Div().Class("messages").Body(
		app.If(h.error != "", func() app.UI {
			return app.Div().Class("error").Body(app.Text(h.error))
		}),
		app.If(h.notice != "" && h.error == "", func() app.UI {
			return app.Div().Class("success").Body(app.Text(h.notice))
		}),
		app.If(len(h.failures) > 0, func() app.UI {
			return app.Ul().Class("page-failures").Body(
				app.Range(h.failures).Slice(func(i int) app.UI {
					f := h.failures[i]
					return app.Li().Text(fmt.Sprintf("Page %d could not be converted: %s", f.Page, f.Error))
				}),
			)
		}),
	)
}

func (h *HomePage) renderProgress() app.UI {
	if !h.processing {
		return app.Div()
	}
	pct := percent(h.progress)
	return app.Div().Class("conversion-progress").Body(
		app.Div().Class("progress-label").Body(
			app.Span().Text(fmt.Sprintf("Converting %s...", h.fileName)),
			app.Span().Class("progress-value").Text(fmt.Sprintf("%d%%", pct)),
		),
		app.Div().Class("progress-track").Body(
			app.Div().Class("progress-bar").Style("width", fmt.Sprintf("%d%%", pct)),
		),
	)
}

func (h *HomePage) renderHowItWorks() app.UI {
	return app.Div().Class("how-it-works").Body(
		app.H3().Text("How it works"),
		app.Ol().Body(
			app.Li().Body(app.Strong().Text("Upload a PDF file"), app.Text(": select or drag a PDF file to begin the conversion.")),
			app.Li().Body(app.Strong().Text("Convert to images"), app.Text(": each page is rendered to a high-quality image.")),
			app.Li().Body(app.Strong().Text("Embed in emails"), app.Text(": copy the base64 images or HTML and paste them into an email.")),
		),
		app.P().Class("upload-hint").Text("Converted pages are kept in memory on the server for a short while and never written to disk."),
		app.A().
			Href("https://developer.mozilla.org/en-US/docs/Web/HTTP/Basics_of_HTTP/Data_URLs").
			Target("_blank").
			Text("Learn more about base64 encoding"),
	)
}

func (h *HomePage) renderResults() app.UI {
	return app.Div().Class("conversion-results").Body(
		app.Div().Class("results-header").Body(
			app.H2().Text("Conversion Results"),
			app.Button().Class("btn-secondary").OnClick(h.onReset).Body(app.Text("Convert Another PDF")),
		),

		app.Div().Class("results-header").Body(
			app.H3().Text(fmt.Sprintf("Preview (%s)", plural(len(h.images), "image", "images"))),
			app.Div().Class("results-actions").Body(
				app.Button().Class("btn-primary").OnClick(h.onCopyAll).Body(app.Text("Copy All Images")),
				app.A().
					Class("btn-secondary").
					Href(BuildAPIURL("/api/jobs/"+h.jobID+"/archive")).
					Attr("download", "").
					Text("Download ZIP"),
			),
		),
		app.Div().Class("image-grid").Body(
			app.Range(h.images).Slice(func(i int) app.UI {
				return h.renderImage(h.images[i])
			}),
		),

		app.Div().Class("results-header").Body(
			app.H3().Text("HTML for Email"),
			app.Button().
				Class("btn-primary").
				Disabled(h.html == "").
				OnClick(h.onCopyHTML).
				Body(app.Text("Copy HTML")),
		),
		app.Pre().Class("html-output").Text(h.html),
		app.Div().Class("how-it-works").Body(
			app.H4().Text("How to use:"),
			app.Ol().Body(
				app.Li().Text("Copy the HTML code above"),
				app.Li().Text("Paste it into your email composer in HTML mode"),
				app.Li().Text("Images will be directly embedded in your email"),
				app.Li().Text("No need to attach files or host images separately"),
			),
		),
	)
}

func (h *HomePage) renderImage(img PageImage) app.UI {
	return app.Div().Class("image-card").Body(
		app.Img().
			Src(img.DataURI).
			Alt(fmt.Sprintf("Page %d", img.Page)).
			Attr("loading", "lazy"),
		app.Span().Class("page-badge").Text(fmt.Sprintf("Page %d", img.Page)),
		app.Div().Class("image-actions").Body(
			app.Button().Class("btn-small").OnClick(h.onCopyImage(img)).Body(app.Text("Copy")),
			app.A().
				Class("btn-small").
				Href(BuildAPIURL(fmt.Sprintf("/api/jobs/%s/images/%d", h.jobID, img.Page))).
				Attr("download", "").
				Text("Download"),
		),
	)
}
