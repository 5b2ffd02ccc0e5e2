package webapp

import (
	"strings"
	"testing"
)

func TestValidateSelection(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mimeType string
		size     int64
		want     string
	}{
		{"valid pdf", "report.pdf", "application/pdf", 1024, ""},
		{"exactly at limit", "report.pdf", "application/pdf", DefaultMaxUploadBytes, ""},
		{"over limit", "report.pdf", "application/pdf", DefaultMaxUploadBytes + 1, "File size exceeds 15MB limit"},
		{"wrong type", "photo.png", "image/png", 1024, "Please select a valid PDF file"},
		{"pdf name with wrong type", "fake.pdf", "text/plain", 1024, "Please select a valid PDF file"},
		{"no type but pdf name", "scan.PDF", "", 1024, ""},
		{"no type and no pdf name", "scan", "", 1024, "Please select a valid PDF file"},
		{"empty file", "empty.pdf", "application/pdf", 0, "The selected file is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validateSelection(tt.fileName, tt.mimeType, tt.size, DefaultMaxUploadBytes); got != tt.want {
				t.Errorf("validateSelection() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPercent(t *testing.T) {
	tests := map[float64]int{
		-0.5:      0,
		0:         0,
		1.0 / 3.0: 33,
		2.0 / 3.0: 67,
		1:         100,
		1.5:       100,
	}
	for in, want := range tests {
		if got := percent(in); got != want {
			t.Errorf("percent(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestPlural(t *testing.T) {
	if got := plural(1, "page", "pages"); got != "1 page" {
		t.Errorf("Got %q", got)
	}
	if got := plural(3, "page", "pages"); got != "3 pages" {
		t.Errorf("Got %q", got)
	}
}

func TestJoinDataURIs(t *testing.T) {
	images := []PageImage{{Page: 1, DataURI: "data:a"}, {Page: 3, DataURI: "data:b"}}
	if got := joinDataURIs(images); got != "data:a\ndata:b" {
		t.Errorf("Got %q", got)
	}
}

func TestHomePageResetClearsState(t *testing.T) {
	page := &HomePage{
		fileName:   "a.pdf",
		processing: true,
		progress:   0.5,
		jobID:      "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		images:     []PageImage{{Page: 1}},
		failures:   []PageFailure{{Page: 2}},
		html:       "<div></div>",
		completed:  true,
		error:      "x",
		notice:     "y",
	}
	page.reset()

	if page.fileName != "" || page.processing || page.progress != 0 || page.jobID != "" ||
		page.images != nil || page.failures != nil || page.html != "" || page.completed ||
		page.error != "" || page.notice != "" {
		t.Errorf("Expected reset to clear all state, got %+v", page)
	}
}

func TestHomePageFail(t *testing.T) {
	page := &HomePage{processing: true, notice: "Processing"}
	page.fail("")
	if page.processing || page.error != "Failed to process PDF file" || page.notice != "" {
		t.Errorf("Unexpected state after fail %+v", page)
	}

	page.fail("No pages could be converted")
	if page.error != "No pages could be converted" {
		t.Errorf("Expected empty-result message, got %q", page.error)
	}
}

// TestHomePageRenderStates checks every state renders without panicking
func TestHomePageRenderStates(t *testing.T) {
	t.Run("Initial state returns valid UI", func(t *testing.T) {
		page := &HomePage{}
		if page.Render() == nil {
			t.Error("Initial state should return non-nil UI")
		}
	})

	t.Run("Processing state returns valid UI", func(t *testing.T) {
		page := &HomePage{processing: true, fileName: "a.pdf", progress: 0.5}
		if page.Render() == nil {
			t.Error("Processing state should return non-nil UI")
		}
	})

	t.Run("Error state returns valid UI", func(t *testing.T) {
		page := &HomePage{error: "No pages could be converted", failures: []PageFailure{{Page: 1, Error: "boom"}}}
		if page.Render() == nil {
			t.Error("Error state should return non-nil UI")
		}
	})

	t.Run("Completed state returns valid UI", func(t *testing.T) {
		page := &HomePage{
			completed: true,
			jobID:     "01ARZ3NDEKTSV4RRFFQ69G5FAV",
			images:    []PageImage{{Page: 1, DataURI: "data:image/png;base64,AA=="}, {Page: 3, DataURI: "data:image/png;base64,AA=="}},
			failures:  []PageFailure{{Page: 2, Error: "boom"}},
			html:      "<div></div>",
		}
		if page.Render() == nil {
			t.Error("Completed state should return non-nil UI")
		}
	})
}

func TestJobFinished(t *testing.T) {
	for status, want := range map[string]bool{"pending": false, "running": false, "completed": true, "failed": true} {
		if got := (Job{Status: status}).Finished(); got != want {
			t.Errorf("Job{%s}.Finished() = %v, want %v", status, got, want)
		}
	}
}

func TestBuildAPIURLRelativeOnServer(t *testing.T) {
	if got := BuildAPIURL("/api/jobs"); got != "/api/jobs" {
		t.Errorf("Expected relative URL outside the browser, got %q", got)
	}
}

func TestConfigScript(t *testing.T) {
	script := ConfigScript("http://backend:8000")
	if !strings.Contains(script, `window.pdfembedConfig`) || !strings.Contains(script, `apiURL: "http://backend:8000"`) {
		t.Errorf("Unexpected config script %s", script)
	}
	if !strings.Contains(ConfigScript(""), `apiURL: ""`) {
		t.Error("Expected an empty apiURL to be quoted")
	}
}
