package engine

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/drummonds/pdfembed/config"
	"github.com/drummonds/pdfembed/engine/conversion"
	"github.com/drummonds/pdfembed/engine/pdfrenderer"
	"github.com/drummonds/pdfembed/internal/fakerender"
	"github.com/drummonds/pdfembed/internal/testpdf"
	"github.com/drummonds/pdfembed/jobs"
	"github.com/labstack/echo/v4"
)

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		MaxUploadBytes: 15 << 20,
		ConversionConfig: config.ConversionConfig{
			RenderScale:  2,
			RenderEngine: "pdfium",
			ImageFormat:  "png",
			JPEGQuality:  90,
		},
		JobRetentionMinutes:     30,
		JobSweepIntervalMinutes: 5,
	}
}

// setupTestServer creates a test server with all routes configured
func setupTestServer(t *testing.T, renderer *fakerender.Renderer) (*echo.Echo, *ServerHandler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	Logger = logger
	conversion.Logger = logger

	e := echo.New()
	e.HideBanner = true
	serverHandler := &ServerHandler{
		Jobs:         jobs.NewMemoryStore(),
		Converter:    conversion.NewConverter(renderer),
		Echo:         e,
		ServerConfig: testConfig(),
	}
	serverHandler.RegisterAPIRoutes()
	return e, serverHandler
}

// uploadRequest builds a multipart request with the PDF under the pdf field
func uploadRequest(t *testing.T, target, fileName, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="pdf"; filename="`+fileName+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("Failed to create form part: %v", err)
	}
	part.Write(data)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func TestConvertDocument(t *testing.T) {
	renderer := &fakerender.Renderer{Pages: 3, Fail: map[int]error{2: errors.New("bad page")}}
	e, _ := setupTestServer(t, renderer)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "/api/convert", "report.pdf", "application/pdf", testpdf.Document(3)))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response ConvertResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.FileName != "report.pdf" || response.TotalPages != 3 {
		t.Errorf("Unexpected response header fields %+v", response)
	}
	if len(response.Images) != 2 || response.Images[0].Page != 1 || response.Images[1].Page != 3 {
		t.Fatalf("Expected pages 1 and 3, got %+v", response.Images)
	}
	if len(response.Failures) != 1 || response.Failures[0].Page != 2 {
		t.Errorf("Expected page 2 failure, got %+v", response.Failures)
	}
	if !strings.Contains(response.HTML, `alt="Page 3"`) {
		t.Errorf("Expected snippet to reference page 3, got %q", response.HTML)
	}
}

func TestConvertDocumentRejections(t *testing.T) {
	tests := []struct {
		name        string
		renderer    *fakerender.Renderer
		contentType string
		data        []byte
		status      int
	}{
		{"not a pdf", &fakerender.Renderer{Pages: 1}, "image/png", []byte("\x89PNG...."), http.StatusBadRequest},
		{"sniffed text", &fakerender.Renderer{Pages: 1}, "", []byte("just some text"), http.StatusBadRequest},
		{"empty file", &fakerender.Renderer{Pages: 1}, "application/pdf", nil, http.StatusBadRequest},
		{"load error", &fakerender.Renderer{Pages: 1}, "application/pdf", []byte("declared but broken"), http.StatusBadRequest},
		{"all pages fail", &fakerender.Renderer{Pages: 1, Fail: map[int]error{1: errors.New("x")}}, "application/pdf", testpdf.Document(1), http.StatusUnprocessableEntity},
		{"engine busy", &fakerender.Renderer{Pages: 1, OpenErr: pdfrenderer.ErrEngineBusy}, "application/pdf", testpdf.Document(1), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := setupTestServer(t, tt.renderer)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, uploadRequest(t, "/api/convert", "doc.pdf", tt.contentType, tt.data))
			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestConvertDocumentTooLarge(t *testing.T) {
	e, serverHandler := setupTestServer(t, &fakerender.Renderer{Pages: 1})
	serverHandler.ServerConfig.MaxUploadBytes = 100

	data := append(testpdf.Document(1), bytes.Repeat([]byte(" "), 200)...)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "/api/convert", "big.pdf", "application/pdf", data))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestConvertDocumentMissingField(t *testing.T) {
	e, _ := setupTestServer(t, &fakerender.Renderer{Pages: 1})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader(""))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

// waitForJob polls the job endpoint until the job has finished
func waitForJob(t *testing.T, e *echo.Echo, jobID string) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200 polling job, got %d", rec.Code)
		}
		var job jobs.Job
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			t.Fatalf("Failed to parse job: %v", err)
		}
		if !job.Active() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish in time", jobID)
	return jobs.Job{}
}

func startJob(t *testing.T, e *echo.Echo, data []byte) string {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "/api/jobs", "report.pdf", "application/pdf", data))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var response map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	jobID, ok := response["jobId"].(string)
	if !ok || jobID == "" {
		t.Fatalf("Response missing jobId: %v", response)
	}
	return jobID
}

func TestConversionJobLifecycle(t *testing.T) {
	renderer := &fakerender.Renderer{Pages: 3, Fail: map[int]error{2: errors.New("bad page")}}
	e, _ := setupTestServer(t, renderer)

	jobID := startJob(t, e, testpdf.Document(3))
	job := waitForJob(t, e, jobID)

	if job.Status != jobs.JobStatusCompleted {
		t.Fatalf("Expected completed job, got %s (%s)", job.Status, job.Error)
	}
	if job.Progress != 1 || job.TotalPages != 3 || job.ImageCount != 2 {
		t.Errorf("Unexpected job summary %+v", job)
	}
	if job.Images != nil {
		t.Error("Expected job summary without image payloads")
	}

	t.Run("images", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/images", nil))
		var images []conversion.EncodedImage
		if err := json.Unmarshal(rec.Body.Bytes(), &images); err != nil {
			t.Fatalf("Failed to parse images: %v", err)
		}
		if len(images) != 2 || images[1].Page != 3 {
			t.Errorf("Unexpected images %+v", images)
		}
	})

	t.Run("single image", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/images/3", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		if rec.Header().Get(echo.HeaderContentType) != "image/png" {
			t.Errorf("Unexpected content type %q", rec.Header().Get(echo.HeaderContentType))
		}
		if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), "page-003.png") {
			t.Errorf("Unexpected disposition %q", rec.Header().Get(echo.HeaderContentDisposition))
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
			t.Error("Expected PNG bytes")
		}

		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/images/2", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected failed page to be 404, got %d", rec.Code)
		}
	})

	t.Run("html", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/html", nil))
		if strings.Count(rec.Body.String(), "<img ") != 2 {
			t.Errorf("Expected 2 img tags, got %q", rec.Body.String())
		}
	})

	t.Run("archive", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/archive", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), "report-images.zip") {
			t.Errorf("Unexpected disposition %q", rec.Header().Get(echo.HeaderContentDisposition))
		}
		zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
		if err != nil {
			t.Fatalf("Invalid zip: %v", err)
		}
		if len(zr.File) != 3 {
			t.Errorf("Expected 2 images and the snippet, got %d files", len(zr.File))
		}
	})

	t.Run("listings", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?limit=5", nil))
		var recent []jobs.Job
		if err := json.Unmarshal(rec.Body.Bytes(), &recent); err != nil {
			t.Fatalf("Failed to parse jobs: %v", err)
		}
		if len(recent) != 1 || recent[0].ID.String() != jobID {
			t.Errorf("Unexpected recent jobs %+v", recent)
		}

		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/active", nil))
		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Errorf("Expected no active jobs, got %s", rec.Body.String())
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/jobs/"+jobID, nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("Expected status 204, got %d", rec.Code)
		}
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected deleted job to be 404, got %d", rec.Code)
		}
	})
}

func TestConversionJobFailures(t *testing.T) {
	t.Run("no pages converted", func(t *testing.T) {
		renderer := &fakerender.Renderer{Pages: 2, Panic: map[int]bool{1: true, 2: true}}
		e, _ := setupTestServer(t, renderer)
		job := waitForJob(t, e, startJob(t, e, testpdf.Document(2)))
		if job.Status != jobs.JobStatusFailed || job.Message != "No pages could be converted" {
			t.Errorf("Unexpected job %+v", job)
		}
		if len(job.Failures) != 2 {
			t.Errorf("Expected both page failures, got %d", len(job.Failures))
		}
	})

	t.Run("load error", func(t *testing.T) {
		e, _ := setupTestServer(t, &fakerender.Renderer{Pages: 2})
		job := waitForJob(t, e, startJob(t, e, []byte("declared pdf but broken")))
		if job.Status != jobs.JobStatusFailed || !strings.Contains(job.Error, "document could not be loaded") {
			t.Errorf("Unexpected job %+v", job)
		}
	})

	t.Run("engine busy", func(t *testing.T) {
		e, _ := setupTestServer(t, &fakerender.Renderer{Pages: 2, OpenErr: pdfrenderer.ErrEngineBusy})
		job := waitForJob(t, e, startJob(t, e, testpdf.Document(2)))
		if job.Status != jobs.JobStatusFailed || !strings.Contains(job.Error, "render engine busy") {
			t.Errorf("Unexpected job %+v", job)
		}
		if strings.Contains(job.Error, "document could not be loaded") {
			t.Errorf("Busy engine reported as a load error: %q", job.Error)
		}
	})
}

func TestJobResultsWhileRunning(t *testing.T) {
	e, serverHandler := setupTestServer(t, &fakerender.Renderer{Pages: 1})
	job, err := serverHandler.Jobs.CreateJob("pending.pdf", "")
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	for _, path := range []string{"/images", "/images/1", "/html", "/archive"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID.String()+path, nil))
		if rec.Code != http.StatusConflict {
			t.Errorf("%s: expected status 409, got %d", path, rec.Code)
		}
	}
}

func TestJobLookupErrors(t *testing.T) {
	e, _ := setupTestServer(t, &fakerender.Renderer{Pages: 1})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/not-a-ulid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad id, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/01ARZ3NDEKTSV4RRFFQ69G5FAV", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown id, got %d", rec.Code)
	}
}

func TestGetAboutInfo(t *testing.T) {
	e, _ := setupTestServer(t, &fakerender.Renderer{Pages: 1})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/about", nil))

	var about map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &about); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	for _, key := range []string{"version", "renderEngine", "renderScale", "maxUploadBytes"} {
		if _, ok := about[key]; !ok {
			t.Errorf("About info missing %q", key)
		}
	}
	if about["renderScale"] != 2.0 {
		t.Errorf("Expected render scale 2, got %v", about["renderScale"])
	}
}

func TestHealthCheck(t *testing.T) {
	e, _ := setupTestServer(t, &fakerender.Renderer{Pages: 1})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("Unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestStartupChecks(t *testing.T) {
	_, serverHandler := setupTestServer(t, &fakerender.Renderer{Pages: 1})
	if err := serverHandler.StartupChecks(); err != nil {
		t.Fatalf("Expected default config to pass, got %v", err)
	}

	bad := []func(*config.ServerConfig){
		func(c *config.ServerConfig) { c.RenderEngine = "ghostscript" },
		func(c *config.ServerConfig) { c.RenderScale = 0 },
		func(c *config.ServerConfig) { c.MaxUploadBytes = 0 },
		func(c *config.ServerConfig) { c.ImageFormat = "gif" },
	}
	for i, mutate := range bad {
		cfg := testConfig()
		mutate(&cfg)
		serverHandler.ServerConfig = cfg
		if err := serverHandler.StartupChecks(); err == nil {
			t.Errorf("Case %d: expected startup checks to fail", i)
		}
	}
}

func TestSweepJobs(t *testing.T) {
	_, serverHandler := setupTestServer(t, &fakerender.Renderer{Pages: 1})
	serverHandler.ServerConfig.JobRetentionMinutes = 1

	job, _ := serverHandler.Jobs.CreateJob("old.pdf", "")
	serverHandler.Jobs.FailJob(job.ID, "x")

	// completed just now, inside retention
	serverHandler.sweepJobs()
	if _, err := serverHandler.Jobs.GetJob(job.ID); err != nil {
		t.Fatalf("Expected recent job to survive, got %v", err)
	}

	serverHandler.ServerConfig.JobRetentionMinutes = -1
	if serverHandler.retention() != 30*time.Minute {
		t.Errorf("Expected default retention, got %v", serverHandler.retention())
	}
}

func TestInitializeSchedules(t *testing.T) {
	_, serverHandler := setupTestServer(t, &fakerender.Renderer{Pages: 1})
	c, err := serverHandler.InitializeSchedules()
	if err != nil {
		t.Fatalf("InitializeSchedules failed: %v", err)
	}
	defer c.Stop()
	if len(c.Entries()) != 1 {
		t.Errorf("Expected 1 scheduled job, got %d", len(c.Entries()))
	}
}

func TestNewServerHandlerRejectsBadSettings(t *testing.T) {
	cfg := testConfig()
	cfg.ImageFormat = "gif"
	if _, err := NewServerHandler(cfg, echo.New()); err == nil {
		t.Error("Expected gif output to be rejected")
	}

	cfg = testConfig()
	cfg.RenderEngine = "ghostscript"
	if _, err := NewServerHandler(cfg, echo.New()); !errors.Is(err, pdfrenderer.ErrUnknownEngine) {
		t.Errorf("Expected ErrUnknownEngine, got %v", err)
	}
}

func TestServerHandlerCloseWithoutConverter(t *testing.T) {
	if err := (&ServerHandler{}).Close(); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}

func TestNewJobStore(t *testing.T) {
	for _, name := range []string{"", "memory"} {
		store, err := newJobStore(name)
		if err != nil {
			t.Fatalf("newJobStore(%q) failed: %v", name, err)
		}
		if _, ok := store.(*jobs.MemoryStore); !ok {
			t.Errorf("newJobStore(%q) = %T, want *jobs.MemoryStore", name, store)
		}
	}

	store, err := newJobStore("sqlite")
	if err != nil {
		t.Fatalf("newJobStore(sqlite) failed: %v", err)
	}
	bunStore, ok := store.(*jobs.BunStore)
	if !ok {
		t.Fatalf("newJobStore(sqlite) = %T, want *jobs.BunStore", store)
	}
	if err := (&ServerHandler{Jobs: bunStore}).Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if _, err := newJobStore("redis"); err == nil {
		t.Error("Expected an unknown store to be rejected")
	}
}
