package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/drummonds/pdfembed/config"
	"github.com/drummonds/pdfembed/engine/conversion"
	"github.com/drummonds/pdfembed/engine/pdfrenderer"
	"github.com/drummonds/pdfembed/engine/validation"
	"github.com/drummonds/pdfembed/jobs"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// UploadField is the multipart field carrying the PDF
const UploadField = "pdf"

// multipart framing on top of the file itself
const uploadOverhead = 1 << 20

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	Jobs         jobs.Repository
	Converter    *conversion.Converter
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
}

// NewServerHandler builds the render engine, converter and job store described by serverConfig
func NewServerHandler(serverConfig config.ServerConfig, e *echo.Echo) (*ServerHandler, error) {
	encoder, err := conversion.NewDataURIEncoder(serverConfig.ImageFormat, serverConfig.JPEGQuality, serverConfig.MaxImageWidth)
	if err != nil {
		return nil, err
	}
	renderer, err := pdfrenderer.NewRenderer(pdfrenderer.Options{
		Engine:  serverConfig.RenderEngine,
		Workers: serverConfig.PDFiumWorkers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start render engine: %w", err)
	}
	Logger.Info("Render engine started", "engine", serverConfig.RenderEngine, "workers", serverConfig.PDFiumWorkers)

	store, err := newJobStore(serverConfig.JobStore)
	if err != nil {
		renderer.Close()
		return nil, err
	}

	return &ServerHandler{
		Jobs: store,
		Converter: &conversion.Converter{
			Renderer: renderer,
			Encoder:  encoder,
			Scale:    serverConfig.RenderScale,
		},
		Echo:         e,
		ServerConfig: serverConfig,
	}, nil
}

// newJobStore picks the Repository named by JOB_STORE
func newJobStore(name string) (jobs.Repository, error) {
	switch name {
	case "", "memory":
		return jobs.NewMemoryStore(), nil
	case "sqlite":
		return jobs.NewBunStore(context.Background())
	}
	return nil, fmt.Errorf("unknown job store %q, expected memory or sqlite", name)
}

// Close shuts down the render engine and the job store
func (serverHandler *ServerHandler) Close() error {
	var errs []error
	if closer, ok := serverHandler.Jobs.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if serverHandler.Converter != nil && serverHandler.Converter.Renderer != nil {
		errs = append(errs, serverHandler.Converter.Renderer.Close())
	}
	return errors.Join(errs...)
}

// RegisterAPIRoutes adds every /api route to the handler's echo instance
func (serverHandler *ServerHandler) RegisterAPIRoutes() {
	e := serverHandler.Echo
	bodyLimit := middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: fmt.Sprintf("%dB", serverHandler.ServerConfig.MaxUploadBytes+uploadOverhead),
	})

	// Conversion
	e.POST("/api/convert", serverHandler.ConvertDocument, bodyLimit)

	// Job tracking
	e.POST("/api/jobs", serverHandler.CreateJob, bodyLimit)
	e.GET("/api/jobs", serverHandler.GetRecentJobs)
	e.GET("/api/jobs/active", serverHandler.GetActiveJobs)
	e.GET("/api/jobs/:id", serverHandler.GetJob)
	e.DELETE("/api/jobs/:id", serverHandler.DeleteJob)

	// Job results
	e.GET("/api/jobs/:id/images", serverHandler.GetJobImages)
	e.GET("/api/jobs/:id/images/:page", serverHandler.GetJobImage)
	e.GET("/api/jobs/:id/html", serverHandler.GetJobHTML)
	e.GET("/api/jobs/:id/archive", serverHandler.GetJobArchive)

	// Admin
	e.GET("/api/about", serverHandler.GetAboutInfo)
	e.GET("/api/health", serverHandler.HealthCheck)
}

func (serverHandler *ServerHandler) limits() validation.Limits {
	return validation.Limits{
		MaxBytes: serverHandler.ServerConfig.MaxUploadBytes,
		MaxPages: serverHandler.ServerConfig.MaxPages,
	}
}

// readUpload pulls the PDF out of the multipart form and validates it
func (serverHandler *ServerHandler) readUpload(c echo.Context) (string, []byte, error) {
	fileHeader, err := c.FormFile(UploadField)
	if err != nil {
		return "", nil, fmt.Errorf("%w: missing form field %q", validation.ErrEmptyUpload, UploadField)
	}

	upload := validation.Upload{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get(echo.HeaderContentType),
		Size:        fileHeader.Size,
	}
	limits := serverHandler.limits()
	if err := validation.CheckHeader(upload, limits); err != nil {
		return upload.FileName, nil, err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return upload.FileName, nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return upload.FileName, nil, err
	}
	if err := validation.Check(upload, data, limits); err != nil {
		return upload.FileName, nil, err
	}
	return upload.FileName, data, nil
}

// statusForError maps validation and conversion errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, validation.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, validation.ErrNotPDF),
		errors.Is(err, validation.ErrEmptyUpload),
		errors.Is(err, validation.ErrTooManyPages),
		errors.Is(err, conversion.ErrDocumentLoad):
		return http.StatusBadRequest
	case errors.Is(err, conversion.ErrNoPagesConverted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, pdfrenderer.ErrEngineBusy):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func errorJSON(c echo.Context, code int, message string) error {
	return c.JSON(code, map[string]interface{}{
		"error": message,
	})
}

// runConversionJob converts a document in the background, recording progress
// and the result on the job
func (serverHandler *ServerHandler) runConversionJob(jobID ulid.ULID, document []byte) {
	// Add panic recovery and update job status on panic
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in conversion job", "panic", r, "jobID", jobID)
			serverHandler.Jobs.FailJob(jobID, fmt.Sprintf("Panic: %v", r))
		}
	}()

	if err := serverHandler.Jobs.StartJob(jobID); err != nil {
		Logger.Error("Failed to start job", "jobID", jobID, "error", err)
		return
	}

	progress := jobs.ProgressRecorder{Store: serverHandler.Jobs, ID: jobID}
	result, err := serverHandler.Converter.Convert(context.Background(), document, progress)
	if err != nil {
		Logger.Error("Conversion job failed", "jobID", jobID, "error", err)
		if err := serverHandler.Jobs.FailJob(jobID, err.Error()); err != nil {
			Logger.Error("Failed to record job failure", "jobID", jobID, "error", err)
		}
		return
	}

	if err := serverHandler.Jobs.CompleteJob(jobID, result); err != nil {
		Logger.Error("Failed to complete job", "jobID", jobID, "error", err)
		return
	}
	Logger.Info("Conversion job finished", "jobID", jobID, "pages", result.TotalPages, "converted", len(result.Images))
}
