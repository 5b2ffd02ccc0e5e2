package engine

import (
	"net/http"

	"github.com/drummonds/pdfembed/engine/conversion"
	"github.com/drummonds/pdfembed/engine/export"
	"github.com/drummonds/pdfembed/internal/build"
	"github.com/labstack/echo/v4"
)

// ConvertResponse is the body returned by a synchronous conversion
type ConvertResponse struct {
	FileName   string                        `json:"fileName"`
	TotalPages int                           `json:"totalPages"`
	Images     []conversion.EncodedImage     `json:"images"`
	Failures   []*conversion.PageRenderError `json:"failures"`
	HTML       string                        `json:"html"`
	Error      string                        `json:"error,omitempty"`
}

// ConvertDocument converts an uploaded PDF and returns every page as a data URI
// @Summary Convert a PDF
// @Description Render every page of the uploaded PDF and return the pages as base64 data URIs. Pages that fail are listed under failures.
// @Tags Conversion
// @Accept multipart/form-data
// @Produce json
// @Param pdf formData file true "PDF document"
// @Success 200 {object} ConvertResponse "Converted pages"
// @Failure 400 {object} map[string]interface{} "Not a PDF or unreadable document"
// @Failure 413 {object} map[string]interface{} "File too large"
// @Failure 422 {object} ConvertResponse "No pages could be converted"
// @Failure 503 {object} map[string]interface{} "Render engine busy, retry later"
// @Router /convert [post]
func (serverHandler *ServerHandler) ConvertDocument(c echo.Context) error {
	fileName, data, err := serverHandler.readUpload(c)
	if err != nil {
		Logger.Warn("Rejected upload", "fileName", fileName, "error", err)
		return errorJSON(c, statusForError(err), err.Error())
	}

	Logger.Info("Converting document", "fileName", fileName, "bytes", len(data))
	result, err := serverHandler.Converter.Convert(c.Request().Context(), data, nil)
	if err != nil {
		Logger.Error("Failed to convert document", "fileName", fileName, "error", err)
		return errorJSON(c, statusForError(err), err.Error())
	}

	response := ConvertResponse{
		FileName:   fileName,
		TotalPages: result.TotalPages,
		Images:     result.Images,
		Failures:   result.Failures,
		HTML:       export.HTMLSnippet(result.Images),
	}
	if response.Failures == nil {
		response.Failures = []*conversion.PageRenderError{}
	}
	if err := result.Err(); err != nil {
		response.Error = err.Error()
		return c.JSON(statusForError(err), response)
	}
	return c.JSON(http.StatusOK, response)
}

// GetAboutInfo returns information about the application configuration
// @Summary Get application information
// @Description Retrieve the version, renderer settings and upload limits
// @Tags Admin
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Application information"
// @Router /about [get]
func (serverHandler *ServerHandler) GetAboutInfo(c echo.Context) error {
	cfg := serverHandler.ServerConfig

	aboutInfo := map[string]interface{}{
		"version":             build.Version,
		"buildDate":           build.BuildDate,
		"renderEngine":        cfg.RenderEngine,
		"renderScale":         cfg.RenderScale,
		"imageFormat":         cfg.ImageFormat,
		"maxImageWidth":       cfg.MaxImageWidth,
		"maxUploadBytes":      cfg.MaxUploadBytes,
		"maxPages":            cfg.MaxPages,
		"jobStore":            cfg.JobStore,
		"jobRetentionMinutes": cfg.JobRetentionMinutes,
	}

	return c.JSON(http.StatusOK, aboutInfo)
}

// HealthCheck reports that the API is up
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (serverHandler *ServerHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "pdfembed API",
	})
}
