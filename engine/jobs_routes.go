package engine

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/drummonds/pdfembed/engine/conversion"
	"github.com/drummonds/pdfembed/engine/export"
	"github.com/drummonds/pdfembed/jobs"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

// CreateJob accepts a PDF and converts it in the background
// @Summary Start a conversion job
// @Description Upload a PDF and convert it asynchronously. Poll the job for progress.
// @Tags Jobs
// @Accept multipart/form-data
// @Produce json
// @Param pdf formData file true "PDF document"
// @Success 202 {object} map[string]interface{} "Job created with job ID"
// @Failure 400 {object} map[string]interface{} "Not a PDF"
// @Failure 413 {object} map[string]interface{} "File too large"
// @Router /jobs [post]
func (serverHandler *ServerHandler) CreateJob(c echo.Context) error {
	fileName, data, err := serverHandler.readUpload(c)
	if err != nil {
		Logger.Warn("Rejected upload", "fileName", fileName, "error", err)
		return errorJSON(c, statusForError(err), err.Error())
	}

	job, err := serverHandler.Jobs.CreateJob(fileName, "Queued for conversion")
	if err != nil {
		Logger.Error("Failed to create conversion job", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to create job")
	}

	// Run conversion in a goroutine so we can return immediately
	go serverHandler.runConversionJob(job.ID, data)

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Conversion started",
		"jobId":   job.ID.String(),
	})
}

// GetJob retrieves a job by ID
// @Summary Get job by ID
// @Description Retrieve the status and progress of a conversion job, without image payloads
// @Tags Jobs
// @Accept json
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 200 {object} jobs.Job "Job details"
// @Failure 400 {object} map[string]interface{} "Invalid job ID"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Router /jobs/{id} [get]
func (serverHandler *ServerHandler) GetJob(c echo.Context) error {
	job, err := serverHandler.lookupJob(c)
	if err != nil {
		return jobError(c, err)
	}
	return c.JSON(http.StatusOK, job.Summary())
}

// DeleteJob discards a job and its images
// @Summary Delete a job
// @Tags Jobs
// @Param id path string true "Job ID (ULID)"
// @Success 204
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Router /jobs/{id} [delete]
func (serverHandler *ServerHandler) DeleteJob(c echo.Context) error {
	job, err := serverHandler.lookupJob(c)
	if err != nil {
		return jobError(c, err)
	}
	if err := serverHandler.Jobs.DeleteJob(job.ID); err != nil {
		return jobError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetRecentJobs retrieves recent jobs with pagination
// @Summary Get recent jobs
// @Description Retrieve a list of recent jobs with pagination
// @Tags Jobs
// @Accept json
// @Produce json
// @Param limit query int false "Number of jobs to return (default: 20)"
// @Param offset query int false "Offset for pagination (default: 0)"
// @Success 200 {array} jobs.Job "List of jobs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs [get]
func (serverHandler *ServerHandler) GetRecentJobs(c echo.Context) error {
	limit := 20
	offset := 0

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	recent, err := serverHandler.Jobs.GetRecentJobs(limit, offset)
	if err != nil {
		Logger.Error("Failed to get recent jobs", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to retrieve jobs")
	}

	if recent == nil {
		recent = []jobs.Job{}
	}

	return c.JSON(http.StatusOK, recent)
}

// GetActiveJobs retrieves all currently running or pending jobs
// @Summary Get active jobs
// @Description Retrieve all jobs that are currently running or pending
// @Tags Jobs
// @Accept json
// @Produce json
// @Success 200 {array} jobs.Job "List of active jobs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs/active [get]
func (serverHandler *ServerHandler) GetActiveJobs(c echo.Context) error {
	active, err := serverHandler.Jobs.GetActiveJobs()
	if err != nil {
		Logger.Error("Failed to get active jobs", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to retrieve active jobs")
	}

	if active == nil {
		active = []jobs.Job{}
	}

	return c.JSON(http.StatusOK, active)
}

// GetJobImages returns the converted pages of a finished job
// @Summary Get job images
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 200 {array} conversion.EncodedImage "Pages in document order"
// @Failure 409 {object} map[string]interface{} "Job still running"
// @Router /jobs/{id}/images [get]
func (serverHandler *ServerHandler) GetJobImages(c echo.Context) error {
	job, err := serverHandler.finishedJob(c)
	if err != nil {
		return jobError(c, err)
	}
	images := job.Images
	if images == nil {
		images = []conversion.EncodedImage{}
	}
	return c.JSON(http.StatusOK, images)
}

// GetJobImage downloads a single page image
// @Summary Download one page
// @Tags Jobs
// @Produce image/png,image/jpeg
// @Param id path string true "Job ID (ULID)"
// @Param page path int true "Page number in the source document"
// @Success 200 {file} binary
// @Failure 404 {object} map[string]interface{} "Page not converted"
// @Router /jobs/{id}/images/{page} [get]
func (serverHandler *ServerHandler) GetJobImage(c echo.Context) error {
	job, err := serverHandler.finishedJob(c)
	if err != nil {
		return jobError(c, err)
	}
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		return errorJSON(c, http.StatusBadRequest, "Invalid page number")
	}

	for _, img := range job.Images {
		if img.Page != page {
			continue
		}
		mimeType, data, err := export.DecodeDataURI(img.DataURI)
		if err != nil {
			Logger.Error("Stored image is not a valid data URI", "jobID", job.ID, "page", page, "error", err)
			return errorJSON(c, http.StatusInternalServerError, "Failed to decode image")
		}
		setAttachment(c, export.FileName(img))
		return c.Blob(http.StatusOK, mimeType, data)
	}
	return errorJSON(c, http.StatusNotFound, fmt.Sprintf("Page %d was not converted", page))
}

// GetJobHTML returns the email snippet for a finished job
// @Summary Get HTML snippet
// @Tags Jobs
// @Produce plain
// @Param id path string true "Job ID (ULID)"
// @Success 200 {string} string "HTML snippet"
// @Router /jobs/{id}/html [get]
func (serverHandler *ServerHandler) GetJobHTML(c echo.Context) error {
	job, err := serverHandler.finishedJob(c)
	if err != nil {
		return jobError(c, err)
	}
	return c.String(http.StatusOK, export.HTMLSnippet(job.Images))
}

// GetJobArchive downloads every page and the HTML snippet as a zip
// @Summary Download all pages
// @Tags Jobs
// @Produce application/zip
// @Param id path string true "Job ID (ULID)"
// @Success 200 {file} binary
// @Router /jobs/{id}/archive [get]
func (serverHandler *ServerHandler) GetJobArchive(c echo.Context) error {
	job, err := serverHandler.finishedJob(c)
	if err != nil {
		return jobError(c, err)
	}

	var buf bytes.Buffer
	if err := export.WriteArchive(&buf, job.Images); err != nil {
		Logger.Error("Failed to build archive", "jobID", job.ID, "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to build archive")
	}
	setAttachment(c, export.ArchiveName(job.FileName))
	return c.Blob(http.StatusOK, "application/zip", buf.Bytes())
}

var errJobNotFinished = errors.New("job is still running")

// lookupJob resolves the :id path parameter
func (serverHandler *ServerHandler) lookupJob(c echo.Context) (*jobs.Job, error) {
	jobID, err := ulid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid job ID format")
	}
	job, err := serverHandler.Jobs.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// finishedJob is lookupJob for endpoints that need results
func (serverHandler *ServerHandler) finishedJob(c echo.Context) (*jobs.Job, error) {
	job, err := serverHandler.lookupJob(c)
	if err != nil {
		return nil, err
	}
	if job.Active() {
		return nil, errJobNotFinished
	}
	return job, nil
}

func jobError(c echo.Context, err error) error {
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return errorJSON(c, httpErr.Code, fmt.Sprint(httpErr.Message))
	case errors.Is(err, jobs.ErrJobNotFound):
		return errorJSON(c, http.StatusNotFound, "Job not found")
	case errors.Is(err, errJobNotFinished):
		return errorJSON(c, http.StatusConflict, "Job has not finished yet")
	}
	Logger.Error("Job request failed", "error", err)
	return errorJSON(c, http.StatusInternalServerError, err.Error())
}

func setAttachment(c echo.Context, fileName string) {
	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
}
