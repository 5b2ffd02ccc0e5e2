package jobs

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/drummonds/pdfembed/engine/conversion"
	"github.com/oklog/ulid/v2"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrJobNotFound is returned for unknown or already swept job ids
var ErrJobNotFound = errors.New("job not found")

// Job is one conversion requested through the web UI
type Job struct {
	ID          ulid.ULID                     `json:"id"`
	FileName    string                        `json:"fileName"`
	Status      JobStatus                     `json:"status"`
	Progress    float64                       `json:"progress"` // 0-1
	Message     string                        `json:"message"`
	Error       string                        `json:"error,omitempty"`
	TotalPages  int                           `json:"totalPages"`
	ImageCount  int                           `json:"imageCount"`
	Images      []conversion.EncodedImage     `json:"images,omitempty"`
	Failures    []*conversion.PageRenderError `json:"failures,omitempty"`
	CreatedAt   time.Time                     `json:"createdAt"`
	UpdatedAt   time.Time                     `json:"updatedAt"`
	StartedAt   *time.Time                    `json:"startedAt,omitempty"`
	CompletedAt *time.Time                    `json:"completedAt,omitempty"`
}

// Active reports whether the job has not finished yet
func (j *Job) Active() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// Summary returns a copy without the image payloads, for listings and polling
func (j Job) Summary() Job {
	j.Images = nil
	return j
}

// Repository tracks conversion jobs
type Repository interface {
	CreateJob(fileName, message string) (*Job, error)
	StartJob(jobID ulid.ULID) error
	UpdateJobProgress(jobID ulid.ULID, progress float64, message string) error
	CompleteJob(jobID ulid.ULID, result *conversion.Result) error
	FailJob(jobID ulid.ULID, errorMsg string) error
	GetJob(jobID ulid.ULID) (*Job, error)
	GetRecentJobs(limit, offset int) ([]Job, error)
	GetActiveJobs() ([]Job, error)
	DeleteJob(jobID ulid.ULID) error
	DeleteOldJobs(olderThan time.Duration) (int, error)
}

// idSource hands out ULIDs that sort in creation order, even within one millisecond
type idSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newIDSource() *idSource {
	return &idSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *idSource) next(t time.Time) (ulid.ULID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.New(ulid.Timestamp(t), s.entropy)
}

func newJob(jobID ulid.ULID, fileName, message string, now time.Time) *Job {
	return &Job{
		ID:        jobID,
		FileName:  fileName,
		Status:    JobStatusPending,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// A transition changes a job in place. Every store runs them under its own
// lock so that the rules below hold whatever the backing storage.
type transition func(job *Job, now time.Time) error

func start(jobID ulid.ULID) transition {
	return func(job *Job, now time.Time) error {
		if job.Status != JobStatusPending {
			return fmt.Errorf("job %s is %s, not pending", jobID, job.Status)
		}
		job.Status = JobStatusRunning
		job.StartedAt = &now
		job.Message = "Converting"
		return nil
	}
}

// recordProgress clamps progress to [0, 1], never moves it backwards and
// ignores finished jobs
func recordProgress(progress float64, message string) transition {
	if math.IsNaN(progress) {
		progress = 0
	}
	progress = math.Max(0, math.Min(1, progress))

	return func(job *Job, now time.Time) error {
		if !job.Active() {
			return nil
		}
		if progress > job.Progress {
			job.Progress = progress
		}
		if message != "" {
			job.Message = message
		}
		return nil
	}
}

// complete stores the result. A result without a single image marks the job
// failed, though its page failures are kept for display.
func complete(result *conversion.Result) transition {
	return func(job *Job, now time.Time) error {
		job.Progress = 1
		job.TotalPages = result.TotalPages
		job.Images = result.Images
		job.ImageCount = len(result.Images)
		job.Failures = result.Failures
		job.CompletedAt = &now

		if err := result.Err(); err != nil {
			job.Status = JobStatusFailed
			job.Error = err.Error()
			job.Message = "No pages could be converted"
			return nil
		}
		job.Status = JobStatusCompleted
		job.Message = fmt.Sprintf("Converted %d of %d pages", len(result.Images), result.TotalPages)
		return nil
	}
}

func fail(errorMsg string) transition {
	return func(job *Job, now time.Time) error {
		job.Status = JobStatusFailed
		job.Error = errorMsg
		job.Message = "Conversion failed"
		job.CompletedAt = &now
		return nil
	}
}

// expired reports whether a finished job completed before cutoff
func (j *Job) expired(cutoff time.Time) bool {
	return !j.Active() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff)
}
