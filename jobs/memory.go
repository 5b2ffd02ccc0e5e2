// Package jobs keeps track of asynchronous conversions. Jobs live in memory
// only and are swept once they have been finished for a while.
package jobs

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/drummonds/pdfembed/engine/conversion"
	"github.com/oklog/ulid/v2"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// MemoryStore is a Repository backed by a map
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[ulid.ULID]*Job
	ids  *idSource

	// now is swapped out by tests
	now func() time.Time
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[ulid.ULID]*Job),
		ids:  newIDSource(),
		now:  time.Now,
	}
}

// CalculateUUID creates a ULID for the given time. Ids created in the same
// millisecond still sort in creation order.
func (s *MemoryStore) CalculateUUID(t time.Time) (ulid.ULID, error) {
	return s.ids.next(t)
}

// CreateJob registers a pending job
func (s *MemoryStore) CreateJob(fileName, message string) (*Job, error) {
	now := s.now()
	jobID, err := s.CalculateUUID(now)
	if err != nil {
		return nil, err
	}
	job := newJob(jobID, fileName, message, now)

	s.mu.Lock()
	s.jobs[jobID] = job
	s.mu.Unlock()

	Logger.Debug("Job created", "jobID", jobID, "fileName", fileName)
	copied := *job
	return &copied, nil
}

// StartJob moves a pending job to running
func (s *MemoryStore) StartJob(jobID ulid.ULID) error {
	return s.update(jobID, start(jobID))
}

// UpdateJobProgress records progress between 0 and 1. Progress never moves
// backwards and updates to a finished job are ignored.
func (s *MemoryStore) UpdateJobProgress(jobID ulid.ULID, progress float64, message string) error {
	return s.update(jobID, recordProgress(progress, message))
}

// CompleteJob stores the conversion result
func (s *MemoryStore) CompleteJob(jobID ulid.ULID, result *conversion.Result) error {
	if result == nil {
		return fmt.Errorf("job %s: nil result", jobID)
	}
	return s.update(jobID, complete(result))
}

// FailJob marks a job failed with an error message
func (s *MemoryStore) FailJob(jobID ulid.ULID, errorMsg string) error {
	return s.update(jobID, fail(errorMsg))
}

// GetJob returns a copy of the job
func (s *MemoryStore) GetJob(jobID ulid.ULID) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

// GetRecentJobs returns job summaries, newest first
func (s *MemoryStore) GetRecentJobs(limit, offset int) ([]Job, error) {
	all := s.summaries(func(*Job) bool { return true })
	if offset >= len(all) {
		return []Job{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// GetActiveJobs returns summaries of pending and running jobs, newest first
func (s *MemoryStore) GetActiveJobs() ([]Job, error) {
	return s.summaries((*Job).Active), nil
}

// DeleteJob removes a job and its images
func (s *MemoryStore) DeleteJob(jobID ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return ErrJobNotFound
	}
	delete(s.jobs, jobID)
	return nil
}

// DeleteOldJobs deletes finished jobs that completed before now minus olderThan
func (s *MemoryStore) DeleteOldJobs(olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, job := range s.jobs {
		if job.expired(cutoff) {
			delete(s.jobs, id)
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) update(jobID ulid.ULID, fn transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	now := s.now()
	if err := fn(job, now); err != nil {
		return err
	}
	job.UpdatedAt = now
	return nil
}

func (s *MemoryStore) summaries(keep func(*Job) bool) []Job {
	s.mu.RLock()
	result := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if keep(job) {
			result = append(result, job.Summary())
		}
	}
	s.mu.RUnlock()

	// ulids sort by creation time
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.Compare(result[j].ID) > 0
	})
	return result
}

// ProgressRecorder writes conversion progress into a job
type ProgressRecorder struct {
	Store Repository
	ID    ulid.ULID
}

func (p ProgressRecorder) Report(fraction float64) {
	message := fmt.Sprintf("Converting (%.0f%%)", fraction*100)
	if err := p.Store.UpdateJobProgress(p.ID, fraction, message); err != nil {
		Logger.Warn("Unable to record job progress", "jobID", p.ID, "error", err)
	}
}

var _ conversion.ProgressSink = ProgressRecorder{}
