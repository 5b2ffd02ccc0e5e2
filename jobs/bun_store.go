package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/drummonds/pdfembed/engine/conversion"
)

// BunJob is the jobs table. Images and failures are stored as JSON.
type BunJob struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID          string                        `bun:"id,pk"` // ULID as string
	FileName    string                        `bun:"file_name,notnull"`
	Status      string                        `bun:"status,notnull"`
	Progress    float64                       `bun:"progress,notnull"`
	Message     string                        `bun:"message,notnull"`
	Error       string                        `bun:"error,nullzero"`
	TotalPages  int                           `bun:"total_pages,notnull"`
	ImageCount  int                           `bun:"image_count,notnull"`
	Images      []conversion.EncodedImage     `bun:"images,type:json,nullzero"`
	Failures    []*conversion.PageRenderError `bun:"failures,type:json,nullzero"`
	CreatedAt   time.Time                     `bun:"created_at,notnull"`
	UpdatedAt   time.Time                     `bun:"updated_at,notnull"`
	StartedAt   *time.Time                    `bun:"started_at,nullzero"`
	CompletedAt *time.Time                    `bun:"completed_at,nullzero"`
}

// ToJob converts BunJob to Job
func (bj *BunJob) ToJob() (*Job, error) {
	parsedULID, err := ulid.Parse(bj.ID)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          parsedULID,
		FileName:    bj.FileName,
		Status:      JobStatus(bj.Status),
		Progress:    bj.Progress,
		Message:     bj.Message,
		Error:       bj.Error,
		TotalPages:  bj.TotalPages,
		ImageCount:  bj.ImageCount,
		Images:      bj.Images,
		Failures:    bj.Failures,
		CreatedAt:   bj.CreatedAt,
		UpdatedAt:   bj.UpdatedAt,
		StartedAt:   bj.StartedAt,
		CompletedAt: bj.CompletedAt,
	}, nil
}

// FromJob converts Job to BunJob
func FromJob(job *Job) *BunJob {
	return &BunJob{
		ID:          job.ID.String(),
		FileName:    job.FileName,
		Status:      string(job.Status),
		Progress:    job.Progress,
		Message:     job.Message,
		Error:       job.Error,
		TotalPages:  job.TotalPages,
		ImageCount:  job.ImageCount,
		Images:      job.Images,
		Failures:    job.Failures,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}

// BunStore is a Repository on an in-memory SQLite database driven by Bun.
// The database is private to the store and disappears with it.
type BunStore struct {
	db  *bun.DB
	ids *idSource

	// mu serialises read-modify-write transitions
	mu sync.Mutex

	// now is swapped out by tests
	now func() time.Time
}

// NewBunStore opens a fresh in-memory database and creates the jobs table
func NewBunStore(ctx context.Context) (*BunStore, error) {
	// a named shared-cache database so every pooled connection sees the same data
	connectionString := fmt.Sprintf("file:pdfembed-jobs-%s?mode=memory&cache=shared", ulid.Make())
	sqlDB, err := sql.Open(sqliteshim.ShimName, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open job database: %w", err)
	}
	// the database lives as long as one connection stays open
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxIdleTime(0)

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	// Option to turn on verbose logging just returns failures otherwise
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(false), bundebug.FromEnv("BUNDEBUG")))

	if err := createJobsTable(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	Logger.Info("Job database ready", "driver", sqliteshim.ShimName)

	return &BunStore{db: db, ids: newIDSource(), now: time.Now}, nil
}

func createJobsTable(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*BunJob)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	indexes := map[string]string{
		"idx_jobs_status":       "status",
		"idx_jobs_completed_at": "completed_at",
	}
	for name, column := range indexes {
		if _, err := db.NewCreateIndex().Model((*BunJob)(nil)).Index(name).Column(column).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database, discarding every job
func (b *BunStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// CreateJob inserts a pending job
func (b *BunStore) CreateJob(fileName, message string) (*Job, error) {
	ctx := context.Background()
	now := b.now()
	jobID, err := b.ids.next(now)
	if err != nil {
		return nil, err
	}
	job := newJob(jobID, fileName, message, now)

	if _, err := b.db.NewInsert().Model(FromJob(job)).Exec(ctx); err != nil {
		return nil, err
	}
	Logger.Debug("Job created", "jobID", jobID, "fileName", fileName)
	return job, nil
}

// StartJob moves a pending job to running
func (b *BunStore) StartJob(jobID ulid.ULID) error {
	return b.update(jobID, start(jobID))
}

// UpdateJobProgress records progress between 0 and 1
func (b *BunStore) UpdateJobProgress(jobID ulid.ULID, progress float64, message string) error {
	return b.update(jobID, recordProgress(progress, message))
}

// CompleteJob stores the conversion result
func (b *BunStore) CompleteJob(jobID ulid.ULID, result *conversion.Result) error {
	if result == nil {
		return fmt.Errorf("job %s: nil result", jobID)
	}
	return b.update(jobID, complete(result))
}

// FailJob marks a job failed with an error message
func (b *BunStore) FailJob(jobID ulid.ULID, errorMsg string) error {
	return b.update(jobID, fail(errorMsg))
}

// GetJob retrieves a job by ID
func (b *BunStore) GetJob(jobID ulid.ULID) (*Job, error) {
	return b.get(context.Background(), jobID)
}

// GetRecentJobs returns job summaries, newest first
func (b *BunStore) GetRecentJobs(limit, offset int) ([]Job, error) {
	ctx := context.Background()
	var bunJobs []BunJob

	// SQLite only takes OFFSET after a LIMIT, -1 means no limit
	if limit <= 0 {
		limit = -1
	}
	err := b.db.NewSelect().
		Model(&bunJobs).
		ExcludeColumn("images").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bunJobsToJobs(bunJobs)
}

// GetActiveJobs returns summaries of pending and running jobs, newest first
func (b *BunStore) GetActiveJobs() ([]Job, error) {
	ctx := context.Background()
	var bunJobs []BunJob

	err := b.db.NewSelect().
		Model(&bunJobs).
		ExcludeColumn("images").
		Where("status IN (?)", bun.In([]string{string(JobStatusPending), string(JobStatusRunning)})).
		Order("id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bunJobsToJobs(bunJobs)
}

// DeleteJob removes a job and its images
func (b *BunStore) DeleteJob(jobID ulid.ULID) error {
	ctx := context.Background()
	result, err := b.db.NewDelete().
		Model((*BunJob)(nil)).
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	if count, err := result.RowsAffected(); err == nil && count == 0 {
		return ErrJobNotFound
	}
	return nil
}

// DeleteOldJobs deletes finished jobs that completed before now minus olderThan
func (b *BunStore) DeleteOldJobs(olderThan time.Duration) (int, error) {
	ctx := context.Background()
	cutoff := b.now().Add(-olderThan)

	b.mu.Lock()
	defer b.mu.Unlock()

	// compare times in Go, SQLite holds them as text
	var finished []BunJob
	err := b.db.NewSelect().
		Model(&finished).
		Column("id", "status", "completed_at").
		Where("status IN (?)", bun.In([]string{string(JobStatusCompleted), string(JobStatusFailed)})).
		Scan(ctx)
	if err != nil {
		return 0, err
	}

	var expired []string
	for _, row := range finished {
		job := Job{Status: JobStatus(row.Status), CompletedAt: row.CompletedAt}
		if job.expired(cutoff) {
			expired = append(expired, row.ID)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	result, err := b.db.NewDelete().
		Model((*BunJob)(nil)).
		Where("id IN (?)", bun.In(expired)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	count, err := result.RowsAffected()
	return int(count), err
}

func (b *BunStore) get(ctx context.Context, jobID ulid.ULID) (*Job, error) {
	bunJob := new(BunJob)
	err := b.db.NewSelect().
		Model(bunJob).
		Where("id = ?", jobID.String()).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return bunJob.ToJob()
}

func (b *BunStore) update(jobID ulid.ULID, fn transition) error {
	ctx := context.Background()

	b.mu.Lock()
	defer b.mu.Unlock()

	job, err := b.get(ctx, jobID)
	if err != nil {
		return err
	}
	now := b.now()
	if err := fn(job, now); err != nil {
		return err
	}
	job.UpdatedAt = now

	_, err = b.db.NewUpdate().
		Model(FromJob(job)).
		WherePK().
		Exec(ctx)
	return err
}

// bunJobsToJobs converts rows to job summaries
func bunJobsToJobs(bunJobs []BunJob) ([]Job, error) {
	jobs := make([]Job, 0, len(bunJobs))
	for _, bunJob := range bunJobs {
		job, err := bunJob.ToJob()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job.Summary())
	}
	return jobs, nil
}

var (
	_ Repository = (*BunStore)(nil)
	_ Repository = (*MemoryStore)(nil)
)
