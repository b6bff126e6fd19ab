// Package jobs defines the background ingestion job model: statement
// extraction is slow, so uploads are acknowledged immediately and processed
// asynchronously by a worker pool.
package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeIngestStatement represents a statement ingestion job.
	JobTypeIngestStatement JobType = "ingest_statement"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// IngestResult counts what one completed ingestion did.
type IngestResult struct {
	Bank           string `json:"bank,omitempty"`
	StatementMonth string `json:"statement_month,omitempty"`
	Extracted      int    `json:"extracted"`
	Added          int    `json:"added"`
	Duplicates     int    `json:"duplicates"`
	Categorized    int    `json:"categorized"`
	LearnedVendors int    `json:"learned_vendors"`
}

// IngestStatementJob processes one uploaded statement document: fetch from
// the archive, extract candidates, deduplicate, insert, optionally
// auto-categorize.
type IngestStatementJob struct {
	JobID string `json:"job_id"`

	// DocumentURI is the gs:// URI of the archived statement.
	DocumentURI string `json:"document_uri"`

	// Filename is the original upload name, shown in job listings.
	Filename string `json:"filename"`

	// AutoCategorize runs the categorization pipeline over the batch after
	// insertion.
	AutoCategorize bool `json:"auto_categorize"`

	Status      JobStatus     `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Error       string        `json:"error,omitempty"`
	RetryCount  int           `json:"retry_count"`
	MaxRetries  int           `json:"max_retries"`
	Result      *IngestResult `json:"result,omitempty"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *IngestStatementJob) GetID() string        { return j.JobID }
func (j *IngestStatementJob) GetType() JobType     { return JobTypeIngestStatement }
func (j *IngestStatementJob) GetStatus() JobStatus { return j.Status }

// Publisher defines the interface for publishing jobs to a queue.
// The abstraction allows different queue implementations (in-memory, Cloud
// Tasks, Pub/Sub).
type Publisher interface {
	// PublishIngestStatement publishes a statement ingestion job.
	PublishIngestStatement(ctx context.Context, job *IngestStatementJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue, calling the handler for
	// each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job failed and
// eligible for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state so callers can poll progress.
type JobStore interface {
	SaveJob(ctx context.Context, job *IngestStatementJob) error
	GetJob(ctx context.Context, jobID string) (*IngestStatementJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestStatementJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// DocumentURI filters jobs by archived document.
	DocumentURI string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
