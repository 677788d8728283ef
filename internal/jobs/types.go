// Package jobs defines the background work the ingestion service runs off the
// request path: provider syncs, recurring-charge scans, and Notion exports.
package jobs

import (
	"context"
	"time"
)

// JobType identifies what a job does.
type JobType string

const (
	// JobTypeSyncAccount pulls transaction changes from the aggregation provider.
	JobTypeSyncAccount JobType = "sync_account"
	// JobTypeRecurringScan recomputes the recurring-charge set for an account.
	JobTypeRecurringScan JobType = "recurring_scan"
	// JobTypeNotionExport mirrors the recurring charges into Notion.
	JobTypeNotionExport JobType = "notion_export"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// IngestJob is one unit of background work. AccessToken is only set for
// provider syncs and never persisted anywhere but the in-memory store.
type IngestJob struct {
	JobID string  `json:"job_id"`
	Type  JobType `json:"type"`

	AccountID   string `json:"account_id"`
	AccessToken string `json:"-"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Publisher enqueues jobs. The in-memory queue serves single-instance
// deployments; a Cloud Tasks or Pub/Sub publisher can replace it without
// touching callers.
type Publisher interface {
	Publish(ctx context.Context, job *IngestJob) error
	Close() error
}

// JobHandler processes one job. A returned error means the job failed and may
// be retried.
type JobHandler func(ctx context.Context, job *IngestJob) error

// Consumer drains the queue.
type Consumer interface {
	// Start begins consuming jobs, calling handler for each one.
	Start(ctx context.Context, handler JobHandler) error
	// Stop stops consuming and waits for in-flight jobs to finish.
	Stop(ctx context.Context) error
}

// JobStore tracks job state so the API can report progress.
type JobStore interface {
	SaveJob(ctx context.Context, job *IngestJob) error
	GetJob(ctx context.Context, jobID string) (*IngestJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestJob, error)
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	AccountID string
	Type      JobType
	Status    JobStatus
	Limit     int
}
