// Package queue dispatches uploaded documents to analysis workers.
package queue

import (
	"context"
	"time"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// JobStatus tracks one analysis job through the queue.
type JobStatus struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"documentId"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Handler processes a dequeued job. A non-nil error requeues the job until
// the backend's retry budget is exhausted.
type Handler func(context.Context, JobStatus) error

// JobQueue is the analysis work queue.
type JobQueue interface {
	Enqueue(ctx context.Context, documentID string) (JobStatus, error)
	GetJob(ctx context.Context, jobID string) (JobStatus, bool, error)
	Start(ctx context.Context, concurrency int, handler Handler)
}
