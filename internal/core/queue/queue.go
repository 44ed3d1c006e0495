package queue

import (
	"context"

	"github.com/scholaris-ai/scholaris/internal/models"
)

// Job is one dequeued unit of ingestion work.
type Job struct {
	ID      string
	Payload models.IngestPayload
}

// JobQueue abstracts the ingestion job broker so the pipeline stays
// queue-implementation-agnostic. Delivery is at-least-once; ingestion is
// idempotent at the document level, so a redelivered job is safe.
//
// Producers use Enqueue and Status. The worker side drives the state machine:
// pending → running → completed|failed, with progress updates in between.
type JobQueue interface {
	Enqueue(ctx context.Context, payload models.IngestPayload) (jobID string, err error)
	Status(ctx context.Context, jobID string) (*models.JobStatus, error)

	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (*Job, error)
	MarkRunning(ctx context.Context, jobID string) error
	ReportProgress(ctx context.Context, jobID string, processed, total int) error
	Complete(ctx context.Context, jobID string, result *models.IngestResult) error
	Fail(ctx context.Context, jobID string, reason string) error

	Close() error
}

// progressPercent converts processed/total counts to a whole percentage.
// Reaches 100 only when every chunk has been processed.
func progressPercent(processed, total int) int {
	if total <= 0 {
		return 0
	}
	return processed * 100 / total
}
