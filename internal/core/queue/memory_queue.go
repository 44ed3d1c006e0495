package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/scholaris-ai/scholaris/internal/core"
	"github.com/scholaris-ai/scholaris/internal/models"
)

// MemoryQueue is the in-process JobQueue used when no Redis address is
// configured, and in tests. Jobs flow through a bounded channel; if the
// channel is full, Enqueue blocks until a worker frees space.
type MemoryQueue struct {
	jobs chan *Job

	mu     sync.Mutex
	status map[string]*models.JobStatus
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &MemoryQueue{
		jobs:   make(chan *Job, capacity),
		status: make(map[string]*models.JobStatus),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, payload models.IngestPayload) (string, error) {
	id := uuid.NewString()

	q.mu.Lock()
	q.status[id] = &models.JobStatus{ID: id, State: models.JobPending}
	q.mu.Unlock()

	select {
	case q.jobs <- &Job{ID: id, Payload: payload}:
		return id, nil
	case <-ctx.Done():
		q.mu.Lock()
		delete(q.status, id)
		q.mu.Unlock()
		return "", ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) MarkRunning(_ context.Context, jobID string) error {
	return q.update(jobID, func(s *models.JobStatus) {
		s.State = models.JobRunning
	})
}

func (q *MemoryQueue) ReportProgress(_ context.Context, jobID string, processed, total int) error {
	return q.update(jobID, func(s *models.JobStatus) {
		s.Progress = progressPercent(processed, total)
		s.Processed = processed
		s.Total = total
	})
}

func (q *MemoryQueue) Complete(_ context.Context, jobID string, result *models.IngestResult) error {
	return q.update(jobID, func(s *models.JobStatus) {
		s.State = models.JobCompleted
		s.Progress = 100
		s.Processed = result.Processed
		s.Total = result.Total
		s.Result = result
	})
}

func (q *MemoryQueue) Fail(_ context.Context, jobID string, reason string) error {
	return q.update(jobID, func(s *models.JobStatus) {
		s.State = models.JobFailed
		s.Error = reason
	})
}

func (q *MemoryQueue) Status(_ context.Context, jobID string) (*models.JobStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.status[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", core.ErrNotFound, jobID)
	}
	cp := *s
	if s.Result != nil {
		res := *s.Result
		cp.Result = &res
	}
	return &cp, nil
}

func (q *MemoryQueue) update(jobID string, fn func(*models.JobStatus)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.status[jobID]
	if !ok {
		return fmt.Errorf("%w: job %s", core.ErrNotFound, jobID)
	}
	fn(s)
	return nil
}

func (q *MemoryQueue) Close() error { return nil }

var _ JobQueue = (*MemoryQueue)(nil)
