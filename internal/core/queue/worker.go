package queue

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/scholaris-ai/scholaris/internal/core"
	"github.com/scholaris-ai/scholaris/internal/core/ingestion"
)

// Worker drains the ingestion queue and runs the pipeline for each job.
// A failing job is recorded and the loop moves on; ingestion errors never
// take the worker down.
type Worker struct {
	queue    JobQueue
	pipeline *ingestion.Pipeline
	logger   zerolog.Logger
}

func NewWorker(queue JobQueue, pipeline *ingestion.Pipeline, logger zerolog.Logger) *Worker {
	return &Worker{queue: queue, pipeline: pipeline, logger: logger}
}

// Run blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Msg("ingestion worker started")
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.Info().Msg("ingestion worker shutting down")
				return ctx.Err()
			}
			w.logger.Warn().Err(err).Msg("dequeue failed")
			continue
		}
		if job == nil {
			// Blocking pop timed out with nothing queued.
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *Job) {
	log := w.logger.With().Str("job_id", job.ID).Str("doc_id", job.Payload.DocID).Logger()

	if err := w.queue.MarkRunning(ctx, job.ID); err != nil {
		log.Warn().Err(err).Msg("could not mark job running")
	}
	log.Info().Msg("job started")

	progress := func(processed, total int) {
		if perr := w.queue.ReportProgress(ctx, job.ID, processed, total); perr != nil {
			log.Warn().Err(perr).Msg("could not report progress")
		}
	}

	result, err := w.pipeline.Ingest(ctx, job.Payload.DocID, job.Payload.RawText, progress)
	if err != nil && core.Retryable(err) {
		// One in-place retry for transient provider failures. Safe because
		// ingestion is document-level idempotent; anything non-retryable
		// (validation, dimension mismatch) fails the job immediately.
		log.Warn().Err(err).Msg("retryable failure, retrying job")
		result, err = w.pipeline.Ingest(ctx, job.Payload.DocID, job.Payload.RawText, progress)
	}
	if err != nil {
		if ferr := w.queue.Fail(context.WithoutCancel(ctx), job.ID, err.Error()); ferr != nil {
			log.Warn().Err(ferr).Msg("could not mark job failed")
		}
		log.Error().Err(err).Msg("job failed")
		return
	}

	if cerr := w.queue.Complete(ctx, job.ID, result); cerr != nil {
		log.Warn().Err(cerr).Msg("could not mark job completed")
	}
	log.Info().Int("processed", result.Processed).Int("total", result.Total).Msg("job completed")
}
