package queue

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-ai/scholaris/internal/core"
	"github.com/scholaris-ai/scholaris/internal/core/ingestion"
	"github.com/scholaris-ai/scholaris/internal/core/llm"
	"github.com/scholaris-ai/scholaris/internal/models"
)

func TestMemoryQueueLifecycle(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	jobID, err := q.Enqueue(ctx, models.IngestPayload{DocID: "doc-1", RawText: "text"})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	status, err := q.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, status.State)
	assert.Equal(t, 0, status.Progress)

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, "doc-1", job.Payload.DocID)

	require.NoError(t, q.MarkRunning(ctx, jobID))
	status, _ = q.Status(ctx, jobID)
	assert.Equal(t, models.JobRunning, status.State)

	require.NoError(t, q.ReportProgress(ctx, jobID, 2, 8))
	status, _ = q.Status(ctx, jobID)
	assert.Equal(t, 25, status.Progress)
	assert.Equal(t, 2, status.Processed)
	assert.Equal(t, 8, status.Total)

	require.NoError(t, q.Complete(ctx, jobID, &models.IngestResult{Processed: 8, Total: 8}))
	status, _ = q.Status(ctx, jobID)
	assert.Equal(t, models.JobCompleted, status.State)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.Result)
	assert.Equal(t, 8, status.Result.Processed)
}

func TestMemoryQueueFail(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	jobID, err := q.Enqueue(ctx, models.IngestPayload{DocID: "doc-1", RawText: "text"})
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, jobID, "embedding provider down"))
	status, err := q.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, status.State)
	assert.Equal(t, "embedding provider down", status.Error)
}

func TestMemoryQueueUnknownJob(t *testing.T) {
	q := NewMemoryQueue(1)
	_, err := q.Status(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, q.MarkRunning(context.Background(), "nope"), core.ErrNotFound)
}

func TestMemoryQueueDequeueHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueueStatusReturnsCopy(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	jobID, _ := q.Enqueue(ctx, models.IngestPayload{DocID: "doc-1", RawText: "text"})
	first, _ := q.Status(ctx, jobID)
	first.State = models.JobFailed

	second, _ := q.Status(ctx, jobID)
	assert.Equal(t, models.JobPending, second.State)
}

// workerStore is the minimal core.Store the pipeline touches during a worker
// run. Unimplemented methods panic through the embedded nil interface.
type workerStore struct {
	core.Store

	mu     sync.Mutex
	docs   map[string]*models.Document
	chunks map[string][]models.DocumentChunk
}

func newWorkerStore(docIDs ...string) *workerStore {
	s := &workerStore{
		docs:   map[string]*models.Document{},
		chunks: map[string][]models.DocumentChunk{},
	}
	for _, id := range docIDs {
		s.docs[id] = &models.Document{ID: id, Title: id, Status: models.DocStatusUploaded}
	}
	return s
}

func (s *workerStore) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id], nil
}

func (s *workerStore) UpdateDocumentStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[id]; ok {
		doc.Status = status
	}
	return nil
}

func (s *workerStore) DeleteChunksByDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, id)
	return nil
}

func (s *workerStore) InsertChunks(_ context.Context, chunks []models.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range chunks {
		s.chunks[ch.DocumentID] = append(s.chunks[ch.DocumentID], ch)
	}
	return nil
}

func (s *workerStore) docStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id].Status
}

func waitForState(t *testing.T, q JobQueue, jobID string, want models.JobState) *models.JobStatus {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("job %s never reached state %s", jobID, want)
		case <-time.After(10 * time.Millisecond):
		}
		status, err := q.Status(context.Background(), jobID)
		require.NoError(t, err)
		if status.State == want {
			return status
		}
	}
}

func TestWorkerProcessesJobEndToEnd(t *testing.T) {
	store := newWorkerStore("doc-1")
	pipeline := ingestion.New(store, llm.NewNullEmbedder(16),
		ingestion.Config{ChunkSize: 100, Overlap: 20, BatchSize: 4}, zerolog.Nop())

	q := NewMemoryQueue(4)
	worker := NewWorker(q, pipeline, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	text := strings.Repeat("osmosis moves water across membranes. ", 40)
	jobID, err := q.Enqueue(ctx, models.IngestPayload{DocID: "doc-1", RawText: text})
	require.NoError(t, err)

	status := waitForState(t, q, jobID, models.JobCompleted)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.Result)
	assert.Equal(t, status.Result.Total, status.Result.Processed)
	assert.Equal(t, models.DocStatusReady, store.docStatus("doc-1"))
}

// flakyEmbedder fails its first call with a transient provider error, then
// behaves normally.
type flakyEmbedder struct {
	*llm.NullEmbedder
	mu    sync.Mutex
	calls int
}

func (f *flakyEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()
	if first {
		return nil, core.ErrEmbeddingProvider
	}
	return f.NullEmbedder.EmbedTexts(ctx, texts)
}

func TestWorkerRetriesTransientProviderFailure(t *testing.T) {
	store := newWorkerStore("doc-1")
	embedder := &flakyEmbedder{NullEmbedder: llm.NewNullEmbedder(16)}
	pipeline := ingestion.New(store, embedder,
		ingestion.Config{ChunkSize: 100, Overlap: 20, BatchSize: 4}, zerolog.Nop())

	q := NewMemoryQueue(4)
	worker := NewWorker(q, pipeline, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	jobID, err := q.Enqueue(ctx, models.IngestPayload{
		DocID:   "doc-1",
		RawText: strings.Repeat("chlorophyll absorbs light. ", 30),
	})
	require.NoError(t, err)

	// The first embed call fails transiently; the in-place retry completes
	// the job instead of failing it.
	status := waitForState(t, q, jobID, models.JobCompleted)
	assert.Equal(t, 100, status.Progress)
	assert.Equal(t, models.DocStatusReady, store.docStatus("doc-1"))
}

func TestWorkerSurvivesFailingJob(t *testing.T) {
	store := newWorkerStore("good-doc")
	pipeline := ingestion.New(store, llm.NewNullEmbedder(16),
		ingestion.Config{ChunkSize: 100, Overlap: 20, BatchSize: 4}, zerolog.Nop())

	q := NewMemoryQueue(4)
	worker := NewWorker(q, pipeline, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	// Unknown document fails; the next job must still be processed.
	badID, err := q.Enqueue(ctx, models.IngestPayload{DocID: "missing-doc", RawText: "text"})
	require.NoError(t, err)
	goodID, err := q.Enqueue(ctx, models.IngestPayload{
		DocID:   "good-doc",
		RawText: strings.Repeat("enzymes catalyze reactions. ", 30),
	})
	require.NoError(t, err)

	bad := waitForState(t, q, badID, models.JobFailed)
	assert.NotEmpty(t, bad.Error)

	good := waitForState(t, q, goodID, models.JobCompleted)
	assert.Equal(t, 100, good.Progress)
}
