package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-ai/scholaris/internal/core"
	"github.com/scholaris-ai/scholaris/internal/core/llm"
	"github.com/scholaris-ai/scholaris/internal/models"
)

// fakeStore is an in-memory core.Store good enough for pipeline tests.
type fakeStore struct {
	mu     sync.Mutex
	docs   map[string]*models.Document
	chunks map[string][]models.DocumentChunk

	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:   map[string]*models.Document{},
		chunks: map[string][]models.DocumentChunk{},
	}
}

func (f *fakeStore) CreateDocument(_ context.Context, doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeStore) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id], nil
}

func (f *fakeStore) ListDocuments(context.Context) ([]models.DocumentSummary, error) {
	return nil, nil
}

func (f *fakeStore) UpdateDocumentStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	doc.Status = status
	return nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	delete(f.chunks, id)
	return nil
}

func (f *fakeStore) InsertChunks(_ context.Context, chunks []models.DocumentChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, ch := range chunks {
		f.chunks[ch.DocumentID] = append(f.chunks[ch.DocumentID], ch)
	}
	return nil
}

func (f *fakeStore) DeleteChunksByDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chunks, documentID)
	return nil
}

func (f *fakeStore) GetChunksByDocument(_ context.Context, documentID string, limit, offset int) ([]models.DocumentChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.chunks[documentID]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeStore) CountChunksByDocument(_ context.Context, documentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks[documentID]), nil
}

func (f *fakeStore) SearchByEmbedding(context.Context, []float32, int) ([]models.SearchResult, error) {
	return nil, nil
}

func (f *fakeStore) SearchLexical(context.Context, string, int) ([]models.LexicalResult, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

// failingEmbedder errors on every call after the first n successes.
type failingEmbedder struct {
	*llm.NullEmbedder
	calls   int
	failAt  int
	failErr error
}

func (f *failingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls >= f.failAt {
		return nil, f.failErr
	}
	return f.NullEmbedder.EmbedTexts(ctx, texts)
}

// wrongDimEmbedder declares one dimensionality but returns vectors of
// another, like a provider whose model config drifted from ours.
type wrongDimEmbedder struct {
	*llm.NullEmbedder
	returnDim int
}

func (w *wrongDimEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := w.NullEmbedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range vecs {
		vecs[i] = vecs[i][:w.returnDim]
	}
	return vecs, nil
}

func testPipeline(store core.Store, embedder core.EmbeddingProvider) *Pipeline {
	return New(store, embedder, Config{ChunkSize: 100, Overlap: 20, BatchSize: 4}, zerolog.Nop())
}

func seedDoc(t *testing.T, store *fakeStore, id string) {
	t.Helper()
	require.NoError(t, store.CreateDocument(context.Background(), &models.Document{
		ID:     id,
		Title:  "test doc",
		Status: models.DocStatusUploaded,
	}))
}

func TestIngestRoundTrip(t *testing.T) {
	store := newFakeStore()
	seedDoc(t, store, "doc-1")
	p := testPipeline(store, llm.NewNullEmbedder(32))

	text := strings.Repeat("the cell is the basic unit of life. ", 40)
	result, err := p.Ingest(context.Background(), "doc-1", text, nil)
	require.NoError(t, err)
	assert.Equal(t, result.Total, result.Processed)
	assert.Greater(t, result.Total, 1)

	doc, _ := store.GetDocumentByID(context.Background(), "doc-1")
	assert.Equal(t, models.DocStatusReady, doc.Status)

	n, _ := store.CountChunksByDocument(context.Background(), "doc-1")
	assert.Equal(t, result.Total, n)

	chunks, _ := store.GetChunksByDocument(context.Background(), "doc-1", 1000, 0)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Position)
		assert.Len(t, ch.Embedding, 32)
		assert.NotEmpty(t, ch.Content)
	}
}

func TestIngestProgressMonotone(t *testing.T) {
	store := newFakeStore()
	seedDoc(t, store, "doc-1")
	p := testPipeline(store, llm.NewNullEmbedder(16))

	var reports [][2]int
	text := strings.Repeat("photosynthesis converts light to chemical energy. ", 60)
	result, err := p.Ingest(context.Background(), "doc-1", text, func(processed, total int) {
		reports = append(reports, [2]int{processed, total})
	})
	require.NoError(t, err)
	require.NotEmpty(t, reports)

	prev := 0
	for _, r := range reports {
		assert.Greater(t, r[0], prev, "processed must strictly increase per batch")
		assert.Equal(t, result.Total, r[1])
		prev = r[0]
	}
	assert.Equal(t, result.Total, reports[len(reports)-1][0], "final report must cover every chunk")
}

func TestIngestEmptyTextRejected(t *testing.T) {
	store := newFakeStore()
	seedDoc(t, store, "doc-1")
	p := testPipeline(store, llm.NewNullEmbedder(16))

	_, err := p.Ingest(context.Background(), "doc-1", "   \n\t ", nil)
	assert.ErrorIs(t, err, core.ErrValidation)

	// The document is untouched.
	doc, _ := store.GetDocumentByID(context.Background(), "doc-1")
	assert.Equal(t, models.DocStatusUploaded, doc.Status)
}

func TestIngestUnknownDocument(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(store, llm.NewNullEmbedder(16))

	_, err := p.Ingest(context.Background(), "missing", "some text", nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestIngestEmbedFailureMarksDocumentFailed(t *testing.T) {
	store := newFakeStore()
	seedDoc(t, store, "doc-1")
	embedder := &failingEmbedder{
		NullEmbedder: llm.NewNullEmbedder(16),
		failAt:       2,
		failErr:      core.ErrEmbeddingProvider,
	}
	p := testPipeline(store, embedder)

	text := strings.Repeat("mitochondria are the powerhouse of the cell. ", 60)
	_, err := p.Ingest(context.Background(), "doc-1", text, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingProvider)

	doc, _ := store.GetDocumentByID(context.Background(), "doc-1")
	assert.Equal(t, models.DocStatusFailed, doc.Status)
}

func TestIngestDimensionMismatchAborts(t *testing.T) {
	store := newFakeStore()
	seedDoc(t, store, "doc-1")
	embedder := &wrongDimEmbedder{NullEmbedder: llm.NewNullEmbedder(16), returnDim: 8}
	p := testPipeline(store, embedder)

	_, err := p.Ingest(context.Background(), "doc-1", strings.Repeat("ribosomes build proteins. ", 40), nil)
	require.Error(t, err)

	var dimErr *core.DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 16, dimErr.Want)
	assert.Equal(t, 8, dimErr.Got)

	doc, _ := store.GetDocumentByID(context.Background(), "doc-1")
	assert.Equal(t, models.DocStatusFailed, doc.Status)

	// No partial batch may survive the abort.
	n, _ := store.CountChunksByDocument(context.Background(), "doc-1")
	assert.Equal(t, 0, n)
}

func TestIngestInsertFailureMarksDocumentFailed(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("disk full")
	seedDoc(t, store, "doc-1")
	p := testPipeline(store, llm.NewNullEmbedder(16))

	_, err := p.Ingest(context.Background(), "doc-1", strings.Repeat("text ", 100), nil)
	require.Error(t, err)

	doc, _ := store.GetDocumentByID(context.Background(), "doc-1")
	assert.Equal(t, models.DocStatusFailed, doc.Status)
}

func TestIngestIdempotentReingest(t *testing.T) {
	store := newFakeStore()
	seedDoc(t, store, "doc-1")
	p := testPipeline(store, llm.NewNullEmbedder(16))

	text := strings.Repeat("dna carries genetic information. ", 50)
	first, err := p.Ingest(context.Background(), "doc-1", text, nil)
	require.NoError(t, err)

	second, err := p.Ingest(context.Background(), "doc-1", text, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Total, second.Total)

	// Re-ingesting replaces chunks rather than appending.
	n, _ := store.CountChunksByDocument(context.Background(), "doc-1")
	assert.Equal(t, second.Total, n)
}

func TestIngestHonorsCancellation(t *testing.T) {
	store := newFakeStore()
	seedDoc(t, store, "doc-1")
	p := testPipeline(store, llm.NewNullEmbedder(16))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Ingest(ctx, "doc-1", strings.Repeat("text ", 100), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	doc, _ := store.GetDocumentByID(context.Background(), "doc-1")
	assert.Equal(t, models.DocStatusFailed, doc.Status)
}
