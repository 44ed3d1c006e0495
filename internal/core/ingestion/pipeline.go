package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scholaris-ai/scholaris/internal/core"
	"github.com/scholaris-ai/scholaris/internal/core/rag"
	"github.com/scholaris-ai/scholaris/internal/models"
)

// Config tunes the pipeline.
//
// ChunkSize/Overlap: sliding-window parameters in runes.
// BatchSize: chunks embedded and persisted per batch; bounds provider request
// size and memory.
// EmbedTimeout: deadline for a single batched embedding call, separate from
// the job deadline.
type Config struct {
	ChunkSize    int
	Overlap      int
	BatchSize    int
	EmbedTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:    rag.DefaultChunkSize,
		Overlap:      rag.DefaultOverlap,
		BatchSize:    64,
		EmbedTimeout: 60 * time.Second,
	}
}

// ProgressFunc receives processed/total chunk counts after every batch.
type ProgressFunc func(processed, total int)

// Pipeline runs chunk → embed → persist for one document at a time. Batches
// are sequential on purpose: the embedding provider's rate and size limits
// are the bottleneck, and one in-flight batched request per job is the
// friendly shape.
type Pipeline struct {
	store    core.Store
	embedder core.EmbeddingProvider
	cfg      Config
	logger   zerolog.Logger
}

func New(store core.Store, embedder core.EmbeddingProvider, cfg Config, logger zerolog.Logger) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = rag.DefaultChunkSize
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = rag.DefaultOverlap
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 60 * time.Second
	}
	return &Pipeline{store: store, embedder: embedder, cfg: cfg, logger: logger}
}

// Ingest chunks rawText, embeds the chunks in batches and persists each
// (chunk, embedding) pair. Re-ingesting a document is idempotent at the
// document level: existing chunks are deleted before the new set is written.
//
// Any failure marks the document failed and aborts: a dimension mismatch in
// particular must never leave a document half-embedded and marked ready.
// Chunks persisted by earlier batches may remain visible mid-flight, which is
// why callers must not serve a document until its status says ready.
// Cancellation is honored at batch boundaries; a batch already sent to the
// provider runs to completion.
func (p *Pipeline) Ingest(ctx context.Context, docID, rawText string, progress ProgressFunc) (*models.IngestResult, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("%w: raw text is empty", core.ErrValidation)
	}

	doc, err := p.store.GetDocumentByID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document %s", core.ErrNotFound, docID)
	}

	chunks := rag.SplitText(rawText, p.cfg.ChunkSize, p.cfg.Overlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: text produced no chunks", core.ErrValidation)
	}
	total := len(chunks)

	if err := p.store.UpdateDocumentStatus(ctx, docID, models.DocStatusProcessing); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	if err := p.store.DeleteChunksByDocument(ctx, docID); err != nil {
		return nil, p.fail(ctx, docID, fmt.Errorf("clear previous chunks: %w", err))
	}

	p.logger.Info().
		Str("doc_id", docID).
		Int("chunks", total).
		Int("batch_size", p.cfg.BatchSize).
		Str("embedder", p.embedder.Name()).
		Msg("ingestion started")

	processed := 0
	for start := 0; start < total; start += p.cfg.BatchSize {
		select {
		case <-ctx.Done():
			return nil, p.fail(ctx, docID, ctx.Err())
		default:
		}

		end := start + p.cfg.BatchSize
		if end > total {
			end = total
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		ectx, cancel := context.WithTimeout(ctx, p.cfg.EmbedTimeout)
		vecs, err := p.embedder.EmbedTexts(ectx, texts)
		cancel()
		if err != nil {
			return nil, p.fail(ctx, docID, fmt.Errorf("embed batch at %d: %w", start, err))
		}
		if len(vecs) != len(batch) {
			return nil, p.fail(ctx, docID, fmt.Errorf("%w: got %d vectors for %d chunks",
				core.ErrEmbeddingProvider, len(vecs), len(batch)))
		}
		// The dimension invariant is enforced here, not trusted to the
		// provider: a short vector must never reach the store.
		dim := p.embedder.Dimension()
		for i := range vecs {
			if len(vecs[i]) != dim {
				return nil, p.fail(ctx, docID, &core.DimensionError{Want: dim, Got: len(vecs[i])})
			}
		}

		rows := make([]models.DocumentChunk, len(batch))
		for i, c := range batch {
			rows[i] = models.DocumentChunk{
				ID:          uuid.NewString(),
				DocumentID:  docID,
				Position:    start + i,
				Content:     c.Text,
				StartOffset: c.Start,
				EndOffset:   c.End,
				Embedding:   vecs[i],
				CreatedAt:   time.Now(),
			}
		}
		if err := p.store.InsertChunks(ctx, rows); err != nil {
			return nil, p.fail(ctx, docID, fmt.Errorf("insert chunks at %d: %w", start, err))
		}

		processed = end
		if progress != nil {
			progress(processed, total)
		}
	}

	if err := p.store.UpdateDocumentStatus(ctx, docID, models.DocStatusReady); err != nil {
		return nil, fmt.Errorf("mark ready: %w", err)
	}

	p.logger.Info().Str("doc_id", docID).Int("chunks", processed).Msg("ingestion complete")
	return &models.IngestResult{Processed: processed, Total: total}, nil
}

// fail marks the document failed and returns the original error. The status
// update is best-effort; the caller's error matters more than ours.
func (p *Pipeline) fail(ctx context.Context, docID string, err error) error {
	if uerr := p.store.UpdateDocumentStatus(context.WithoutCancel(ctx), docID, models.DocStatusFailed); uerr != nil {
		p.logger.Warn().Err(uerr).Str("doc_id", docID).Msg("could not mark document failed")
	}
	p.logger.Error().Err(err).Str("doc_id", docID).Msg("ingestion failed")
	return err
}
