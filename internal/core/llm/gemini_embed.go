package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/scholaris-ai/scholaris/internal/core"
)

// GeminiEmbedder produces embeddings through the Gemini batch API. One
// network call covers a whole batch of chunks, which is the dominant cost of
// ingestion, so callers should always prefer EmbedTexts over per-chunk calls.
type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	dim       int
	timeout   time.Duration
}

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string, dim int, timeout time.Duration) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedder: api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-embedding-001"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiEmbedder{client: cl, modelName: modelName, dim: dim, timeout: timeout}, nil
}

// EmbedTexts batches all texts in one request via BatchEmbedContents. The
// call carries its own timeout, distinct from the surrounding request or job
// deadline, so one slow batch cannot eat the whole budget.
//
// Transport failures wrap core.ErrEmbeddingProvider and may be retried at the
// job level. A response vector of the wrong length is a *core.DimensionError:
// fatal, the caller must abort the current ingestion unit.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	em := g.client.EmbeddingModel(g.modelName)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini batch embed: %v", core.ErrEmbeddingProvider, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: gemini returned %d embeddings for %d inputs",
			core.ErrEmbeddingProvider, len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if len(e.Values) != g.dim {
			return nil, &core.DimensionError{Want: g.dim, Got: len(e.Values)}
		}
		out = append(out, e.Values)
	}
	return out, nil
}

func (g *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no embedding for query", core.ErrEmbeddingProvider)
	}
	return vecs[0], nil
}

func (g *GeminiEmbedder) Dimension() int { return g.dim }

func (g *GeminiEmbedder) Name() string { return "gemini/" + g.modelName }

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)
