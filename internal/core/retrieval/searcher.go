package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/scholaris-ai/scholaris/internal/core"
	"github.com/scholaris-ai/scholaris/internal/core/rag"
	"github.com/scholaris-ai/scholaris/internal/models"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	ModeVector Mode = "vector"
	ModeHybrid Mode = "hybrid"
)

const (
	// DefaultK and MaxK bound how many snippets a query returns.
	DefaultK = 5
	MaxK     = 20

	// overFetchFactor asks each axis for more candidates than the caller
	// wants so fusion has enough overlap material to work with. A recall
	// tunable, not a correctness requirement.
	overFetchFactor = 2
)

// SearchRequest is the caller-facing query shape. Alpha is the hybrid fusion
// weight (nil means the searcher's configured default).
type SearchRequest struct {
	Query string
	K     int
	Mode  Mode
	Alpha *float64
}

// SearchResponse carries the ranked snippets for one query.
type SearchResponse struct {
	Query   string                `json:"query"`
	Mode    Mode                  `json:"mode"`
	Results []models.HybridResult `json:"results"`
}

// Searcher orchestrates query embedding, the two search axes, fusion and
// thresholding. It holds no per-request state: normalization bounds are
// computed from each request's own result batch, so concurrent queries never
// interfere.
type Searcher struct {
	store        core.Store
	embedder     core.EmbeddingProvider
	defaultAlpha float64
	logger       zerolog.Logger
}

// NewSearcher builds a Searcher. defaultAlpha is the hybrid fusion weight
// used when a request carries none; out-of-range values fall back to
// rag.DefaultAlpha.
func NewSearcher(store core.Store, embedder core.EmbeddingProvider, defaultAlpha float64, logger zerolog.Logger) *Searcher {
	if defaultAlpha < 0 || defaultAlpha > 1 {
		defaultAlpha = rag.DefaultAlpha
	}
	return &Searcher{store: store, embedder: embedder, defaultAlpha: defaultAlpha, logger: logger}
}

// Search runs one retrieval request. Vector mode returns the raw
// similarity-ranked snippets; hybrid mode runs both axes concurrently, fuses
// them, then narrows with adaptive thresholding and re-ranks.
//
// If either axis of a hybrid search fails, the whole request fails. We never
// silently degrade to vector-only: a missing lexical axis would skew fused
// scores while looking like a normal response.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", core.ErrValidation)
	}

	k := req.K
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		k = MaxK
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeVector
	}

	alpha := s.defaultAlpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: alpha must be in [0,1]", core.ErrValidation)
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var results []models.HybridResult
	switch mode {
	case ModeVector:
		results, err = s.vectorSearch(ctx, queryVec, k)
	case ModeHybrid:
		results, err = s.hybridSearch(ctx, queryVec, req.Query, k, alpha)
	default:
		return nil, fmt.Errorf("%w: unsupported search mode %q", core.ErrValidation, mode)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("mode", string(mode)).
		Int("k", k).
		Int("results", len(results)).
		Msg("search complete")

	return &SearchResponse{Query: req.Query, Mode: mode, Results: results}, nil
}

func (s *Searcher) vectorSearch(ctx context.Context, queryVec []float32, k int) ([]models.HybridResult, error) {
	hits, err := s.store.SearchByEmbedding(ctx, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	out := make([]models.HybridResult, len(hits))
	for i, r := range hits {
		out[i] = models.HybridResult{
			ChunkID:    r.ChunkID,
			DocumentID: r.DocumentID,
			Content:    r.Content,
			Similarity: r.Similarity,
			Score:      r.Similarity,
		}
	}
	return out, nil
}

func (s *Searcher) hybridSearch(ctx context.Context, queryVec []float32, queryText string, k int, alpha float64) ([]models.HybridResult, error) {
	fetch := k * overFetchFactor

	var (
		vecRes []models.SearchResult
		lexRes []models.LexicalResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vecRes, err = s.store.SearchByEmbedding(gctx, queryVec, fetch)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		lexRes, err = s.store.SearchLexical(gctx, queryText, fetch)
		if err != nil {
			return fmt.Errorf("lexical search: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := rag.Fuse(vecRes, lexRes, fetch, alpha)
	narrowed := rag.ReRank(rag.AdaptiveThresholding(fused))
	if len(narrowed) > k {
		narrowed = narrowed[:k]
	}
	return narrowed, nil
}
