package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/scholaris-ai/scholaris/internal/core"
)

// NullEmbedder is the offline stand-in for a real embedding provider. It
// derives a deterministic unit vector of the configured dimensionality from
// the SHA-256 of the text, so the rest of the pipeline stays exercisable in
// environments without provider credentials.
//
// The vectors carry no semantic meaning. Wiring picks this provider
// explicitly when no API key is configured and logs it at startup; it must
// never be an implicit fallback inside the real provider's code path.
type NullEmbedder struct {
	dim int
}

func NewNullEmbedder(dim int) *NullEmbedder {
	return &NullEmbedder{dim: dim}
}

func (n *NullEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = n.vectorFor(t)
	}
	return out, nil
}

func (n *NullEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: query text is empty", core.ErrValidation)
	}
	return n.vectorFor(text), nil
}

func (n *NullEmbedder) vectorFor(text string) []float32 {
	hash := sha256.Sum256([]byte(text))
	vec := make([]float32, n.dim)

	// Cycle the hash bytes into pseudo-random values in [-1, 1].
	for i := 0; i < n.dim; i++ {
		idx := (i * 4) % (len(hash) - 3)
		v := binary.BigEndian.Uint32(hash[idx : idx+4])
		vec[i] = (float32(v)/float32(math.MaxUint32))*2 - 1
		// Perturb by position so dimensions beyond the hash length differ.
		vec[i] += float32(i%7) * 1e-3
	}

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq > 0 {
		inv := float32(1 / math.Sqrt(sumSq))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

func (n *NullEmbedder) Dimension() int { return n.dim }

func (n *NullEmbedder) Name() string { return "null" }

func (n *NullEmbedder) Close() error { return nil }

var _ core.EmbeddingProvider = (*NullEmbedder)(nil)
