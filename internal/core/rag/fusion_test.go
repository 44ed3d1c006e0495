package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-ai/scholaris/internal/models"
)

func vecHit(id string, sim float64) models.SearchResult {
	return models.SearchResult{ChunkID: id, DocumentID: "doc", Content: id, Similarity: sim}
}

func lexHit(id string, rank float64) models.LexicalResult {
	return models.LexicalResult{ChunkID: id, DocumentID: "doc", Content: id, Rank: rank}
}

func TestFuseEmptyInputs(t *testing.T) {
	assert.Nil(t, Fuse(nil, nil, 10, DefaultAlpha))
	assert.Nil(t, Fuse([]models.SearchResult{vecHit("a", 0.9)}, nil, 0, DefaultAlpha))
}

func TestFuseScoresWithinBounds(t *testing.T) {
	vec := []models.SearchResult{vecHit("a", 0.95), vecHit("b", 0.4), vecHit("c", -0.2)}
	lex := []models.LexicalResult{lexHit("b", 0.8), lexHit("d", 0.1)}

	out := Fuse(vec, lex, 10, DefaultAlpha)
	require.Len(t, out, 4)
	for _, r := range out {
		assert.GreaterOrEqual(t, r.Score, 0.0, "chunk %s", r.ChunkID)
		assert.LessOrEqual(t, r.Score, 1.0, "chunk %s", r.ChunkID)
	}
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
	}
}

func TestFuseDegenerateAxisNormalizesToZero(t *testing.T) {
	// All equal on an axis: every normalized value on it is 0, never NaN.
	vec := []models.SearchResult{vecHit("a", 0.6), vecHit("b", 0.6), vecHit("c", 0.6)}
	out := Fuse(vec, nil, 10, 1.0)
	require.Len(t, out, 3)
	for _, r := range out {
		assert.Equal(t, 0.0, r.Score)
	}
}

func TestFuseAlphaEndpointsReproduceAxisOrder(t *testing.T) {
	vec := []models.SearchResult{vecHit("a", 0.9), vecHit("b", 0.5), vecHit("c", 0.2)}
	lex := []models.LexicalResult{lexHit("c", 0.9), lexHit("b", 0.5), lexHit("a", 0.1)}

	// alpha=1: pure vector ordering.
	out := Fuse(vec, lex, 10, 1.0)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ChunkID)
	assert.Equal(t, "b", out[1].ChunkID)
	assert.Equal(t, "c", out[2].ChunkID)

	// alpha=0: pure lexical ordering.
	out = Fuse(vec, lex, 10, 0.0)
	require.Len(t, out, 3)
	assert.Equal(t, "c", out[0].ChunkID)
	assert.Equal(t, "b", out[1].ChunkID)
	assert.Equal(t, "a", out[2].ChunkID)
}

func TestFuseImputesMinimumForMissingAxis(t *testing.T) {
	vec := []models.SearchResult{vecHit("a", 0.9), vecHit("b", 0.5)}
	lex := []models.LexicalResult{lexHit("c", 0.7), lexHit("d", 0.2)}

	out := Fuse(vec, lex, 10, DefaultAlpha)
	require.Len(t, out, 4)

	byID := map[string]models.HybridResult{}
	for _, r := range out {
		byID[r.ChunkID] = r
	}

	// Vector-only chunks carry the lexical minimum, and vice versa.
	assert.Equal(t, 0.2, byID["a"].Rank)
	assert.Equal(t, 0.2, byID["b"].Rank)
	assert.Equal(t, 0.5, byID["c"].Similarity)
	assert.Equal(t, 0.5, byID["d"].Similarity)

	// Imputed values normalize to the axis floor, so a single-axis chunk's
	// score comes entirely from the axis it was seen on.
	assert.InDelta(t, 0.5, byID["a"].Score, 1e-9)
	assert.InDelta(t, 0.5, byID["c"].Score, 1e-9)
}

func TestFuseClampsOutOfRangeObservations(t *testing.T) {
	vec := []models.SearchResult{vecHit("a", 1.3), vecHit("b", -0.5)}
	lex := []models.LexicalResult{lexHit("a", -2.0), lexHit("b", 0.4)}

	out := Fuse(vec, lex, 10, DefaultAlpha)
	require.Len(t, out, 2)
	for _, r := range out {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestFuseOverlapBeatsSingleAxis(t *testing.T) {
	// A chunk strong on both axes must outrank chunks of the same strength
	// seen on only one axis.
	vec := []models.SearchResult{vecHit("both", 0.9), vecHit("vecOnly", 0.9), vecHit("weak", 0.1)}
	lex := []models.LexicalResult{lexHit("both", 0.8), lexHit("lexOnly", 0.8), lexHit("weakLex", 0.05)}

	out := Fuse(vec, lex, 10, DefaultAlpha)
	require.NotEmpty(t, out)
	assert.Equal(t, "both", out[0].ChunkID)
}

func TestFuseTruncatesToLimit(t *testing.T) {
	vec := []models.SearchResult{vecHit("a", 0.9), vecHit("b", 0.8), vecHit("c", 0.7), vecHit("d", 0.6)}
	out := Fuse(vec, nil, 2, 1.0)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ChunkID)
	assert.Equal(t, "b", out[1].ChunkID)
}

func TestFuseStableTiebreak(t *testing.T) {
	vec := []models.SearchResult{vecHit("z", 0.5), vecHit("a", 0.5), vecHit("m", 0.5)}
	out := Fuse(vec, nil, 10, 1.0)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ChunkID)
	assert.Equal(t, "m", out[1].ChunkID)
	assert.Equal(t, "z", out[2].ChunkID)
}
