package rag

import (
	"sort"

	"github.com/scholaris-ai/scholaris/internal/models"
)

// DefaultAlpha weighs the vector and lexical axes equally.
const DefaultAlpha = 0.5

// Fuse merges a vector result set and a lexical result set into one ranked
// list. The union of chunk ids participates: a chunk seen on only one axis
// gets the minimum observed value imputed on the other axis, so a miss on an
// axis costs it that axis's floor rather than excluding it.
//
// Cosine similarity and ts_rank live on incomparable scales, so each axis is
// min-max normalized within the batch before blending; without that,
// whichever axis has the larger absolute magnitude would dominate regardless
// of alpha. Observed similarities are clamped into [0,1] and ranks floored at
// 0 before taking the batch min/max; a degenerate axis (max == min)
// normalizes to 0 for every item, never NaN.
//
// The fused score is alpha*normSim + (1-alpha)*normRank with alpha clamped
// into [0,1]. Output is sorted by fused score descending with a chunk-id
// tiebreak and truncated to limit.
func Fuse(vec []models.SearchResult, lex []models.LexicalResult, limit int, alpha float64) []models.HybridResult {
	if limit <= 0 || (len(vec) == 0 && len(lex) == 0) {
		return nil
	}
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}

	simLo, simHi := axisBounds(len(vec), func(i int) float64 { return clamp01(vec[i].Similarity) })
	lexLo, lexHi := axisBounds(len(lex), func(i int) float64 { return max0(lex[i].Rank) })

	merged := make(map[string]*models.HybridResult, len(vec)+len(lex))
	for _, r := range vec {
		merged[r.ChunkID] = &models.HybridResult{
			ChunkID:    r.ChunkID,
			DocumentID: r.DocumentID,
			Content:    r.Content,
			Similarity: r.Similarity,
			Rank:       lexLo, // imputed until the lexical pass says otherwise
		}
	}
	for _, r := range lex {
		if h, ok := merged[r.ChunkID]; ok {
			h.Rank = r.Rank
			continue
		}
		merged[r.ChunkID] = &models.HybridResult{
			ChunkID:    r.ChunkID,
			DocumentID: r.DocumentID,
			Content:    r.Content,
			Similarity: simLo,
			Rank:       r.Rank,
		}
	}

	out := make([]models.HybridResult, 0, len(merged))
	for _, h := range merged {
		normSim := normalize(clamp01(h.Similarity), simLo, simHi)
		normRank := normalize(max0(h.Rank), lexLo, lexHi)
		h.Score = alpha*normSim + (1-alpha)*normRank
		out = append(out, *h)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// axisBounds returns the min and max of n observed values. An empty axis
// collapses to [0,0] so every normalized value on it is 0.
func axisBounds(n int, at func(i int) float64) (lo, hi float64) {
	if n == 0 {
		return 0, 0
	}
	lo, hi = at(0), at(0)
	for i := 1; i < n; i++ {
		v := at(i)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	n := (v - lo) / (hi - lo)
	return clamp01(n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
