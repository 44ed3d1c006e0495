package rag

import (
	"sort"

	"github.com/scholaris-ai/scholaris/internal/models"
)

// ThresholdConfig sets the quality floor applied to fused results.
type ThresholdConfig struct {
	MinSimilarity float64
	MinScore      float64
	MaxResults    int
}

// Adaptive thresholding floors and scaling. The 0.8 multiplier and floors are
// tunable policy constants, not derived quantities; recalibrate against real
// corpora before trusting them.
const (
	adaptiveScale           = 0.8
	adaptiveSimilarityFloor = 0.5
	adaptiveScoreFloor      = 0.3
	adaptiveMaxResults      = 10
	adaptiveMinResults      = 3
)

// DefaultThresholdConfig is the fixed quality floor used when a caller wants
// a guaranteed cutoff regardless of corpus.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		MinSimilarity: 0.7,
		MinScore:      0.5,
		MaxResults:    10,
	}
}

// ApplyThresholding drops results below the configured similarity and score
// floors and caps the list to MaxResults.
func ApplyThresholding(results []models.HybridResult, cfg ThresholdConfig) []models.HybridResult {
	out := make([]models.HybridResult, 0, len(results))
	for _, r := range results {
		if r.Similarity < cfg.MinSimilarity || r.Score < cfg.MinScore {
			continue
		}
		out = append(out, r)
	}
	if cfg.MaxResults > 0 && len(out) > cfg.MaxResults {
		out = out[:cfg.MaxResults]
	}
	return out
}

// AdaptiveThresholding derives the cutoffs from the batch itself: the
// effective minimums scale with the mean similarity and mean score, floored
// by the fixed constants. A corpus where even the best matches are mediocre
// keeps more results at a lower bar; one with many excellent matches keeps
// fewer at a higher bar. Empty input returns empty output.
func AdaptiveThresholding(results []models.HybridResult) []models.HybridResult {
	if len(results) == 0 {
		return results
	}

	var sumSim, sumScore float64
	for _, r := range results {
		sumSim += r.Similarity
		sumScore += r.Score
	}
	n := float64(len(results))

	cfg := ThresholdConfig{
		MinSimilarity: maxf(adaptiveSimilarityFloor, (sumSim/n)*adaptiveScale),
		MinScore:      maxf(adaptiveScoreFloor, (sumScore/n)*adaptiveScale),
		MaxResults:    minInt(adaptiveMaxResults, maxInt(adaptiveMinResults, len(results))),
	}
	return ApplyThresholding(results, cfg)
}

// ReRank re-sorts results by a secondary blend of the fused score and the raw
// similarity. Once a quality floor has been applied, raw semantic closeness
// is a stronger relevance signal than the fused score alone, so the blend
// leans on the score but lets similarity break near-ties. The blend is
// internal ordering state only and never appears in the returned results.
func ReRank(results []models.HybridResult) []models.HybridResult {
	type ranked struct {
		res   models.HybridResult
		final float64
	}
	tmp := make([]ranked, len(results))
	for i, r := range results {
		tmp[i] = ranked{res: r, final: r.Score*0.7 + r.Similarity*0.3}
	}
	sort.Slice(tmp, func(i, j int) bool {
		if tmp[i].final != tmp[j].final {
			return tmp[i].final > tmp[j].final
		}
		return tmp[i].res.ChunkID < tmp[j].res.ChunkID
	})

	out := make([]models.HybridResult, len(tmp))
	for i, t := range tmp {
		out[i] = t.res
	}
	return out
}

// ProcessResults applies the fixed threshold then re-ranks.
func ProcessResults(results []models.HybridResult, cfg ThresholdConfig) []models.HybridResult {
	return ReRank(ApplyThresholding(results, cfg))
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
