package rag

import (
	"strings"
)

// Default window tuning for textbook-style prose. 200 runes of overlap keep
// enough context at chunk boundaries that embedding a chunk in isolation
// still captures sentences split across the seam.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// Chunk is one sliding window over a document's text. Start and End are rune
// offsets into the parent text, half-open: [Start, End).
type Chunk struct {
	Text  string
	Start int
	End   int
}

// SplitText cuts text into overlapping fixed-size windows. Each chunk spans
// [start, start+size) clipped to the text length, and the next window starts
// at end-overlap so consecutive chunks share overlap runes of context.
//
// size is clamped to at least 1 and overlap into [0, size-1]; a window that
// cannot advance falls through to start=end, so the loop always terminates.
// Whitespace-only windows are dropped. Empty text yields no chunks; callers
// must treat that as an ingestion failure, not a zero-chunk success.
func SplitText(text string, size, overlap int) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if size < 1 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > size-1 {
		overlap = size - 1
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		window := string(runes[start:end])
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, Chunk{Text: window, Start: start, End: end})
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}
