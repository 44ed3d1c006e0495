package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared across the retrieval and ingestion paths. Handlers
// and the queue worker classify failures with errors.Is/errors.As; nothing
// else should inspect error strings.
var (
	// ErrValidation marks missing or malformed caller input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a reference to a document or chunk that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStore marks a rejected read or write on the underlying store. Retry
	// policy belongs to the caller, not the core.
	ErrStore = errors.New("store failure")

	// ErrEmbeddingProvider marks a transient provider failure (network, rate
	// limit). Retryable at the job or request level.
	ErrEmbeddingProvider = errors.New("embedding provider failure")
)

// DimensionError reports an embedding vector whose length disagrees with the
// model's declared dimensionality. Fatal for the current ingestion unit: the
// pipeline must abort rather than persist corrupt vectors.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: got %d, want %d", e.Got, e.Want)
}

// Retryable reports whether an error is worth retrying wholesale at the job
// level. Dimension mismatches are never retryable.
func Retryable(err error) bool {
	var dim *DimensionError
	if errors.As(err, &dim) {
		return false
	}
	return errors.Is(err, ErrEmbeddingProvider)
}
