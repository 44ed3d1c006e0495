package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrEmbeddingProvider))
	assert.True(t, Retryable(fmt.Errorf("embed batch at 0: %w", ErrEmbeddingProvider)))

	assert.False(t, Retryable(ErrValidation))
	assert.False(t, Retryable(ErrNotFound))
	assert.False(t, Retryable(ErrStore))

	// A dimension mismatch is fatal even when wrapped in a provider error.
	dim := &DimensionError{Want: 1536, Got: 768}
	assert.False(t, Retryable(dim))
	assert.False(t, Retryable(fmt.Errorf("%w: %w", ErrEmbeddingProvider, dim)))
}
