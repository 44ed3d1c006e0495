package core

import (
	"context"
	"io"

	"github.com/scholaris-ai/scholaris/internal/models"
)

// Store defines all persistence operations the retrieval and ingestion paths
// need. It abstracts Postgres/pgvector so higher layers never depend on a
// specific DB. The store must support concurrent reads; vector and lexical
// search of a single request may run in parallel.
type Store interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]models.DocumentSummary, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error
	// DeleteDocument cascades to all chunks of the document.
	DeleteDocument(ctx context.Context, id string) error

	InsertChunks(ctx context.Context, chunks []models.DocumentChunk) error
	DeleteChunksByDocument(ctx context.Context, documentID string) error
	GetChunksByDocument(ctx context.Context, documentID string, limit, offset int) ([]models.DocumentChunk, error)
	CountChunksByDocument(ctx context.Context, documentID string) (int, error)

	// SearchByEmbedding returns the top-limit chunks by cosine similarity,
	// descending, with a stable id tiebreak. The nearest chunks are returned
	// regardless of how relevant they are.
	SearchByEmbedding(ctx context.Context, queryVec []float32, limit int) ([]models.SearchResult, error)

	// SearchLexical returns term-ranked chunks, descending. Chunks with zero
	// term overlap with the query are excluded entirely.
	SearchLexical(ctx context.Context, queryText string, limit int) ([]models.LexicalResult, error)

	Close() error
}

// EmbeddingProvider turns text into fixed-length dense vectors. Every vector
// returned must have exactly Dimension() elements; providers surface a
// *DimensionError otherwise. EmbedTexts is order-preserving, 1:1 with input.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Name() string
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage. The
// service archives raw document text so a document can be re-ingested
// without re-upload.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteFile(ctx context.Context, bucket, key string) error
}
