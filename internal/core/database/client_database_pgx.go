package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/scholaris-ai/scholaris/internal/config"
	"github.com/scholaris-ai/scholaris/internal/core"
	"github.com/scholaris-ai/scholaris/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.Store = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := cfg.DatabaseURL
	if cfg.SslCertPath != "" {
		if _, err := os.Stat(cfg.SslCertPath); err != nil {
			return nil, fmt.Errorf("ssl cert not accessible at %q: %w", cfg.SslCertPath, err)
		}
		u, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", cfg.SslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Document operations

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", core.ErrValidation)
	}
	const q = `
		INSERT INTO documents
			(id, title, content, length, file_name, storage_url, content_type,
			 subject, topic, difficulty, learning_style, estimated_time_mins, status,
			 created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.Title, doc.Content, doc.Length, doc.FileName, doc.StorageURL, doc.ContentType,
		doc.Subject, doc.Topic, doc.Difficulty, doc.LearningStyle, doc.EstimatedTimeMins, doc.Status)
	if err != nil {
		return fmt.Errorf("%w: create document: %v", core.ErrStore, err)
	}
	return nil
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, title, content, length, file_name, storage_url, content_type,
		       subject, topic, difficulty, learning_style, estimated_time_mins, status,
		       created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.Title, &d.Content, &d.Length, &d.FileName, &d.StorageURL, &d.ContentType,
		&d.Subject, &d.Topic, &d.Difficulty, &d.LearningStyle, &d.EstimatedTimeMins, &d.Status,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get document: %v", core.ErrStore, err)
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocuments(ctx context.Context) ([]models.DocumentSummary, error) {
	const q = `
		SELECT d.id, d.title, d.length, d.status, d.created_at,
		       COUNT(ch.id) AS chunk_count
		FROM documents d
		LEFT JOIN document_chunks ch ON ch.document_id = d.id
		GROUP BY d.id
		ORDER BY d.created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", core.ErrStore, err)
	}
	defer rows.Close()

	var out []models.DocumentSummary
	for rows.Next() {
		var d models.DocumentSummary
		if err := rows.Scan(&d.ID, &d.Title, &d.Length, &d.Status, &d.CreatedAt, &d.ChunkCount); err != nil {
			return nil, fmt.Errorf("%w: scan document: %v", core.ErrStore, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", core.ErrStore, err)
	}
	return out, nil
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return fmt.Errorf("%w: update status: %v", core.ErrStore, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: document %s", core.ErrNotFound, id)
	}
	return nil
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	// Chunks go with the document via ON DELETE CASCADE.
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete document: %v", core.ErrStore, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: document %s", core.ErrNotFound, id)
	}
	return nil
}

// Chunk operations

// InsertChunks inserts chunks in a single transaction.
func (c *DatabaseClient) InsertChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", core.ErrStore, err)
	}

	const q = `
		INSERT INTO document_chunks
			(id, document_id, position, content, start_offset, end_offset, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: prepare insert: %v", core.ErrStore, err)
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		vec := pgvector.NewVector(ch.Embedding)
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.Position, ch.Content, ch.StartOffset, ch.EndOffset, vec,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: insert chunk %d: %v", core.ErrStore, ch.Position, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit chunks: %v", core.ErrStore, err)
	}
	return nil
}

func (c *DatabaseClient) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("%w: delete chunks: %v", core.ErrStore, err)
	}
	return nil
}

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string, limit, offset int) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, position, content, start_offset, end_offset, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY position ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := c.db.QueryContext(ctx, q, documentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: get chunks: %v", core.ErrStore, err)
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var ch models.DocumentChunk
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.Position, &ch.Content, &ch.StartOffset, &ch.EndOffset, &ch.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %v", core.ErrStore, err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: get chunks: %v", core.ErrStore, err)
	}
	return out, nil
}

func (c *DatabaseClient) CountChunksByDocument(ctx context.Context, documentID string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`, documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count chunks: %v", core.ErrStore, err)
	}
	return n, nil
}

// Retrieval

// SearchByEmbedding returns the limit nearest chunks by cosine distance.
// Similarity is 1 - distance, so ordering by distance ascending yields
// similarity descending.
func (c *DatabaseClient) SearchByEmbedding(ctx context.Context, queryVec []float32, limit int) ([]models.SearchResult, error) {
	const q = `
		SELECT id, document_id, content, 1 - (embedding <=> $1) AS similarity
		FROM document_chunks
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1, id
		LIMIT $2
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", core.ErrStore, err)
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Content, &r.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scan vector hit: %v", core.ErrStore, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", core.ErrStore, err)
	}
	return out, nil
}

// SearchLexical ranks chunks with Postgres full-text search. Chunks with no
// term overlap never match the @@ filter and are excluded.
func (c *DatabaseClient) SearchLexical(ctx context.Context, queryText string, limit int) ([]models.LexicalResult, error) {
	const q = `
		SELECT id, document_id, content,
		       ts_rank(to_tsvector('english', content), websearch_to_tsquery('english', $1)) AS rank
		FROM document_chunks
		WHERE to_tsvector('english', content) @@ websearch_to_tsquery('english', $1)
		ORDER BY rank DESC, id
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, queryText, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: lexical search: %v", core.ErrStore, err)
	}
	defer rows.Close()

	var out []models.LexicalResult
	for rows.Next() {
		var r models.LexicalResult
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Content, &r.Rank); err != nil {
			return nil, fmt.Errorf("%w: scan lexical hit: %v", core.ErrStore, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: lexical search: %v", core.ErrStore, err)
	}
	return out, nil
}
