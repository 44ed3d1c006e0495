package models

import (
	"time"
)

// Document statuses over the ingestion lifecycle.
const (
	DocStatusUploaded   = "uploaded"
	DocStatusProcessing = "processing"
	DocStatusReady      = "ready"
	DocStatusFailed     = "failed"
)

// Document represents an uploaded knowledge-base document. Content is the raw
// text operated on by the ingestion pipeline; the remaining metadata is
// curriculum provenance supplied by the caller at upload time.
type Document struct {
	ID                string    `db:"id" json:"id"`
	Title             string    `db:"title" json:"title"`
	Content           string    `db:"content" json:"-"`
	Length            int       `db:"length" json:"length"`
	FileName          string    `db:"file_name" json:"file_name,omitempty"`
	StorageURL        string    `db:"storage_url" json:"storage_url,omitempty"`
	ContentType       string    `db:"content_type" json:"content_type,omitempty"`
	Subject           string    `db:"subject" json:"subject,omitempty"`
	Topic             string    `db:"topic" json:"topic,omitempty"`
	Difficulty        string    `db:"difficulty" json:"difficulty,omitempty"`
	LearningStyle     string    `db:"learning_style" json:"learning_style,omitempty"`
	EstimatedTimeMins int       `db:"estimated_time_mins" json:"estimated_time_mins,omitempty"`
	Status            string    `db:"status" json:"status"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentSummary is the listing shape: document metadata plus how many
// chunks ingestion produced so far.
type DocumentSummary struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	Length     int       `db:"length" json:"length"`
	Status     string    `db:"status" json:"status"`
	ChunkCount int       `db:"chunk_count" json:"chunk_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DocumentChunk is one overlapping window of a document's text together with
// its embedding. StartOffset/EndOffset are rune offsets into the parent text;
// adjacent chunks overlap by the configured overlap window.
type DocumentChunk struct {
	ID          string    `db:"id" json:"id"`
	DocumentID  string    `db:"document_id" json:"document_id"`
	Position    int       `db:"position" json:"position"`
	Content     string    `db:"content" json:"content"`
	StartOffset int       `db:"start_offset" json:"start_offset"`
	EndOffset   int       `db:"end_offset" json:"end_offset"`
	Embedding   []float32 `db:"embedding" json:"-"` // pgvector column
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SearchResult is a vector-search hit. Similarity is 1 - cosine distance:
// 1.0 identical, 0.0 orthogonal, negative for opposing vectors.
type SearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// LexicalResult is a full-text-search hit. Rank is a non-negative ts_rank
// score; chunks with no term overlap are never returned.
type LexicalResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Rank       float64 `json:"rank"`
}

// HybridResult is the fused shape returned by hybrid search. Similarity and
// Rank carry the raw per-axis values (the minimum observed value is imputed
// for an axis the chunk was absent from); Score is the normalized weighted
// blend used for ordering.
type HybridResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Rank       float64 `json:"rank"`
	Score      float64 `json:"score"`
}

// IngestPayload is the unit of work handed to the ingestion queue.
type IngestPayload struct {
	DocID   string `json:"doc_id"`
	RawText string `json:"raw_text"`
}

// IngestResult is the terminal payload of a completed ingestion.
type IngestResult struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// JobState enumerates queue job states.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// JobStatus is the externally visible state of an ingestion job. Progress is
// a whole percentage, monotonically increasing, 100 only on completion.
type JobStatus struct {
	ID        string        `json:"id"`
	State     JobState      `json:"state"`
	Progress  int           `json:"progress"`
	Processed int           `json:"processed"`
	Total     int           `json:"total"`
	Error     string        `json:"error,omitempty"`
	Result    *IngestResult `json:"result,omitempty"`
}
