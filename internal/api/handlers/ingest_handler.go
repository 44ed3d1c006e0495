package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/scholaris-ai/scholaris/internal/core"
	"github.com/scholaris-ai/scholaris/internal/core/ingestion"
	"github.com/scholaris-ai/scholaris/internal/core/queue"
	"github.com/scholaris-ai/scholaris/internal/models"
)

type IngestHandler struct {
	store    core.Store
	pipeline *ingestion.Pipeline
	queue    queue.JobQueue
	objects  core.ObjectClient // nil when object storage is not configured
	bucket   string
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewIngestHandler(store core.Store, pipeline *ingestion.Pipeline, q queue.JobQueue, objects core.ObjectClient, bucket string, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{
		store:    store,
		pipeline: pipeline,
		queue:    q,
		objects:  objects,
		bucket:   bucket,
		validate: validator.New(),
		logger:   logger,
	}
}

type ingestRequest struct {
	DocumentID string `json:"document_id" validate:"required,uuid4"`
	// RawText overrides the stored document content when set.
	RawText string `json:"raw_text"`
}

// resolveText falls back to the document's stored content when the request
// carries no raw text, and to the archived original upload when the content
// column is empty too.
func (h *IngestHandler) resolveText(r *http.Request, req *ingestRequest) (string, error) {
	if req.RawText != "" {
		return req.RawText, nil
	}
	doc, err := h.store.GetDocumentByID(r.Context(), req.DocumentID)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", fmt.Errorf("%w: document %s", core.ErrNotFound, req.DocumentID)
	}
	if doc.Content != "" {
		return doc.Content, nil
	}
	if h.objects != nil && doc.StorageURL != "" && doc.FileName != "" {
		key := fmt.Sprintf("documents/%s/%s", doc.ID, doc.FileName)
		data, err := h.objects.GetFile(r.Context(), h.bucket, key)
		if err != nil {
			return "", fmt.Errorf("fetch archived upload: %w", err)
		}
		h.logger.Info().Str("doc_id", doc.ID).Str("key", key).Msg("re-ingesting from archived upload")
		return ingestion.ExtractText(data, doc.ContentType)
	}
	return "", fmt.Errorf("%w: document %s has no stored content and no raw_text was given", core.ErrValidation, req.DocumentID)
}

func (h *IngestHandler) decode(r *http.Request) (*ingestRequest, error) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body: %v", core.ErrValidation, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	return &req, nil
}

// Ingest runs the pipeline synchronously and returns the terminal counts.
// Useful for small documents and tests; large documents should go through
// Enqueue.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(r)
	if err != nil {
		writeError(w, err)
		return
	}

	text, err := h.resolveText(r, req)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.pipeline.Ingest(r.Context(), req.DocumentID, text, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Enqueue hands the document to the background queue and returns 202 with a
// job id the caller can poll.
func (h *IngestHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(r)
	if err != nil {
		writeError(w, err)
		return
	}

	text, err := h.resolveText(r, req)
	if err != nil {
		writeError(w, err)
		return
	}

	jobID, err := h.queue.Enqueue(r.Context(), models.IngestPayload{DocID: req.DocumentID, RawText: text})
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info().Str("job_id", jobID).Str("doc_id", req.DocumentID).Msg("ingestion enqueued")
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// JobStatus reports the state of a queued ingestion job.
func (h *IngestHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		writeError(w, fmt.Errorf("%w: jobId query parameter is required", core.ErrValidation))
		return
	}

	status, err := h.queue.Status(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
