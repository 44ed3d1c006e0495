package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scholaris-ai/scholaris/internal/config"
	"github.com/scholaris-ai/scholaris/internal/core"
	"github.com/scholaris-ai/scholaris/internal/core/ingestion"
	"github.com/scholaris-ai/scholaris/internal/models"
)

const maxUploadBytes = 32 << 20 // 32 MB

type DocumentHandler struct {
	store        core.Store
	objectclient core.ObjectClient // nil when object storage is not configured
	cfg          *config.Config
	validate     *validator.Validate
	logger       zerolog.Logger
}

func NewDocumentHandler(store core.Store, objectclient core.ObjectClient, cfg *config.Config, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		store:        store,
		objectclient: objectclient,
		cfg:          cfg,
		validate:     validator.New(),
		logger:       logger,
	}
}

type createDocumentRequest struct {
	Title             string `json:"title" validate:"required,max=500"`
	Content           string `json:"content" validate:"required"`
	Subject           string `json:"subject" validate:"omitempty,max=200"`
	Topic             string `json:"topic" validate:"omitempty,max=200"`
	Difficulty        string `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	LearningStyle     string `json:"learning_style" validate:"omitempty,max=100"`
	EstimatedTimeMins int    `json:"estimated_time_mins" validate:"omitempty,min=0"`
}

// CreateDocument accepts either a JSON body with inline content or a
// multipart upload whose file is converted to text. Either way the document
// lands with status uploaded; ingestion is a separate, explicit step.
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")

	var (
		req         createDocumentRequest
		fileName    string
		contentType string
		raw         []byte
	)

	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, fmt.Errorf("%w: parse multipart form: %v", core.ErrValidation, err))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, fmt.Errorf("%w: file field is required", core.ErrValidation))
			return
		}
		defer file.Close()

		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(file); err != nil {
			writeError(w, fmt.Errorf("read upload: %w", err))
			return
		}
		raw = buf.Bytes()
		fileName = filepath.Base(header.Filename)
		contentType = header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		text, err := ingestion.ExtractText(raw, contentType)
		if err != nil {
			writeError(w, err)
			return
		}

		req = createDocumentRequest{
			Title:             r.FormValue("title"),
			Content:           text,
			Subject:           r.FormValue("subject"),
			Topic:             r.FormValue("topic"),
			Difficulty:        r.FormValue("difficulty"),
			LearningStyle:     r.FormValue("learning_style"),
			EstimatedTimeMins: atoiOrZero(r.FormValue("estimated_time_mins")),
		}
		if req.Title == "" {
			req.Title = fileName
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: invalid JSON body: %v", core.ErrValidation, err))
			return
		}
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", core.ErrValidation, err))
		return
	}

	doc := &models.Document{
		ID:                uuid.NewString(),
		Title:             req.Title,
		Content:           req.Content,
		Length:            utf8.RuneCountInString(req.Content),
		FileName:          fileName,
		ContentType:       contentType,
		Subject:           req.Subject,
		Topic:             req.Topic,
		Difficulty:        req.Difficulty,
		LearningStyle:     req.LearningStyle,
		EstimatedTimeMins: req.EstimatedTimeMins,
		Status:            models.DocStatusUploaded,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}

	// Archive the original upload so the document can be re-ingested later
	// without a fresh upload. Skipped when object storage is not configured.
	if h.objectclient != nil && len(raw) > 0 {
		key := fmt.Sprintf("documents/%s/%s", doc.ID, fileName)
		uploadCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		url, err := h.objectclient.UploadFile(uploadCtx, h.cfg.BucketName, key, bytes.NewReader(raw), contentType)
		cancel()
		if err != nil {
			writeError(w, fmt.Errorf("archive upload: %w", err))
			return
		}
		doc.StorageURL = url
	}

	if err := h.store.CreateDocument(r.Context(), doc); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info().Str("doc_id", doc.ID).Str("title", doc.Title).Int("length", doc.Length).Msg("document created")
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.ListDocuments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []models.DocumentSummary{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) GetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")

	doc, err := h.store.GetDocumentByID(r.Context(), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	if doc == nil {
		writeError(w, fmt.Errorf("%w: document %s", core.ErrNotFound, docID))
		return
	}

	limit := atoiOrZero(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := atoiOrZero(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	chunks, err := h.store.GetChunksByDocument(r.Context(), docID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := h.store.CountChunksByDocument(r.Context(), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	if chunks == nil {
		chunks = []models.DocumentChunk{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": docID,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
		"chunks":      chunks,
	})
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")

	doc, err := h.store.GetDocumentByID(r.Context(), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	if doc == nil {
		writeError(w, fmt.Errorf("%w: document %s", core.ErrNotFound, docID))
		return
	}

	if err := h.store.DeleteDocument(r.Context(), docID); err != nil {
		writeError(w, err)
		return
	}

	// Best-effort cleanup of the archived original.
	if h.objectclient != nil && doc.StorageURL != "" && doc.FileName != "" {
		key := fmt.Sprintf("documents/%s/%s", doc.ID, doc.FileName)
		if derr := h.objectclient.DeleteFile(r.Context(), h.cfg.BucketName, key); derr != nil {
			h.logger.Warn().Err(derr).Str("doc_id", docID).Msg("could not delete archived file")
		}
	}

	h.logger.Info().Str("doc_id", docID).Msg("document deleted")
	w.WriteHeader(http.StatusNoContent)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
