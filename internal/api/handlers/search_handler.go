package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/scholaris-ai/scholaris/internal/core"
	"github.com/scholaris-ai/scholaris/internal/core/retrieval"
)

// SearchService is what the handler needs from the retrieval layer.
type SearchService interface {
	Search(ctx context.Context, req retrieval.SearchRequest) (*retrieval.SearchResponse, error)
}

type SearchHandler struct {
	searcher SearchService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewSearchHandler(searcher SearchService, logger zerolog.Logger) *SearchHandler {
	return &SearchHandler{
		searcher: searcher,
		validate: validator.New(),
		logger:   logger,
	}
}

type queryRequest struct {
	Query string   `json:"query" validate:"required"`
	K     int      `json:"k" validate:"omitempty,min=1,max=20"`
	Mode  string   `json:"mode" validate:"omitempty,oneof=vector hybrid"`
	Alpha *float64 `json:"alpha" validate:"omitempty,min=0,max=1"`
}

// Query runs one retrieval request and returns the ranked snippets.
func (h *SearchHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %v", core.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", core.ErrValidation, err))
		return
	}

	resp, err := h.searcher.Search(r.Context(), retrieval.SearchRequest{
		Query: req.Query,
		K:     req.K,
		Mode:  retrieval.Mode(req.Mode),
		Alpha: req.Alpha,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
