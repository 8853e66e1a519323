package handlers

import (
	"net/http"

	"bookkeeper-backend/application/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NumberingHandler exposes the document numbering sequences. Next consumes a
// number; Peek previews the value the next caller would receive.
type NumberingHandler struct {
	numbering *services.NumberingService
	logger    *zap.Logger
}

func NewNumberingHandler(numbering *services.NumberingService, logger *zap.Logger) *NumberingHandler {
	return &NumberingHandler{
		numbering: numbering,
		logger:    logger,
	}
}

type numberResponse struct {
	Sequence string `json:"sequence"`
	Number   string `json:"number"`
}

// Next handles POST /api/v1/numbers/{sequence}/next.
func (h *NumberingHandler) Next(w http.ResponseWriter, r *http.Request) {
	sequence := chi.URLParam(r, "sequence")

	number, err := h.numbering.NextNumber(r.Context(), sequence)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, numberResponse{Sequence: sequence, Number: number})
}

// Peek handles GET /api/v1/numbers/{sequence}.
func (h *NumberingHandler) Peek(w http.ResponseWriter, r *http.Request) {
	sequence := chi.URLParam(r, "sequence")

	number, err := h.numbering.PeekNumber(r.Context(), sequence)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, numberResponse{Sequence: sequence, Number: number})
}
