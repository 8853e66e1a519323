package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	"bookkeeper-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// JobHandler exposes the deferred job queue for inspection and manual
// scheduling. The worker process drains the queue; this surface exists for
// operators.
type JobHandler struct {
	jobs   ports.TimeBasedJobRepository
	logger *zap.Logger
}

func NewJobHandler(jobs ports.TimeBasedJobRepository, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		jobs:   jobs,
		logger: logger,
	}
}

type scheduleJobRequest struct {
	RunAfter  int64           `json:"runAfter" validate:"required,min=1"`
	EventType string          `json:"eventType" validate:"required,min=1,max=127"`
	Payload   json.RawMessage `json:"payload"`
}

type rescheduleJobRequest struct {
	RunAfter int64 `json:"runAfter" validate:"required,min=1"`
}

type jobResponse struct {
	ID        string          `json:"id"`
	RunAfter  int64           `json:"runAfter"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

func toJobResponse(j *entities.TimeBasedJob) jobResponse {
	return jobResponse{
		ID:        j.ID(),
		RunAfter:  j.RunAfter(),
		EventType: j.EventType(),
		Payload:   j.EventPayload(),
		CreatedAt: j.CreatedAt().Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt().Format(time.RFC3339),
	}
}

// Schedule handles POST /api/v1/jobs.
func (h *JobHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobs.Create(r.Context(), ports.TimeBasedJobArgs{
		RunAfter:     req.RunAfter,
		EventType:    req.EventType,
		EventPayload: req.Payload,
	})
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusCreated, toJobResponse(job))
}

// Get handles GET /api/v1/jobs/{id}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}
	if job == nil {
		respondError(h.logger, w, http.StatusNotFound, "Job not found")
		return
	}

	respondJSON(h.logger, w, http.StatusOK, toJobResponse(job))
}

// Reschedule handles PUT /api/v1/jobs/{id}. It moves an existing job to a new
// run time without touching its event type or payload.
func (h *JobHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req rescheduleJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}
	if job == nil {
		respondError(h.logger, w, http.StatusNotFound, "Job not found")
		return
	}

	job.Reschedule(req.RunAfter)
	if err := h.jobs.Save(r.Context(), job); err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, toJobResponse(job))
}

// List handles GET /api/v1/jobs. With due=true only jobs whose run time has
// passed are returned.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := ports.TimeBasedJobFilter{
		EventType: r.URL.Query().Get("eventType"),
		Limit:     queryInt(r, "limit"),
	}
	if r.URL.Query().Get("due") == "true" {
		filter.DueBefore = time.Now().Unix()
	}

	jobs, err := h.jobs.ListByQuery(r.Context(), filter)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}

	respondJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"jobs":  out,
		"count": len(out),
	})
}

// Delete handles DELETE /api/v1/jobs/{id}.
func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusNoContent, nil)
}
