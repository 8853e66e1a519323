package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/application/services"
	"bookkeeper-backend/domain/core/entities"
	"bookkeeper-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AttachmentHandler exposes the attachment lifecycle over REST: the
// two-phase upload, link management, listing, and orphan maintenance.
type AttachmentHandler struct {
	attachments *services.AttachmentService
	logger      *zap.Logger
}

func NewAttachmentHandler(attachments *services.AttachmentService, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachments: attachments,
		logger:      logger,
	}
}

type requestUploadRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=255"`
	MimeType string `json:"mimeType" validate:"required,max=127"`
	Size     int64  `json:"size" validate:"min=0"`
}

type confirmUploadRequest struct {
	Size int64 `json:"size" validate:"required,min=1"`
}

type renameAttachmentRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

type linkInvoiceRequest struct {
	InvoiceID string `json:"invoiceId" validate:"required,uuid"`
}

type linkItemRequest struct {
	InventoryItemID string `json:"inventoryItemId" validate:"required,uuid"`
}

type assignExpensesRequest struct {
	ExpenseIDs []string `json:"expenseIds" validate:"required,dive,uuid"`
}

type attachmentResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	MimeType        string   `json:"mimeType"`
	Size            int64    `json:"size"`
	Bucket          string   `json:"bucket"`
	StorageKey      string   `json:"storageKey"`
	Status          string   `json:"status"`
	InvoiceID       string   `json:"invoiceId,omitempty"`
	InventoryItemID string   `json:"inventoryItemId,omitempty"`
	ExpenseIDs      []string `json:"expenseIds,omitempty"`
	CreatedAt       string   `json:"createdAt"`
	UpdatedAt       string   `json:"updatedAt"`
}

type uploadDestinationResponse struct {
	Attachment attachmentResponse `json:"attachment"`
	Bucket     string             `json:"bucket"`
	Key        string             `json:"key"`
}

func toAttachmentResponse(a *entities.Attachment) attachmentResponse {
	return attachmentResponse{
		ID:              a.ID(),
		Name:            a.Name(),
		MimeType:        a.MimeType(),
		Size:            a.Size(),
		Bucket:          a.Bucket(),
		StorageKey:      a.StorageKey(),
		Status:          string(a.Status()),
		InvoiceID:       a.InvoiceID(),
		InventoryItemID: a.InventoryItemID(),
		ExpenseIDs:      a.ExpenseIDs(),
		CreatedAt:       a.CreatedAt().Format(time.RFC3339),
		UpdatedAt:       a.UpdatedAt().Format(time.RFC3339),
	}
}

func toAttachmentList(items []*entities.Attachment) []attachmentResponse {
	out := make([]attachmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toAttachmentResponse(a))
	}
	return out
}

// RequestUpload handles POST /api/v1/attachments.
func (h *AttachmentHandler) RequestUpload(w http.ResponseWriter, r *http.Request) {
	var req requestUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	attachment, dest, err := h.attachments.RequestUpload(r.Context(), req.Name, req.MimeType, req.Size)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusCreated, uploadDestinationResponse{
		Attachment: toAttachmentResponse(attachment),
		Bucket:     dest.Bucket,
		Key:        dest.Key,
	})
}

// ConfirmUpload handles POST /api/v1/attachments/{id}/confirm.
func (h *AttachmentHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req confirmUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	attachment, err := h.attachments.ConfirmUpload(r.Context(), id, req.Size)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, toAttachmentResponse(attachment))
}

// Get handles GET /api/v1/attachments/{id}.
func (h *AttachmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	attachment, err := h.attachments.Get(r.Context(), id)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, toAttachmentResponse(attachment))
}

// List handles GET /api/v1/attachments.
func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := ports.AttachmentFilter{
		Search:          r.URL.Query().Get("search"),
		InvoiceID:       r.URL.Query().Get("invoiceId"),
		InventoryItemID: r.URL.Query().Get("inventoryItemId"),
		ExpenseID:       r.URL.Query().Get("expenseId"),
		OrphanedOnly:    r.URL.Query().Get("orphaned") == "true",
		Status:          entities.AttachmentStatus(r.URL.Query().Get("status")),
		Skip:            queryInt(r, "skip"),
		Limit:           queryInt(r, "limit"),
	}

	items, err := h.attachments.List(r.Context(), filter)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"attachments": toAttachmentList(items),
		"count":       len(items),
	})
}

// Rename handles PUT /api/v1/attachments/{id}.
func (h *AttachmentHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req renameAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.attachments.Rename(r.Context(), id, req.Name); err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Attachment renamed"})
}

// LinkInvoice handles PUT /api/v1/attachments/{id}/invoice.
func (h *AttachmentHandler) LinkInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req linkInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.attachments.LinkToInvoice(r.Context(), id, req.InvoiceID); err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Attachment linked"})
}

// LinkInventoryItem handles PUT /api/v1/attachments/{id}/inventory-item.
func (h *AttachmentHandler) LinkInventoryItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req linkItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.attachments.LinkToInventoryItem(r.Context(), id, req.InventoryItemID); err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Attachment linked"})
}

// AssignExpenses handles PUT /api/v1/attachments/{id}/expenses.
func (h *AttachmentHandler) AssignExpenses(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req assignExpensesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.attachments.AssignExpenses(r.Context(), id, req.ExpenseIDs); err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Expenses assigned"})
}

// Unlink handles DELETE /api/v1/attachments/{id}/links.
func (h *AttachmentHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.attachments.Unlink(r.Context(), id); err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Attachment unlinked"})
}

// Delete handles DELETE /api/v1/attachments/{id}.
func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.attachments.Delete(r.Context(), id); err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusNoContent, nil)
}

// ListOrphaned handles GET /api/v1/attachments/orphaned.
func (h *AttachmentHandler) ListOrphaned(w http.ResponseWriter, r *http.Request) {
	items, err := h.attachments.ListOrphaned(r.Context())
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"attachments": toAttachmentList(items),
		"count":       len(items),
	})
}

// CleanupOrphans handles POST /api/v1/attachments/orphaned/cleanup.
func (h *AttachmentHandler) CleanupOrphans(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.attachments.CleanupOrphans(r.Context())
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, map[string]int{"deleted": deleted})
}

func queryInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
