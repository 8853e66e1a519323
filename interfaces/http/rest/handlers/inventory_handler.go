package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/application/services"
	"bookkeeper-backend/domain/core/entities"
	"bookkeeper-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// InventoryHandler exposes the inventory catalog (locations, types) and
// the items stored under it.
type InventoryHandler struct {
	inventory *services.InventoryService
	logger    *zap.Logger
}

func NewInventoryHandler(inventory *services.InventoryService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventory: inventory,
		logger:    logger,
	}
}

type createCatalogNodeRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=2000"`
	ParentID    string `json:"parentId" validate:"omitempty,uuid"`
}

type updateCatalogNodeRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	ParentID    *string `json:"parentId" validate:"omitempty"`
}

type createItemRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=255"`
	Quantity   int64  `json:"quantity" validate:"min=0"`
	TypeID     string `json:"typeId" validate:"omitempty,uuid"`
	LocationID string `json:"locationId" validate:"omitempty,uuid"`
}

type updateItemRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=255"`
	TypeID     *string `json:"typeId"`
	LocationID *string `json:"locationId"`
}

type adjustQuantityRequest struct {
	Delta int64 `json:"delta" validate:"required"`
}

type catalogNodeResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parentId,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type inventoryItemResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
	TypeID     string `json:"typeId,omitempty"`
	LocationID string `json:"locationId,omitempty"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

func toLocationResponse(l *entities.InventoryLocation) catalogNodeResponse {
	return catalogNodeResponse{
		ID:          l.ID(),
		Name:        l.Name(),
		Description: l.Description(),
		ParentID:    l.ParentID(),
		CreatedAt:   l.CreatedAt().Format(time.RFC3339),
		UpdatedAt:   l.UpdatedAt().Format(time.RFC3339),
	}
}

func toTypeResponse(t *entities.InventoryType) catalogNodeResponse {
	return catalogNodeResponse{
		ID:          t.ID(),
		Name:        t.Name(),
		Description: t.Description(),
		ParentID:    t.ParentID(),
		CreatedAt:   t.CreatedAt().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt().Format(time.RFC3339),
	}
}

func toItemResponse(i *entities.InventoryItem) inventoryItemResponse {
	return inventoryItemResponse{
		ID:         i.ID(),
		Name:       i.Name(),
		Quantity:   i.Quantity(),
		TypeID:     i.TypeID(),
		LocationID: i.LocationID(),
		CreatedAt:  i.CreatedAt().Format(time.RFC3339),
		UpdatedAt:  i.UpdatedAt().Format(time.RFC3339),
	}
}

func catalogFilterFromQuery(r *http.Request) ports.CatalogFilter {
	return ports.CatalogFilter{
		Search:   r.URL.Query().Get("search"),
		ParentID: r.URL.Query().Get("parentId"),
		RootOnly: r.URL.Query().Get("rootOnly") == "true",
		Skip:     queryInt(r, "skip"),
		Limit:    queryInt(r, "limit"),
	}
}

func (h *InventoryHandler) decodeCatalogCreate(w http.ResponseWriter, r *http.Request) (ports.CatalogArgs, bool) {
	var req createCatalogNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return ports.CatalogArgs{}, false
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, err.Error())
		return ports.CatalogArgs{}, false
	}
	return ports.CatalogArgs{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	}, true
}

func (h *InventoryHandler) decodeCatalogUpdate(w http.ResponseWriter, r *http.Request) (*updateCatalogNodeRequest, bool) {
	var req updateCatalogNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}

// CreateLocation handles POST /api/v1/inventory/locations.
func (h *InventoryHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	args, ok := h.decodeCatalogCreate(w, r)
	if !ok {
		return
	}

	location, err := h.inventory.CreateLocation(r.Context(), args)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusCreated, toLocationResponse(location))
}

// GetLocation handles GET /api/v1/inventory/locations/{id}.
func (h *InventoryHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	location, err := h.inventory.GetLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, toLocationResponse(location))
}

// UpdateLocation handles PUT /api/v1/inventory/locations/{id}.
func (h *InventoryHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCatalogUpdate(w, r)
	if !ok {
		return
	}

	location, err := h.inventory.UpdateLocation(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description, req.ParentID)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, toLocationResponse(location))
}

// DeleteLocation handles DELETE /api/v1/inventory/locations/{id}.
func (h *InventoryHandler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := h.inventory.DeleteLocation(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusNoContent, nil)
}

// ListLocations handles GET /api/v1/inventory/locations.
func (h *InventoryHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.inventory.ListLocations(r.Context(), catalogFilterFromQuery(r))
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	out := make([]catalogNodeResponse, 0, len(locations))
	for _, l := range locations {
		out = append(out, toLocationResponse(l))
	}

	respondJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"locations": out,
		"count":     len(out),
	})
}

// CreateType handles POST /api/v1/inventory/types.
func (h *InventoryHandler) CreateType(w http.ResponseWriter, r *http.Request) {
	args, ok := h.decodeCatalogCreate(w, r)
	if !ok {
		return
	}

	invType, err := h.inventory.CreateType(r.Context(), args)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusCreated, toTypeResponse(invType))
}

// GetType handles GET /api/v1/inventory/types/{id}.
func (h *InventoryHandler) GetType(w http.ResponseWriter, r *http.Request) {
	invType, err := h.inventory.GetType(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, toTypeResponse(invType))
}

// UpdateType handles PUT /api/v1/inventory/types/{id}.
func (h *InventoryHandler) UpdateType(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCatalogUpdate(w, r)
	if !ok {
		return
	}

	invType, err := h.inventory.UpdateType(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description, req.ParentID)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, toTypeResponse(invType))
}

// DeleteType handles DELETE /api/v1/inventory/types/{id}.
func (h *InventoryHandler) DeleteType(w http.ResponseWriter, r *http.Request) {
	if err := h.inventory.DeleteType(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusNoContent, nil)
}

// ListTypes handles GET /api/v1/inventory/types.
func (h *InventoryHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.inventory.ListTypes(r.Context(), catalogFilterFromQuery(r))
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	out := make([]catalogNodeResponse, 0, len(types))
	for _, t := range types {
		out = append(out, toTypeResponse(t))
	}

	respondJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"types": out,
		"count": len(out),
	})
}

// CreateItem handles POST /api/v1/inventory/items.
func (h *InventoryHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.inventory.CreateItem(r.Context(), ports.InventoryItemArgs{
		Name:       req.Name,
		Quantity:   req.Quantity,
		TypeID:     req.TypeID,
		LocationID: req.LocationID,
	})
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusCreated, toItemResponse(item))
}

// GetItem handles GET /api/v1/inventory/items/{id}.
func (h *InventoryHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.inventory.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, toItemResponse(item))
}

// UpdateItem handles PUT /api/v1/inventory/items/{id}. Omitted fields keep
// their current value; an empty typeId or locationId clears the reference.
func (h *InventoryHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.inventory.UpdateItem(r.Context(), chi.URLParam(r, "id"), req.Name, req.TypeID, req.LocationID)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, toItemResponse(item))
}

// AdjustItemQuantity handles POST /api/v1/inventory/items/{id}/adjust.
func (h *InventoryHandler) AdjustItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req adjustQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.inventory.AdjustItemQuantity(r.Context(), chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, toItemResponse(item))
}

// DeleteItem handles DELETE /api/v1/inventory/items/{id}.
func (h *InventoryHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.inventory.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	respondJSON(h.logger, w, http.StatusNoContent, nil)
}

// ListItems handles GET /api/v1/inventory/items.
func (h *InventoryHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.ListItems(r.Context(), ports.InventoryItemFilter{
		Search:     r.URL.Query().Get("search"),
		TypeID:     r.URL.Query().Get("typeId"),
		LocationID: r.URL.Query().Get("locationId"),
		Skip:       queryInt(r, "skip"),
		Limit:      queryInt(r, "limit"),
	})
	if err != nil {
		respondDomainError(h.logger, w, err)
		return
	}

	out := make([]inventoryItemResponse, 0, len(items))
	for _, i := range items {
		out = append(out, toItemResponse(i))
	}

	respondJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"items": out,
		"count": len(out),
	})
}
