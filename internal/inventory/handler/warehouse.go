package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// WarehouseHandler handles warehouse endpoints
type WarehouseHandler struct {
	warehouseRepo *repository.WarehouseRepository
	logger        *logger.Logger
}

// NewWarehouseHandler creates a new warehouse handler
func NewWarehouseHandler(warehouseRepo *repository.WarehouseRepository, log *logger.Logger) *WarehouseHandler {
	return &WarehouseHandler{
		warehouseRepo: warehouseRepo,
		logger:        log,
	}
}

// WarehouseInput is the payload for creating or updating a warehouse.
type WarehouseInput struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=500"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// List lists warehouses
func (h *WarehouseHandler) List(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.warehouseRepo.List(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, warehouses)
}

// Get gets a warehouse by ID
func (h *WarehouseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	wh, err := h.warehouseRepo.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, wh)
}

// Create creates a warehouse
func (h *WarehouseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input WarehouseInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	wh := &repository.Warehouse{
		Name:     input.Name,
		Address:  input.Address,
		IsActive: true,
	}
	if input.IsActive != nil {
		wh.IsActive = *input.IsActive
	}

	if err := h.warehouseRepo.Create(r.Context(), wh); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, wh)
}

// Update updates a warehouse
func (h *WarehouseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input WarehouseInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	wh, err := h.warehouseRepo.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	wh.Name = input.Name
	wh.Address = input.Address
	if input.IsActive != nil {
		wh.IsActive = *input.IsActive
	}

	if err := h.warehouseRepo.Update(r.Context(), wh); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, wh)
}
