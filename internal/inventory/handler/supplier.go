package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// SupplierHandler handles supplier endpoints
type SupplierHandler struct {
	supplierRepo *repository.SupplierRepository
	logger       *logger.Logger
}

// NewSupplierHandler creates a new supplier handler
func NewSupplierHandler(supplierRepo *repository.SupplierRepository, log *logger.Logger) *SupplierHandler {
	return &SupplierHandler{
		supplierRepo: supplierRepo,
		logger:       log,
	}
}

// SupplierInput is the payload for creating or updating a supplier.
type SupplierInput struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=500"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// List lists suppliers
func (h *SupplierHandler) List(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.supplierRepo.List(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, suppliers)
}

// Get gets a supplier by ID
func (h *SupplierHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s, err := h.supplierRepo.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, s)
}

// Create creates a supplier
func (h *SupplierHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input SupplierInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	s := &repository.Supplier{
		Name:     input.Name,
		Phone:    input.Phone,
		Address:  input.Address,
		IsActive: true,
	}
	if input.IsActive != nil {
		s.IsActive = *input.IsActive
	}

	if err := h.supplierRepo.Create(r.Context(), s); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, s)
}

// Update updates a supplier
func (h *SupplierHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input SupplierInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	s, err := h.supplierRepo.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	s.Name = input.Name
	s.Phone = input.Phone
	s.Address = input.Address
	if input.IsActive != nil {
		s.IsActive = *input.IsActive
	}

	if err := h.supplierRepo.Update(r.Context(), s); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, s)
}
