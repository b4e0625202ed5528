package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// ProductHandler handles product catalog endpoints
type ProductHandler struct {
	productRepo *repository.ProductRepository
	batchRepo   *repository.BatchRepository
	logger      *logger.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(productRepo *repository.ProductRepository, batchRepo *repository.BatchRepository, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		productRepo: productRepo,
		batchRepo:   batchRepo,
		logger:      log,
	}
}

// ProductInput is the payload for creating or updating a product.
type ProductInput struct {
	Code     string  `json:"code" validate:"required,max=50"`
	Name     string  `json:"name" validate:"required,max=255"`
	Unit     *string `json:"unit,omitempty" validate:"omitempty,max=50"`
	MinStock int     `json:"min_stock" validate:"gte=0"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// List lists products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	search := r.URL.Query().Get("search")

	products, total, err := h.productRepo.List(r.Context(), page, perPage, search)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, products, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get gets a product with its total stock
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.productRepo.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	total, err := h.batchRepo.TotalStock(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"product":     product,
		"total_stock": total,
	})
}

// Create creates a product
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	product := &repository.Product{
		Code:     input.Code,
		Name:     input.Name,
		Unit:     input.Unit,
		MinStock: input.MinStock,
		IsActive: true,
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if err := h.productRepo.Create(r.Context(), product); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, product)
}

// Update updates a product
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input ProductInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	product, err := h.productRepo.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	product.Code = input.Code
	product.Name = input.Name
	product.Unit = input.Unit
	product.MinStock = input.MinStock
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if err := h.productRepo.Update(r.Context(), product); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, product)
}

// Delete deactivates a product
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.productRepo.Deactivate(r.Context(), id); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}
