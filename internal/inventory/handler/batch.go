package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// BatchHandler exposes read-only batch views and the allocation preview.
// Batches are never created or adjusted directly over HTTP; all mutation
// goes through the ledger.
type BatchHandler struct {
	batchRepo *repository.BatchRepository
	planner   *service.Planner
	logger    *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(batchRepo *repository.BatchRepository, planner *service.Planner, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		batchRepo: batchRepo,
		planner:   planner,
		logger:    log,
	}
}

// ListByWarehouse lists batches in a warehouse, optionally one product's
func (h *BatchHandler) ListByWarehouse(w http.ResponseWriter, r *http.Request) {
	warehouseID := chi.URLParam(r, "id")
	productID := r.URL.Query().Get("product_id")

	batches, err := h.batchRepo.ListByWarehouse(r.Context(), warehouseID, productID)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// ListAvailable lists in-stock batches of one product in FEFO order
func (h *BatchHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	warehouseID := chi.URLParam(r, "id")
	productID := chi.URLParam(r, "productID")

	batches, err := h.batchRepo.ListAvailable(r.Context(), warehouseID, productID)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Preview plans a FEFO allocation for one product without reserving stock
func (h *BatchHandler) Preview(w http.ResponseWriter, r *http.Request) {
	warehouseID := r.URL.Query().Get("warehouse_id")
	productID := r.URL.Query().Get("product_id")
	if warehouseID == "" || productID == "" {
		httputil.ErrorLocalized(w, r, errors.BadRequest("warehouse_id and product_id are required"))
		return
	}

	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || quantity <= 0 {
		httputil.ErrorLocalized(w, r, errors.BadRequest("quantity must be a positive integer"))
		return
	}

	plan, err := h.planner.PlanProduct(r.Context(), warehouseID, productID, quantity)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, plan)
}
