package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/actor"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// RequestHandler exposes replenishment requests: creation, status moves and
// the allocation preview against the supplying warehouse.
type RequestHandler struct {
	requestRepo *repository.RequestRepository
	planner     *service.Planner
	logger      *logger.Logger
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(requestRepo *repository.RequestRepository, planner *service.Planner, log *logger.Logger) *RequestHandler {
	return &RequestHandler{
		requestRepo: requestRepo,
		planner:     planner,
		logger:      log,
	}
}

// CreateRequestInput is the payload for creating a replenishment request.
type CreateRequestInput struct {
	Code                  string  `json:"code" validate:"required,max=50"`
	RequestingWarehouseID string  `json:"requesting_warehouse_id" validate:"required,uuid"`
	SupplyingWarehouseID  string  `json:"supplying_warehouse_id" validate:"required,uuid"`
	Description           *string `json:"description,omitempty" validate:"omitempty,max=500"`
	Lines                 []struct {
		ProductID string  `json:"product_id" validate:"required,uuid"`
		Quantity  int     `json:"quantity" validate:"required,gt=0"`
		Unit      *string `json:"unit,omitempty" validate:"omitempty,max=50"`
	} `json:"lines" validate:"required,min=1,dive"`
}

// Create creates a replenishment request
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input CreateRequestInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	req := &repository.ReplenishmentRequest{
		Code:                  input.Code,
		RequestingWarehouseID: input.RequestingWarehouseID,
		SupplyingWarehouseID:  input.SupplyingWarehouseID,
		Status:                repository.RequestStatusPending,
		Description:           input.Description,
	}
	if a := actor.FromContext(r.Context()); a != nil && a.ID != "" {
		id := a.ID
		req.CreatedBy = &id
	}
	for _, line := range input.Lines {
		req.Lines = append(req.Lines, &repository.RequestLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Unit:      line.Unit,
		})
	}

	if err := h.requestRepo.Create(r.Context(), req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, req)
}

// List lists requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	status := r.URL.Query().Get("status")

	requests, total, err := h.requestRepo.List(r.Context(), page, perPage, status)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, requests, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get gets a request with its lines
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := h.requestRepo.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// Approve moves a pending request to approved
func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, repository.RequestStatusApproved)
}

// Reject moves a pending request to rejected
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, repository.RequestStatusRejected)
}

func (h *RequestHandler) updateStatus(w http.ResponseWriter, r *http.Request, status string) {
	id := chi.URLParam(r, "id")

	if err := h.requestRepo.UpdateStatus(r.Context(), id, status); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	req, err := h.requestRepo.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// Preview returns the allocation plan for every request line against the
// supplying warehouse. The preview reserves nothing; the export that fulfils
// the request re-checks sufficiency when it commits.
func (h *RequestHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	plan, err := h.planner.PlanRequest(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, plan)
}
