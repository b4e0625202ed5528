package handler

import (
	"net/http"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// StatusHandler handles the stock status report endpoint
type StatusHandler struct {
	status *service.StatusService
	logger *logger.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(status *service.StatusService, log *logger.Logger) *StatusHandler {
	return &StatusHandler{
		status: status,
		logger: log,
	}
}

// Get returns expiring, expired and low-stock summaries for the tenant
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	status, err := h.status.Status(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, status)
}
