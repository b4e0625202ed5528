package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// NoteHandler exposes the transaction engine over HTTP: committing imports,
// exports and transfers, and reading back committed notes.
type NoteHandler struct {
	ledger *service.LedgerService
	logger *logger.Logger
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(ledger *service.LedgerService, log *logger.Logger) *NoteHandler {
	return &NoteHandler{
		ledger: ledger,
		logger: log,
	}
}

// Import commits an import note
func (h *NoteHandler) Import(w http.ResponseWriter, r *http.Request) {
	var input service.ImportInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	note, err := h.ledger.ApplyImport(r.Context(), &input)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, note)
}

// Export commits an export or transfer note
func (h *NoteHandler) Export(w http.ResponseWriter, r *http.Request) {
	var input service.ExportInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	note, err := h.ledger.ApplyExport(r.Context(), &input)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, note)
}

// List lists notes
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	filter := repository.NoteFilter{
		Kind:        r.URL.Query().Get("kind"),
		WarehouseID: r.URL.Query().Get("warehouse_id"),
	}

	notes, total, err := h.ledger.ListNotes(r.Context(), page, perPage, filter)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, notes, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get gets a note with its lines
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	note, err := h.ledger.GetNote(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, note)
}
