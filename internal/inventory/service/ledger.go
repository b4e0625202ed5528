package service

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/events"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/actor"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/tenant"
)

// LineInput is one movement line as submitted by a caller. Unit price, VAT
// and discount are recorded on the note line; only unit price feeds batch
// cost (first non-zero wins on the batch side).
type LineInput struct {
	ProductID  string          `json:"product_id" validate:"required,uuid"`
	LotCode    string          `json:"lot_code" validate:"required,max=100"`
	ExpiryDate time.Time       `json:"expiry_date" validate:"required"`
	Quantity   int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	VatPct     decimal.Decimal `json:"vat_pct"`
	Discount   decimal.Decimal `json:"discount"`
	Unit       *string         `json:"unit,omitempty" validate:"omitempty,max=50"`
}

// ImportInput describes a goods-receipt note.
type ImportInput struct {
	WarehouseID string      `json:"warehouse_id" validate:"required,uuid"`
	SupplierID  *string     `json:"supplier_id,omitempty" validate:"omitempty,uuid"`
	Code        string      `json:"code" validate:"required,max=50"`
	Description *string     `json:"description,omitempty" validate:"omitempty,max=500"`
	Lines       []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// ExportInput describes an issue note. A destination warehouse turns the
// export into a transfer; a request id links (and completes) the
// replenishment request being fulfilled.
type ExportInput struct {
	SourceWarehouseID      string      `json:"source_warehouse_id" validate:"required,uuid"`
	DestinationWarehouseID *string     `json:"destination_warehouse_id,omitempty" validate:"omitempty,uuid"`
	RequestID              *string     `json:"request_id,omitempty" validate:"omitempty,uuid"`
	ReceiverID             *string     `json:"receiver_id,omitempty" validate:"omitempty,uuid"`
	Code                   string      `json:"code" validate:"required,max=50"`
	Description            *string     `json:"description,omitempty" validate:"omitempty,max=500"`
	Lines                  []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// LedgerService is the transaction engine. Every entry point runs as one
// tenant-scoped database transaction: the note header, every batch
// adjustment, every note line and any linked request completion commit
// together or not at all.
type LedgerService struct {
	noteRepo    *repository.NoteRepository
	batchRepo   *repository.BatchRepository
	requestRepo *repository.RequestRepository
	db          *database.DB
	publisher   *events.StockEventPublisher
	logger      *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	noteRepo *repository.NoteRepository,
	batchRepo *repository.BatchRepository,
	requestRepo *repository.RequestRepository,
	db *database.DB,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *LedgerService {
	return &LedgerService{
		noteRepo:    noteRepo,
		batchRepo:   batchRepo,
		requestRepo: requestRepo,
		db:          db,
		publisher:   publisher,
		logger:      log,
	}
}

// ApplyImport commits a goods receipt: each line credits its batch key
// (creating the batch when the key is new) and is recorded on the note.
// Notes are created completed; there is no draft stage.
func (s *LedgerService) ApplyImport(ctx context.Context, input *ImportInput) (*repository.StockNote, error) {
	if err := validateLines(input.Lines); err != nil {
		return nil, err
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	note := &repository.StockNote{
		Code:              input.Code,
		Kind:              repository.NoteKindImport,
		SourceWarehouseID: input.WarehouseID,
		SupplierID:        input.SupplierID,
		Status:            repository.NoteStatusCompleted,
		Description:       input.Description,
		CreatedBy:         actorID(ctx),
	}

	err = database.WithRetry(ctx, database.DefaultRetryAttempts, func(ctx context.Context) error {
		note.Lines = nil
		return s.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
			if err := s.noteRepo.CreateHeader(ctx, note); err != nil {
				return err
			}

			for _, in := range input.Lines {
				if _, err := s.batchRepo.Adjust(ctx, repository.AdjustParams{
					BatchKey: repository.BatchKey{
						WarehouseID: input.WarehouseID,
						ProductID:   in.ProductID,
						LotCode:     in.LotCode,
						ExpiryDate:  in.ExpiryDate,
					},
					Delta:    in.Quantity,
					UnitCost: in.UnitPrice,
				}); err != nil {
					return err
				}

				line := newNoteLine(note.ID, in)
				if err := s.noteRepo.AppendLine(ctx, line); err != nil {
					return err
				}
				note.Lines = append(note.Lines, line)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mapLedgerErr(err)
	}

	s.logger.Info().
		Str("note_id", note.ID).
		Str("code", note.Code).
		Str("warehouse_id", input.WarehouseID).
		Int("lines", len(note.Lines)).
		Msg("import committed")

	s.publisher.PublishNoteCommitted(ctx, note)
	return note, nil
}

// ApplyExport commits an issue or transfer. Per line the exact batch key is
// debited; a shortage on any line aborts the whole note. The engine never
// splits a line across batches: callers pre-allocate with the planner and
// submit one line per batch. With a destination warehouse set the note
// becomes a transfer and each debit is mirrored by a credit to the same lot
// identity at the destination. With a request id set, the request is marked
// completed inside the same transaction.
func (s *LedgerService) ApplyExport(ctx context.Context, input *ExportInput) (*repository.StockNote, error) {
	if err := validateLines(input.Lines); err != nil {
		return nil, err
	}

	kind := repository.NoteKindExport
	if input.DestinationWarehouseID != nil {
		if *input.DestinationWarehouseID == input.SourceWarehouseID {
			return nil, errors.InvalidTransfer()
		}
		kind = repository.NoteKindTransfer
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var req *repository.ReplenishmentRequest
	if input.RequestID != nil {
		// Read outside the write transaction: existence check plus the data
		// the completion event needs. The authoritative status check is the
		// guarded update inside the transaction.
		req, err = s.requestRepo.GetByID(ctx, *input.RequestID)
		if err != nil {
			return nil, err
		}
	}

	note := &repository.StockNote{
		Code:                   input.Code,
		Kind:                   kind,
		SourceWarehouseID:      input.SourceWarehouseID,
		DestinationWarehouseID: input.DestinationWarehouseID,
		RequestID:              input.RequestID,
		ReceiverID:             input.ReceiverID,
		Status:                 repository.NoteStatusCompleted,
		Description:            input.Description,
		CreatedBy:              actorID(ctx),
	}

	err = database.WithRetry(ctx, database.DefaultRetryAttempts, func(ctx context.Context) error {
		note.Lines = nil
		return s.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
			if err := s.noteRepo.CreateHeader(ctx, note); err != nil {
				return err
			}

			for _, in := range input.Lines {
				debited, err := s.batchRepo.Adjust(ctx, repository.AdjustParams{
					BatchKey: repository.BatchKey{
						WarehouseID: input.SourceWarehouseID,
						ProductID:   in.ProductID,
						LotCode:     in.LotCode,
						ExpiryDate:  in.ExpiryDate,
					},
					Delta: -in.Quantity,
				})
				if err != nil {
					return err
				}

				if input.DestinationWarehouseID != nil {
					// The credit carries the line price, falling back to the
					// source batch cost so a transfer without prices still
					// lands with the cost the stock had.
					cost := in.UnitPrice
					if cost.IsZero() {
						cost = debited.UnitCost
					}
					if _, err := s.batchRepo.Adjust(ctx, repository.AdjustParams{
						BatchKey: repository.BatchKey{
							WarehouseID: *input.DestinationWarehouseID,
							ProductID:   in.ProductID,
							LotCode:     in.LotCode,
							ExpiryDate:  in.ExpiryDate,
						},
						Delta:    in.Quantity,
						UnitCost: cost,
					}); err != nil {
						return err
					}
				}

				line := newNoteLine(note.ID, in)
				if err := s.noteRepo.AppendLine(ctx, line); err != nil {
					return err
				}
				note.Lines = append(note.Lines, line)
			}

			if input.RequestID != nil {
				return s.requestRepo.MarkCompleted(ctx, *input.RequestID)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mapLedgerErr(err)
	}

	s.logger.Info().
		Str("note_id", note.ID).
		Str("code", note.Code).
		Str("kind", kind).
		Str("source_warehouse_id", input.SourceWarehouseID).
		Int("lines", len(note.Lines)).
		Msg("export committed")

	s.publisher.PublishNoteCommitted(ctx, note)
	if req != nil {
		s.publisher.PublishRequestCompleted(ctx, req, note.ID)
	}
	return note, nil
}

// GetNote returns a note with its lines.
func (s *LedgerService) GetNote(ctx context.Context, id string) (*repository.StockNote, error) {
	return s.noteRepo.GetByID(ctx, id)
}

// ListNotes lists notes with pagination and filters.
func (s *LedgerService) ListNotes(ctx context.Context, page, perPage int, filter repository.NoteFilter) ([]*repository.StockNote, int64, error) {
	return s.noteRepo.List(ctx, page, perPage, filter)
}

// validateLines re-checks line shapes at the engine boundary. Handlers
// already validate the payload; the engine still refuses malformed lines so
// no other caller can slip a zero quantity or negative price past it.
func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return errors.BadRequest("at least one line is required")
	}

	details := map[string]string{}
	for i, line := range lines {
		prefix := "lines[" + strconv.Itoa(i) + "]."
		if line.ProductID == "" {
			details[prefix+"product_id"] = "product_id is required"
		}
		if line.LotCode == "" {
			details[prefix+"lot_code"] = "lot_code is required"
		}
		if line.ExpiryDate.IsZero() {
			details[prefix+"expiry_date"] = "expiry_date is required"
		}
		if line.Quantity <= 0 {
			details[prefix+"quantity"] = "quantity must be positive"
		}
		if line.UnitPrice.IsNegative() {
			details[prefix+"unit_price"] = "unit_price must not be negative"
		}
		if line.VatPct.IsNegative() {
			details[prefix+"vat_pct"] = "vat_pct must not be negative"
		}
		if line.Discount.IsNegative() {
			details[prefix+"discount"] = "discount must not be negative"
		}
	}
	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

func newNoteLine(noteID string, in LineInput) *repository.StockNoteLine {
	return &repository.StockNoteLine{
		NoteID:     noteID,
		ProductID:  in.ProductID,
		LotCode:    in.LotCode,
		ExpiryDate: in.ExpiryDate,
		Quantity:   in.Quantity,
		UnitPrice:  in.UnitPrice,
		VatPct:     in.VatPct,
		Discount:   in.Discount,
		Unit:       in.Unit,
	}
}

// mapLedgerErr translates the storage layer's leftovers: a serialization
// failure that survived all retries becomes a concurrency conflict,
// everything already typed passes through.
func mapLedgerErr(err error) error {
	if database.IsSerializationFailure(err) {
		return errors.ConcurrencyConflict()
	}
	return err
}

func actorID(ctx context.Context) *string {
	a := actor.FromContext(ctx)
	if a == nil || a.ID == "" {
		return nil
	}
	id := a.ID
	return &id
}
