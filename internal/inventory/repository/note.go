package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/tenant"
)

// Stock note kinds
const (
	NoteKindImport   = "import"
	NoteKindExport   = "export"
	NoteKindTransfer = "transfer"
)

// Stock note statuses
const (
	NoteStatusDraft     = "draft"
	NoteStatusCompleted = "completed"
)

// StockNote is the immutable header of one ledger entry. A committed note is
// the audit record of an import, export or transfer; it is never edited or
// deleted afterwards. Code is unique per tenant.
type StockNote struct {
	ID                     string     `db:"id" json:"id"`
	TenantID               string     `db:"tenant_id" json:"-"`
	Code                   string     `db:"code" json:"code"`
	Kind                   string     `db:"kind" json:"kind"`
	SourceWarehouseID      string     `db:"source_warehouse_id" json:"source_warehouse_id"`
	DestinationWarehouseID *string    `db:"destination_warehouse_id" json:"destination_warehouse_id,omitempty"`
	SupplierID             *string    `db:"supplier_id" json:"supplier_id,omitempty"`
	RequestID              *string    `db:"request_id" json:"request_id,omitempty"`
	ReceiverID             *string    `db:"receiver_id" json:"receiver_id,omitempty"`
	Status                 string     `db:"status" json:"status"`
	Description            *string    `db:"description" json:"description,omitempty"`
	CreatedBy              *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`

	Lines []*StockNoteLine `db:"-" json:"lines,omitempty"`
}

// StockNoteLine is one movement line of a note. Lines are append-only and
// never merged, even when two lines hit the same batch key.
type StockNoteLine struct {
	ID         string          `db:"id" json:"id"`
	NoteID     string          `db:"note_id" json:"note_id"`
	ProductID  string          `db:"product_id" json:"product_id"`
	LotCode    string          `db:"lot_code" json:"lot_code"`
	ExpiryDate time.Time       `db:"expiry_date" json:"expiry_date"`
	Quantity   int             `db:"quantity" json:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unit_price"`
	VatPct     decimal.Decimal `db:"vat_pct" json:"vat_pct"`
	Discount   decimal.Decimal `db:"discount" json:"discount"`
	Unit       *string         `db:"unit" json:"unit,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// NoteFilter narrows note listings.
type NoteFilter struct {
	Kind        string
	WarehouseID string
}

// NoteRepository handles stock note persistence
type NoteRepository struct {
	db *database.DB
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db *database.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// CreateHeader inserts the note header. A duplicate code within the tenant
// maps to a DuplicateCode conflict.
// TENANT-ISOLATED: Inserts into the tenant's schema
func (r *NoteRepository) CreateHeader(ctx context.Context, note *StockNote) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if note.ID == "" {
		note.ID = uuid.New().String()
	}

	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO stock_notes (
				id, tenant_id, code, kind, source_warehouse_id, destination_warehouse_id,
				supplier_id, request_id, receiver_id, status, description, created_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING created_at, updated_at
		`
		return r.db.QueryRowxContext(ctx, query,
			note.ID, tenantID, note.Code, note.Kind, note.SourceWarehouseID,
			note.DestinationWarehouseID, note.SupplierID, note.RequestID,
			note.ReceiverID, note.Status, note.Description, note.CreatedBy,
		).Scan(&note.CreatedAt, &note.UpdatedAt)
	})
	if database.IsUniqueViolation(err, "stock_notes_tenant_id_code_key") {
		return errors.DuplicateCode(note.Code)
	}
	return err
}

// AppendLine appends one line to a note. Lines are never updated in place.
// TENANT-ISOLATED: Inserts into the tenant's schema
func (r *NoteRepository) AppendLine(ctx context.Context, line *StockNoteLine) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if line.ID == "" {
		line.ID = uuid.New().String()
	}

	return r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO stock_note_lines (
				id, note_id, product_id, lot_code, expiry_date, quantity,
				unit_price, vat_pct, discount, unit
			) VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10)
			RETURNING created_at
		`
		return r.db.QueryRowxContext(ctx, query,
			line.ID, line.NoteID, line.ProductID, line.LotCode, line.ExpiryDate,
			line.Quantity, line.UnitPrice, line.VatPct, line.Discount, line.Unit,
		).Scan(&line.CreatedAt)
	})
}

// GetByID gets a note with its lines
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *NoteRepository) GetByID(ctx context.Context, id string) (*StockNote, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByCode gets a note by its tenant-unique code
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *NoteRepository) GetByCode(ctx context.Context, code string) (*StockNote, error) {
	return r.get(ctx, `WHERE code = $1`, code)
}

func (r *NoteRepository) get(ctx context.Context, where string, arg interface{}) (*StockNote, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var note StockNote
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, code, kind, source_warehouse_id, destination_warehouse_id,
			       supplier_id, request_id, receiver_id, status, description, created_by,
			       created_at, updated_at
			FROM stock_notes ` + where
		if err := r.db.GetContext(ctx, &note, query, arg); err != nil {
			return err
		}

		linesQuery := `
			SELECT id, note_id, product_id, lot_code, expiry_date, quantity,
			       unit_price, vat_pct, discount, unit, created_at
			FROM stock_note_lines
			WHERE note_id = $1
			ORDER BY created_at ASC, id ASC
		`
		return r.db.SelectContext(ctx, &note.Lines, linesQuery, note.ID)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("stock_note")
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// List lists notes, newest first, filtered by kind and/or warehouse. The
// warehouse filter matches either side of a transfer.
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *NoteRepository) List(ctx context.Context, page, perPage int, filter NoteFilter) ([]*StockNote, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var notes []*StockNote
	var total int64

	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		countQuery := `
			SELECT COUNT(*) FROM stock_notes
			WHERE ($1 = '' OR kind = $1)
			  AND ($2 = '' OR source_warehouse_id::text = $2 OR destination_warehouse_id::text = $2)
		`
		if err := r.db.GetContext(ctx, &total, countQuery, filter.Kind, filter.WarehouseID); err != nil {
			return err
		}

		query := `
			SELECT id, tenant_id, code, kind, source_warehouse_id, destination_warehouse_id,
			       supplier_id, request_id, receiver_id, status, description, created_by,
			       created_at, updated_at
			FROM stock_notes
			WHERE ($1 = '' OR kind = $1)
			  AND ($2 = '' OR source_warehouse_id::text = $2 OR destination_warehouse_id::text = $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3 OFFSET $4
		`
		return r.db.SelectContext(ctx, &notes, query, filter.Kind, filter.WarehouseID, perPage, (page-1)*perPage)
	})
	if err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}
