package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/tenant"
)

// Replenishment request statuses
const (
	RequestStatusPending   = "pending"
	RequestStatusApproved  = "approved"
	RequestStatusRejected  = "rejected"
	RequestStatusCompleted = "completed"
)

// ReplenishmentRequest asks a supplying warehouse to transfer stock to a
// requesting warehouse. Completion happens only inside the transfer that
// fulfils it; approve/reject are ordinary status moves from pending.
type ReplenishmentRequest struct {
	ID                    string    `db:"id" json:"id"`
	TenantID              string    `db:"tenant_id" json:"-"`
	Code                  string    `db:"code" json:"code"`
	RequestingWarehouseID string    `db:"requesting_warehouse_id" json:"requesting_warehouse_id"`
	SupplyingWarehouseID  string    `db:"supplying_warehouse_id" json:"supplying_warehouse_id"`
	Status                string    `db:"status" json:"status"`
	Description           *string   `db:"description" json:"description,omitempty"`
	CreatedBy             *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`

	Lines []*RequestLine `db:"-" json:"lines,omitempty"`
}

// RequestLine is one requested product and quantity.
type RequestLine struct {
	ID        string  `db:"id" json:"id"`
	RequestID string  `db:"request_id" json:"request_id"`
	ProductID string  `db:"product_id" json:"product_id"`
	Quantity  int     `db:"quantity" json:"quantity"`
	Unit      *string `db:"unit" json:"unit,omitempty"`
}

// RequestRepository handles replenishment request persistence
type RequestRepository struct {
	db *database.DB
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *database.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts the request header and its lines in one transaction.
// TENANT-ISOLATED: Inserts into the tenant's schema
func (r *RequestRepository) Create(ctx context.Context, req *ReplenishmentRequest) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Status == "" {
		req.Status = RequestStatusPending
	}

	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO replenishment_requests (
				id, tenant_id, code, requesting_warehouse_id, supplying_warehouse_id,
				status, description, created_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at
		`
		if err := r.db.QueryRowxContext(ctx, query,
			req.ID, tenantID, req.Code, req.RequestingWarehouseID,
			req.SupplyingWarehouseID, req.Status, req.Description, req.CreatedBy,
		).Scan(&req.CreatedAt, &req.UpdatedAt); err != nil {
			return err
		}

		for _, line := range req.Lines {
			if line.ID == "" {
				line.ID = uuid.New().String()
			}
			line.RequestID = req.ID
			lineQuery := `
				INSERT INTO replenishment_request_lines (id, request_id, product_id, quantity, unit)
				VALUES ($1, $2, $3, $4, $5)
			`
			if _, err := r.db.ExecContext(ctx, lineQuery,
				line.ID, line.RequestID, line.ProductID, line.Quantity, line.Unit); err != nil {
				return err
			}
		}
		return nil
	})
	if database.IsUniqueViolation(err, "replenishment_requests_tenant_id_code_key") {
		return errors.DuplicateCode(req.Code)
	}
	return err
}

// GetByID gets a request with its lines
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*ReplenishmentRequest, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var req ReplenishmentRequest
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, code, requesting_warehouse_id, supplying_warehouse_id,
			       status, description, created_by, created_at, updated_at
			FROM replenishment_requests WHERE id = $1
		`
		if err := r.db.GetContext(ctx, &req, query, id); err != nil {
			return err
		}

		linesQuery := `
			SELECT id, request_id, product_id, quantity, unit
			FROM replenishment_request_lines
			WHERE request_id = $1
			ORDER BY id
		`
		return r.db.SelectContext(ctx, &req.Lines, linesQuery, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("request")
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// List lists requests, newest first, optionally filtered by status.
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *RequestRepository) List(ctx context.Context, page, perPage int, status string) ([]*ReplenishmentRequest, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var requests []*ReplenishmentRequest
	var total int64

	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		countQuery := `SELECT COUNT(*) FROM replenishment_requests WHERE ($1 = '' OR status = $1)`
		if err := r.db.GetContext(ctx, &total, countQuery, status); err != nil {
			return err
		}

		query := `
			SELECT id, tenant_id, code, requesting_warehouse_id, supplying_warehouse_id,
			       status, description, created_by, created_at, updated_at
			FROM replenishment_requests
			WHERE ($1 = '' OR status = $1)
			ORDER BY created_at DESC, id DESC
			LIMIT $2 OFFSET $3
		`
		return r.db.SelectContext(ctx, &requests, query, status, perPage, (page-1)*perPage)
	})
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// UpdateStatus moves a pending request to approved or rejected. The guarded
// WHERE makes an illegal move (wrong current status, unknown id) a no-op
// reported as a conflict or not-found.
// TENANT-ISOLATED: Updates only rows in the tenant's schema
func (r *RequestRepository) UpdateStatus(ctx context.Context, id, status string) error {
	if status != RequestStatusApproved && status != RequestStatusRejected {
		return errors.BadRequest("status must be approved or rejected")
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE replenishment_requests
			SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = $3
		`
		result, err := r.db.ExecContext(ctx, query, id, status, RequestStatusPending)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			var current string
			check := `SELECT status FROM replenishment_requests WHERE id = $1`
			if err := r.db.GetContext(ctx, &current, check, id); err == sql.ErrNoRows {
				return errors.NotFound("request")
			} else if err != nil {
				return err
			}
			return errors.Conflict("request is " + current + ", only pending requests can be " + status)
		}
		return nil
	})
}

// MarkCompleted flips a request to completed. It is called only by the
// transaction engine, inside the same transaction that applies the transfer,
// so the request closes exactly when the stock moves. The status guard makes
// a second completion attempt fail instead of silently succeeding.
// TENANT-ISOLATED: Updates only rows in the tenant's schema
func (r *RequestRepository) MarkCompleted(ctx context.Context, id string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE replenishment_requests
			SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status IN ($3, $4)
		`
		result, err := r.db.ExecContext(ctx, query, id,
			RequestStatusCompleted, RequestStatusPending, RequestStatusApproved)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			var current string
			check := `SELECT status FROM replenishment_requests WHERE id = $1`
			if err := r.db.GetContext(ctx, &current, check, id); err == sql.ErrNoRows {
				return errors.NotFound("request")
			} else if err != nil {
				return err
			}
			return errors.Conflict("request is already " + current)
		}
		return nil
	})
}
