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

// WarehouseBatch represents one lot of one product sitting in one warehouse.
// The natural key is (warehouse_id, product_id, lot_code, expiry_date): the
// same lot code with a different expiry date is a different batch. Quantity
// never goes below zero (enforced by a CHECK constraint and the conditional
// decrement in Adjust); exhausted batches stay around at quantity 0.
type WarehouseBatch struct {
	ID          string          `db:"id" json:"id"`
	TenantID    string          `db:"tenant_id" json:"-"`
	WarehouseID string          `db:"warehouse_id" json:"warehouse_id"`
	ProductID   string          `db:"product_id" json:"product_id"`
	LotCode     string          `db:"lot_code" json:"lot_code"`
	ExpiryDate  time.Time       `db:"expiry_date" json:"expiry_date"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitCost    decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// BatchKey identifies a batch by its natural key within a tenant.
type BatchKey struct {
	WarehouseID string    `json:"warehouse_id"`
	ProductID   string    `json:"product_id"`
	LotCode     string    `json:"lot_code"`
	ExpiryDate  time.Time `json:"expiry_date"`
}

// AdjustParams describes a single stock movement against one batch key.
// Delta > 0 credits (creating the batch if the key is new), delta < 0 debits.
type AdjustParams struct {
	BatchKey
	Delta    int
	UnitCost decimal.Decimal
}

// BatchRepository handles warehouse batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Find gets the batch for an exact natural key.
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *BatchRepository) Find(ctx context.Context, key BatchKey) (*WarehouseBatch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batch WarehouseBatch
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, warehouse_id, product_id, lot_code, expiry_date,
			       quantity, unit_cost, created_at, updated_at
			FROM warehouse_batches
			WHERE warehouse_id = $1 AND product_id = $2 AND lot_code = $3 AND expiry_date = $4::date
		`
		return r.db.GetContext(ctx, &batch, query, key.WarehouseID, key.ProductID, key.LotCode, key.ExpiryDate)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("batch")
	}
	if err != nil {
		return nil, err
	}

	return &batch, nil
}

// ListAvailable lists batches of a product in a warehouse that still hold
// stock, in the order allocation consumes them: earliest expiry first, with
// created_at and id as tie-breakers so the order is deterministic.
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *BatchRepository) ListAvailable(ctx context.Context, warehouseID, productID string) ([]*WarehouseBatch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batches []*WarehouseBatch
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, warehouse_id, product_id, lot_code, expiry_date,
			       quantity, unit_cost, created_at, updated_at
			FROM warehouse_batches
			WHERE warehouse_id = $1 AND product_id = $2 AND quantity > 0
			ORDER BY expiry_date ASC, created_at ASC, id ASC
		`
		return r.db.SelectContext(ctx, &batches, query, warehouseID, productID)
	})
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// ListByWarehouse lists all batches in a warehouse, optionally filtered by product.
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *BatchRepository) ListByWarehouse(ctx context.Context, warehouseID, productID string) ([]*WarehouseBatch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batches []*WarehouseBatch
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, warehouse_id, product_id, lot_code, expiry_date,
			       quantity, unit_cost, created_at, updated_at
			FROM warehouse_batches
			WHERE warehouse_id = $1 AND ($2 = '' OR product_id::text = $2)
			ORDER BY product_id, expiry_date ASC, created_at ASC, id ASC
		`
		return r.db.SelectContext(ctx, &batches, query, warehouseID, productID)
	})
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// Adjust applies one signed stock movement to a batch key and returns the
// resulting batch row.
//
// Delta > 0 is a single upsert: a new key inserts a fresh batch, an existing
// key increments its quantity in place. The stored unit cost follows a
// first-non-zero-wins rule: it is only overwritten when the current cost is
// zero and the incoming one is not.
//
// Delta < 0 is a single conditional decrement guarded by quantity >= -delta,
// so two concurrent debits can never take the same units twice. Zero rows
// updated means the batch is missing or short; the current quantity (0 for a
// missing key) is read back to build the InsufficientStock error.
//
// Statements run on the transaction carried in ctx when one is present, so a
// multi-line ledger entry commits or rolls back as a whole.
func (r *BatchRepository) Adjust(ctx context.Context, p AdjustParams) (*WarehouseBatch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batch WarehouseBatch
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		if p.Delta >= 0 {
			query := `
				INSERT INTO warehouse_batches (
					id, tenant_id, warehouse_id, product_id, lot_code, expiry_date, quantity, unit_cost
				) VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8)
				ON CONFLICT (tenant_id, warehouse_id, product_id, lot_code, expiry_date)
				DO UPDATE SET
					quantity  = warehouse_batches.quantity + EXCLUDED.quantity,
					unit_cost = CASE
						WHEN warehouse_batches.unit_cost = 0 AND EXCLUDED.unit_cost <> 0
						THEN EXCLUDED.unit_cost
						ELSE warehouse_batches.unit_cost
					END,
					updated_at = NOW()
				RETURNING id, tenant_id, warehouse_id, product_id, lot_code, expiry_date,
				          quantity, unit_cost, created_at, updated_at
			`
			return r.db.GetContext(ctx, &batch, query,
				uuid.New().String(), tenantID, p.WarehouseID, p.ProductID,
				p.LotCode, p.ExpiryDate, p.Delta, p.UnitCost,
			)
		}

		needed := -p.Delta
		query := `
			UPDATE warehouse_batches
			SET quantity = quantity + $5, updated_at = NOW()
			WHERE warehouse_id = $1 AND product_id = $2 AND lot_code = $3
			  AND expiry_date = $4::date AND quantity >= $6
			RETURNING id, tenant_id, warehouse_id, product_id, lot_code, expiry_date,
			          quantity, unit_cost, created_at, updated_at
		`
		err := r.db.GetContext(ctx, &batch, query,
			p.WarehouseID, p.ProductID, p.LotCode, p.ExpiryDate, p.Delta, needed,
		)
		if err != sql.ErrNoRows {
			return err
		}

		// The guarded update matched nothing: either the key does not exist
		// or the batch is short. Read the current quantity (a missing row
		// counts as zero) so the error tells the caller what was available.
		var available int
		availQuery := `
			SELECT COALESCE(SUM(quantity), 0)
			FROM warehouse_batches
			WHERE warehouse_id = $1 AND product_id = $2 AND lot_code = $3 AND expiry_date = $4::date
		`
		if err := r.db.GetContext(ctx, &available, availQuery,
			p.WarehouseID, p.ProductID, p.LotCode, p.ExpiryDate); err != nil {
			return err
		}
		return errors.InsufficientStock(p.ProductID, p.LotCode, needed, available)
	})
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// TotalStock sums the on-hand quantity of a product across all warehouses.
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *BatchRepository) TotalStock(ctx context.Context, productID string) (int, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	var total int
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT COALESCE(SUM(quantity), 0) FROM warehouse_batches WHERE product_id = $1`
		return r.db.GetContext(ctx, &total, query, productID)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ExpiringBatch is a batch joined with its product for status reports.
type ExpiringBatch struct {
	WarehouseBatch
	ProductCode string `db:"product_code" json:"product_code"`
	ProductName string `db:"product_name" json:"product_name"`
}

// ListExpiring lists batches still holding stock whose expiry date falls
// within the next withinDays days (exclusive of already expired batches).
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *BatchRepository) ListExpiring(ctx context.Context, withinDays int) ([]*ExpiringBatch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batches []*ExpiringBatch
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT b.id, b.tenant_id, b.warehouse_id, b.product_id, b.lot_code, b.expiry_date,
			       b.quantity, b.unit_cost, b.created_at, b.updated_at,
			       p.code AS product_code, p.name AS product_name
			FROM warehouse_batches b
			JOIN products p ON p.id = b.product_id
			WHERE b.quantity > 0
			  AND b.expiry_date > CURRENT_DATE
			  AND b.expiry_date <= CURRENT_DATE + $1::int
			ORDER BY b.expiry_date ASC, b.created_at ASC, b.id ASC
		`
		return r.db.SelectContext(ctx, &batches, query, withinDays)
	})
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// ListExpired lists batches that are past their expiry date but still hold stock.
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *BatchRepository) ListExpired(ctx context.Context) ([]*ExpiringBatch, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var batches []*ExpiringBatch
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT b.id, b.tenant_id, b.warehouse_id, b.product_id, b.lot_code, b.expiry_date,
			       b.quantity, b.unit_cost, b.created_at, b.updated_at,
			       p.code AS product_code, p.name AS product_name
			FROM warehouse_batches b
			JOIN products p ON p.id = b.product_id
			WHERE b.quantity > 0 AND b.expiry_date <= CURRENT_DATE
			ORDER BY b.expiry_date ASC, b.created_at ASC, b.id ASC
		`
		return r.db.SelectContext(ctx, &batches, query)
	})
	if err != nil {
		return nil, err
	}
	return batches, nil
}
