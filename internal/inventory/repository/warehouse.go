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

// Warehouse represents a physical storage location. The ledger only ever
// references warehouses; it never mutates them.
type Warehouse struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"-"`
	Name      string    `db:"name" json:"name"`
	Address   *string   `db:"address" json:"address,omitempty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// WarehouseRepository handles warehouse persistence
type WarehouseRepository struct {
	db *database.DB
}

// NewWarehouseRepository creates a new warehouse repository
func NewWarehouseRepository(db *database.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

// Create creates a new warehouse
// TENANT-ISOLATED: Inserts into the tenant's schema
func (r *WarehouseRepository) Create(ctx context.Context, wh *Warehouse) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if wh.ID == "" {
		wh.ID = uuid.New().String()
	}

	return r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO warehouses (id, tenant_id, name, address, is_active)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, updated_at
		`
		return r.db.QueryRowxContext(ctx, query,
			wh.ID, tenantID, wh.Name, wh.Address, wh.IsActive,
		).Scan(&wh.CreatedAt, &wh.UpdatedAt)
	})
}

// GetByID gets a warehouse by ID
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *WarehouseRepository) GetByID(ctx context.Context, id string) (*Warehouse, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var wh Warehouse
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, name, address, is_active, created_at, updated_at
			FROM warehouses WHERE id = $1
		`
		return r.db.GetContext(ctx, &wh, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("warehouse")
	}
	if err != nil {
		return nil, err
	}
	return &wh, nil
}

// List lists all warehouses
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *WarehouseRepository) List(ctx context.Context) ([]*Warehouse, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var warehouses []*Warehouse
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, name, address, is_active, created_at, updated_at
			FROM warehouses ORDER BY name
		`
		return r.db.SelectContext(ctx, &warehouses, query)
	})
	if err != nil {
		return nil, err
	}
	return warehouses, nil
}

// Update updates a warehouse
// TENANT-ISOLATED: Updates only rows in the tenant's schema
func (r *WarehouseRepository) Update(ctx context.Context, wh *Warehouse) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE warehouses
			SET name = $2, address = $3, is_active = $4, updated_at = NOW()
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query, wh.ID, wh.Name, wh.Address, wh.IsActive)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("warehouse")
		}
		return nil
	})
}
