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

// Supplier represents a vendor referenced by import notes.
type Supplier struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"-"`
	Name      string    `db:"name" json:"name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Address   *string   `db:"address" json:"address,omitempty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SupplierRepository handles supplier persistence
type SupplierRepository struct {
	db *database.DB
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db *database.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// Create creates a new supplier
// TENANT-ISOLATED: Inserts into the tenant's schema
func (r *SupplierRepository) Create(ctx context.Context, s *Supplier) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	return r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO suppliers (id, tenant_id, name, phone, address, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`
		return r.db.QueryRowxContext(ctx, query,
			s.ID, tenantID, s.Name, s.Phone, s.Address, s.IsActive,
		).Scan(&s.CreatedAt, &s.UpdatedAt)
	})
}

// GetByID gets a supplier by ID
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *SupplierRepository) GetByID(ctx context.Context, id string) (*Supplier, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var s Supplier
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, name, phone, address, is_active, created_at, updated_at
			FROM suppliers WHERE id = $1
		`
		return r.db.GetContext(ctx, &s, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("supplier")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List lists all suppliers
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *SupplierRepository) List(ctx context.Context) ([]*Supplier, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var suppliers []*Supplier
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, name, phone, address, is_active, created_at, updated_at
			FROM suppliers ORDER BY name
		`
		return r.db.SelectContext(ctx, &suppliers, query)
	})
	if err != nil {
		return nil, err
	}
	return suppliers, nil
}

// Update updates a supplier
// TENANT-ISOLATED: Updates only rows in the tenant's schema
func (r *SupplierRepository) Update(ctx context.Context, s *Supplier) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE suppliers
			SET name = $2, phone = $3, address = $4, is_active = $5, updated_at = NOW()
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query, s.ID, s.Name, s.Phone, s.Address, s.IsActive)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("supplier")
		}
		return nil
	})
}
