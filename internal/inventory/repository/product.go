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

// Product represents a catalog product (drug or supply item).
// MinStock is an alerting threshold only; the ledger never blocks on it.
type Product struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"-"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Unit      *string   `db:"unit" json:"unit,omitempty"`
	MinStock  int       `db:"min_stock" json:"min_stock"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LowStockProduct is a product whose total stock across all batches has
// fallen below its min_stock threshold.
type LowStockProduct struct {
	Product
	TotalStock int `db:"total_stock" json:"total_stock"`
}

// ProductRepository handles product persistence
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create creates a new product
// TENANT-ISOLATED: Inserts into the tenant's schema
func (r *ProductRepository) Create(ctx context.Context, product *Product) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO products (id, tenant_id, code, name, unit, min_stock, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at
		`
		return r.db.QueryRowxContext(ctx, query,
			product.ID, tenantID, product.Code, product.Name,
			product.Unit, product.MinStock, product.IsActive,
		).Scan(&product.CreatedAt, &product.UpdatedAt)
	})
	if database.IsUniqueViolation(err, "products_tenant_id_code_key") {
		return errors.DuplicateCode(product.Code)
	}
	return err
}

// GetByID gets a product by ID
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var product Product
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, code, name, unit, min_stock, is_active, created_at, updated_at
			FROM products WHERE id = $1
		`
		return r.db.GetContext(ctx, &product, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("product")
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// List lists products with pagination, optionally filtered by a search term
// matching code or name.
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *ProductRepository) List(ctx context.Context, page, perPage int, search string) ([]*Product, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var products []*Product
	var total int64

	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		countQuery := `
			SELECT COUNT(*) FROM products
			WHERE ($1 = '' OR code ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%')
		`
		if err := r.db.GetContext(ctx, &total, countQuery, search); err != nil {
			return err
		}

		query := `
			SELECT id, tenant_id, code, name, unit, min_stock, is_active, created_at, updated_at
			FROM products
			WHERE ($1 = '' OR code ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%')
			ORDER BY code
			LIMIT $2 OFFSET $3
		`
		return r.db.SelectContext(ctx, &products, query, search, perPage, (page-1)*perPage)
	})
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Update updates a product
// TENANT-ISOLATED: Updates only rows in the tenant's schema
func (r *ProductRepository) Update(ctx context.Context, product *Product) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE products
			SET code = $2, name = $3, unit = $4, min_stock = $5, is_active = $6, updated_at = NOW()
			WHERE id = $1
		`
		result, err := r.db.ExecContext(ctx, query,
			product.ID, product.Code, product.Name, product.Unit, product.MinStock, product.IsActive,
		)
		if database.IsUniqueViolation(err, "products_tenant_id_code_key") {
			return errors.DuplicateCode(product.Code)
		}
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("product")
		}
		return nil
	})
}

// Deactivate marks a product inactive. Batches referencing it stay intact.
// TENANT-ISOLATED: Updates only rows in the tenant's schema
func (r *ProductRepository) Deactivate(ctx context.Context, id string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
		result, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("product")
		}
		return nil
	})
}

// ListLowStock lists active products whose summed batch quantity is below
// their min_stock threshold. Products with no batches count as zero stock.
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *ProductRepository) ListLowStock(ctx context.Context) ([]*LowStockProduct, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var products []*LowStockProduct
	err = r.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT p.id, p.tenant_id, p.code, p.name, p.unit, p.min_stock, p.is_active,
			       p.created_at, p.updated_at,
			       COALESCE(SUM(b.quantity), 0) AS total_stock
			FROM products p
			LEFT JOIN warehouse_batches b ON b.product_id = p.id
			WHERE p.is_active = TRUE AND p.min_stock > 0
			GROUP BY p.id, p.tenant_id, p.code, p.name, p.unit, p.min_stock, p.is_active,
			         p.created_at, p.updated_at
			HAVING COALESCE(SUM(b.quantity), 0) < p.min_stock
			ORDER BY p.code
		`
		return r.db.SelectContext(ctx, &products, query)
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}
