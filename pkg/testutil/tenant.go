package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/pkg/tenant"
)

// TestTenant represents a tenant created for testing
type TestTenant struct {
	ID         string
	Name       string
	Slug       string
	SchemaName string
}

// TenantManager manages test tenant schemas
type TenantManager struct {
	db      *sqlx.DB
	tenants []TestTenant
	mu      sync.Mutex
}

// NewTenantManager creates a new tenant manager for tests
func NewTenantManager(db *sqlx.DB) *TenantManager {
	return &TenantManager{
		db:      db,
		tenants: make([]TestTenant, 0),
	}
}

// CreateTenant creates a new isolated tenant schema for testing.
// Each test can have its own tenant to ensure complete isolation.
//
// Usage:
//
//	tm := testutil.NewTenantManager(db)
//	tenant := tm.CreateTenant(ctx, "test-clinic")
//	ctx = testutil.WithTestTenant(ctx, tenant)
//
//	// Now all repository operations will use this tenant's schema
//	user, err := userRepo.GetByID(ctx, userID)
func (tm *TenantManager) CreateTenant(ctx context.Context, name string) (*TestTenant, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	id := uuid.New().String()
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	schemaName := fmt.Sprintf("tenant_%s", strings.ReplaceAll(slug, "-", "_"))

	// Create schema
	_, err := tm.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant schema: %w", err)
	}

	// Register tenant in public.tenants
	_, err = tm.db.ExecContext(ctx, `
		INSERT INTO public.tenants (id, name, slug, schema_name, subscription_status, is_active)
		VALUES ($1, $2, $3, $4, 'active', TRUE)
		ON CONFLICT (slug) DO NOTHING
	`, id, name, slug, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to register tenant: %w", err)
	}

	t := TestTenant{
		ID:         id,
		Name:       name,
		Slug:       slug,
		SchemaName: schemaName,
	}

	tm.tenants = append(tm.tenants, t)
	return &t, nil
}

// CreateTenantWithMigrations creates a tenant and applies the given migrations
func (tm *TenantManager) CreateTenantWithMigrations(ctx context.Context, name string, migrations []string) (*TestTenant, error) {
	t, err := tm.CreateTenant(ctx, name)
	if err != nil {
		return nil, err
	}

	// Set search_path and apply migrations
	for _, migration := range migrations {
		_, err = tm.db.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s, public", t.SchemaName))
		if err != nil {
			return nil, fmt.Errorf("failed to set search_path: %w", err)
		}

		_, err = tm.db.ExecContext(ctx, migration)
		if err != nil {
			return nil, fmt.Errorf("failed to apply migration: %w", err)
		}
	}

	// Reset search_path
	_, err = tm.db.ExecContext(ctx, "SET search_path TO public")
	if err != nil {
		return nil, fmt.Errorf("failed to reset search_path: %w", err)
	}

	return t, nil
}

// DropTenant removes a tenant schema completely
func (tm *TenantManager) DropTenant(ctx context.Context, t *TestTenant) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	// Drop schema with CASCADE (removes all objects)
	_, err := tm.db.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", t.SchemaName))
	if err != nil {
		return fmt.Errorf("failed to drop tenant schema: %w", err)
	}

	// Remove from tenants table
	_, err = tm.db.ExecContext(ctx, "DELETE FROM public.tenants WHERE id = $1", t.ID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant record: %w", err)
	}

	// Remove from tracked tenants
	for i, tracked := range tm.tenants {
		if tracked.ID == t.ID {
			tm.tenants = append(tm.tenants[:i], tm.tenants[i+1:]...)
			break
		}
	}

	return nil
}

// Cleanup drops all tenant schemas created by this manager.
// Call this in TestMain or test cleanup.
func (tm *TenantManager) Cleanup(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var lastErr error
	for _, t := range tm.tenants {
		_, err := tm.db.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", t.SchemaName))
		if err != nil {
			lastErr = err
		}
		_, err = tm.db.ExecContext(ctx, "DELETE FROM public.tenants WHERE id = $1", t.ID)
		if err != nil {
			lastErr = err
		}
	}

	tm.tenants = make([]TestTenant, 0)
	return lastErr
}

// WithTestTenant creates a context with tenant information for testing.
// This is the primary way to set up tenant context in tests.
func WithTestTenant(ctx context.Context, t *TestTenant) context.Context {
	return tenant.WithTenantContext(ctx, t.ID, t.Slug, t.SchemaName)
}

// WithTestTenantValues creates a context with custom tenant values.
// Useful for testing error cases or edge conditions.
func WithTestTenantValues(ctx context.Context, id, slug, schema string) context.Context {
	return tenant.WithTenantContext(ctx, id, slug, schema)
}

// TestTenantContext creates a context with a fake tenant for simple unit tests
// that don't need actual database isolation.
func TestTenantContext() context.Context {
	return tenant.WithTenantContext(
		context.Background(),
		"test-tenant-id",
		"test-tenant",
		"tenant_test",
	)
}

// InventoryMigrations returns the inventory service migrations for tests.
// Tables are created inside the tenant schema set by the caller's
// search_path; constraint names match what pkg/database error mapping and
// the repositories expect.
func InventoryMigrations() []string {
	return []string{
		// Product catalog
		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			code VARCHAR(50) NOT NULL,
			name VARCHAR(255) NOT NULL,
			unit VARCHAR(50),
			min_stock INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT products_tenant_id_code_key UNIQUE (tenant_id, code)
		)`,

		// Warehouses
		`CREATE TABLE IF NOT EXISTS warehouses (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			address VARCHAR(500),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Suppliers
		`CREATE TABLE IF NOT EXISTS suppliers (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			phone VARCHAR(50),
			address VARCHAR(500),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Warehouse batches: one row per (warehouse, product, lot, expiry)
		`CREATE TABLE IF NOT EXISTS warehouse_batches (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			warehouse_id UUID NOT NULL REFERENCES warehouses(id),
			product_id UUID NOT NULL REFERENCES products(id),
			lot_code VARCHAR(100) NOT NULL,
			expiry_date DATE NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 0,
			unit_cost NUMERIC(15,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT warehouse_batches_quantity_non_negative CHECK (quantity >= 0),
			CONSTRAINT warehouse_batches_natural_key UNIQUE (tenant_id, warehouse_id, product_id, lot_code, expiry_date)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_warehouse_batches_fefo
			ON warehouse_batches (warehouse_id, product_id, expiry_date, created_at, id)
			WHERE quantity > 0`,

		// Stock notes (ledger entry headers)
		`CREATE TABLE IF NOT EXISTS stock_notes (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			code VARCHAR(50) NOT NULL,
			kind VARCHAR(20) NOT NULL,
			source_warehouse_id UUID NOT NULL REFERENCES warehouses(id),
			destination_warehouse_id UUID REFERENCES warehouses(id),
			supplier_id UUID REFERENCES suppliers(id),
			request_id UUID,
			receiver_id UUID,
			status VARCHAR(20) NOT NULL DEFAULT 'completed',
			description VARCHAR(500),
			created_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_notes_tenant_id_code_key UNIQUE (tenant_id, code),
			CONSTRAINT stock_notes_kind_valid CHECK (kind IN ('import', 'export', 'transfer')),
			CONSTRAINT stock_notes_status_valid CHECK (status IN ('draft', 'completed'))
		)`,

		// Stock note lines (append-only)
		`CREATE TABLE IF NOT EXISTS stock_note_lines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			note_id UUID NOT NULL REFERENCES stock_notes(id) ON DELETE CASCADE,
			product_id UUID NOT NULL REFERENCES products(id),
			lot_code VARCHAR(100) NOT NULL,
			expiry_date DATE NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price NUMERIC(15,2) NOT NULL DEFAULT 0,
			vat_pct NUMERIC(5,2) NOT NULL DEFAULT 0,
			discount NUMERIC(15,2) NOT NULL DEFAULT 0,
			unit VARCHAR(50),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_note_lines_quantity_positive CHECK (quantity > 0)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_stock_note_lines_note ON stock_note_lines (note_id)`,

		// Replenishment requests
		`CREATE TABLE IF NOT EXISTS replenishment_requests (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			code VARCHAR(50) NOT NULL,
			requesting_warehouse_id UUID NOT NULL REFERENCES warehouses(id),
			supplying_warehouse_id UUID NOT NULL REFERENCES warehouses(id),
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			description VARCHAR(500),
			created_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT replenishment_requests_tenant_id_code_key UNIQUE (tenant_id, code),
			CONSTRAINT replenishment_requests_status_valid CHECK (status IN ('pending', 'approved', 'rejected', 'completed'))
		)`,

		`CREATE TABLE IF NOT EXISTS replenishment_request_lines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			request_id UUID NOT NULL REFERENCES replenishment_requests(id) ON DELETE CASCADE,
			product_id UUID NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL,
			unit VARCHAR(50),
			CONSTRAINT replenishment_request_lines_quantity_positive CHECK (quantity > 0)
		)`,

		// User cache, synced from user service events
		`CREATE TABLE IF NOT EXISTS user_cache (
			user_id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			first_name VARCHAR(255) NOT NULL,
			last_name VARCHAR(255) NOT NULL DEFAULT '',
			email VARCHAR(255),
			role_name VARCHAR(100),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
}
