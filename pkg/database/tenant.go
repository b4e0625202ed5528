package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/pkg/tenant"
)

type txKey struct{}

// WithTenantTx executes a function inside a tenant-isolated transaction.
// This is the single unit-of-work boundary for every multi-statement
// operation (ledger transactions, request creation, RLS-scoped reads).
//
// Usage in services and repositories:
//
//	tenantID, err := tenant.TenantID(ctx)
//	if err != nil { return err }
//	err = s.db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
//	    // every db helper call here runs on the same transaction
//	    return s.batchRepo.Adjust(ctx, params)
//	})
//
// How it works:
//  1. Starts a transaction (or joins the one already carried in ctx,
//     so nested repository calls share the enclosing unit of work)
//  2. Sets "SET LOCAL search_path TO <tenant_schema>, public"
//  3. Sets "SET LOCAL app.current_tenant = '<tenant-uuid>'"
//  4. RLS policies filter rows: USING (tenant_id = current_setting('app.current_tenant')::uuid)
//  5. Commits (SET LOCAL state dies with the transaction, safe under pooling)
func (db *DB) WithTenantTx(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	// Joining an enclosing tenant transaction: run the function directly,
	// the outer call owns commit/rollback.
	if tx := db.getTx(ctx); tx != nil {
		return fn(ctx)
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		schema, err := tenant.TenantSchema(ctx)
		if err != nil || schema == "" {
			schema = "public"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s, public", schema)); err != nil {
			return fmt.Errorf("failed to set search_path to %s: %w", schema, err)
		}

		// Tenant context for RLS policies. SET LOCAL does not support
		// parameterized queries; tenantID is a UUID validated upstream.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL app.current_tenant = '%s'", tenantID)); err != nil {
			return fmt.Errorf("failed to set app.current_tenant to %s: %w", tenantID, err)
		}

		txCtx := context.WithValue(ctx, txKey{}, tx)

		return fn(txCtx)
	})
}

// getTx extracts transaction from context if present
func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
