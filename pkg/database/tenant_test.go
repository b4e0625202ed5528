package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/tenant"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	return &DB{
		DB:     sqlx.NewDb(raw, "postgres"),
		logger: logger.New("test", "test"),
	}, mock
}

func tenantCtx() context.Context {
	return tenant.WithTenantContext(context.Background(),
		"11111111-1111-1111-1111-111111111111", "demo", "tenant_demo")
}

func TestWithTenantTx_SetsTenantScope(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := tenantCtx()

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL search_path TO tenant_demo, public").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET LOCAL app.current_tenant").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE warehouse_batches").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.WithTenantTx(ctx, "11111111-1111-1111-1111-111111111111", func(ctx context.Context) error {
		_, err := db.ExecContext(ctx, "UPDATE warehouse_batches SET quantity = quantity")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTenantTx_JoinsEnclosingTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := tenantCtx()

	// One begin, one commit: the nested call must not open its own
	// transaction, its statement runs on the outer one
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL search_path TO tenant_demo, public").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET LOCAL app.current_tenant").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO stock_notes").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tenantID := "11111111-1111-1111-1111-111111111111"
	err := db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
		return db.WithTenantTx(ctx, tenantID, func(ctx context.Context) error {
			_, err := db.ExecContext(ctx, "INSERT INTO stock_notes DEFAULT VALUES")
			return err
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTenantTx_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	ctx := tenantCtx()

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL search_path TO tenant_demo, public").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET LOCAL app.current_tenant").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	failure := errors.InsufficientStock("p1", "L1", 5, 2)
	err := db.WithTenantTx(ctx, "11111111-1111-1111-1111-111111111111", func(ctx context.Context) error {
		return failure
	})
	assert.Equal(t, failure, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
