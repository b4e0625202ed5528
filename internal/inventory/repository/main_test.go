package repository_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer suite.Cleanup(ctx)
	defer testutil.TerminateContainer(ctx)

	os.Exit(m.Run())
}

func createTestProduct(t *testing.T, tenantCtx context.Context, repo *repository.ProductRepository, code string) *repository.Product {
	t.Helper()
	product := &repository.Product{
		Code:     code,
		Name:     "Amoxicillin 500mg " + code,
		MinStock: 0,
		IsActive: true,
	}
	err := repo.Create(tenantCtx, product)
	require.NoError(t, err)
	return product
}

func createTestWarehouse(t *testing.T, tenantCtx context.Context, repo *repository.WarehouseRepository, name string) *repository.Warehouse {
	t.Helper()
	wh := &repository.Warehouse{
		Name:     name,
		IsActive: true,
	}
	err := repo.Create(tenantCtx, wh)
	require.NoError(t, err)
	return wh
}

func dateDaysFromNow(days int) time.Time {
	return time.Now().AddDate(0, 0, days).UTC().Truncate(24 * time.Hour)
}

func strPtr(s string) *string {
	return &s
}
