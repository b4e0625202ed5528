package repository_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

func TestBatchRepository_Adjust_CreatesBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "batch-create")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	warehouseRepo := repository.NewWarehouseRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "SP0001")
	wh := createTestWarehouse(t, tenantCtx, warehouseRepo, "Main")

	key := repository.BatchKey{
		WarehouseID: wh.ID,
		ProductID:   product.ID,
		LotCode:     "L1",
		ExpiryDate:  dateDaysFromNow(365),
	}

	batch, err := batchRepo.Adjust(tenantCtx, repository.AdjustParams{
		BatchKey: key,
		Delta:    10,
		UnitCost: decimal.NewFromInt(1500),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, 10, batch.Quantity)
	assert.True(t, batch.UnitCost.Equal(decimal.NewFromInt(1500)))

	found, err := batchRepo.Find(tenantCtx, key)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, found.ID)
}

func TestBatchRepository_Adjust_MergesSameKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "batch-merge")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	warehouseRepo := repository.NewWarehouseRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "SP0002")
	wh := createTestWarehouse(t, tenantCtx, warehouseRepo, "Main")

	key := repository.BatchKey{
		WarehouseID: wh.ID,
		ProductID:   product.ID,
		LotCode:     "L1",
		ExpiryDate:  dateDaysFromNow(365),
	}

	first, err := batchRepo.Adjust(tenantCtx, repository.AdjustParams{BatchKey: key, Delta: 10})
	require.NoError(t, err)

	second, err := batchRepo.Adjust(tenantCtx, repository.AdjustParams{BatchKey: key, Delta: 5})
	require.NoError(t, err)

	// Same identity, summed quantity
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 15, second.Quantity)

	// A different expiry is a different batch even with the same lot code
	otherKey := key
	otherKey.ExpiryDate = dateDaysFromNow(500)
	other, err := batchRepo.Adjust(tenantCtx, repository.AdjustParams{BatchKey: otherKey, Delta: 3})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, 3, other.Quantity)
}

func TestBatchRepository_Adjust_CostFirstNonZeroWins(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "batch-cost")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	warehouseRepo := repository.NewWarehouseRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "SP0003")
	wh := createTestWarehouse(t, tenantCtx, warehouseRepo, "Main")

	key := repository.BatchKey{
		WarehouseID: wh.ID,
		ProductID:   product.ID,
		LotCode:     "L1",
		ExpiryDate:  dateDaysFromNow(365),
	}

	// Created with zero cost, then backfilled by the first priced import
	batch, err := batchRepo.Adjust(tenantCtx, repository.AdjustParams{BatchKey: key, Delta: 5})
	require.NoError(t, err)
	assert.True(t, batch.UnitCost.IsZero())

	batch, err = batchRepo.Adjust(tenantCtx, repository.AdjustParams{
		BatchKey: key, Delta: 5, UnitCost: decimal.NewFromInt(2000),
	})
	require.NoError(t, err)
	assert.True(t, batch.UnitCost.Equal(decimal.NewFromInt(2000)))

	// A later differing price never overwrites the stored cost
	batch, err = batchRepo.Adjust(tenantCtx, repository.AdjustParams{
		BatchKey: key, Delta: 5, UnitCost: decimal.NewFromInt(9999),
	})
	require.NoError(t, err)
	assert.True(t, batch.UnitCost.Equal(decimal.NewFromInt(2000)))
}

func TestBatchRepository_Adjust_DecrementAndInsufficient(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "batch-decrement")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	warehouseRepo := repository.NewWarehouseRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "SP0004")
	wh := createTestWarehouse(t, tenantCtx, warehouseRepo, "Main")

	key := repository.BatchKey{
		WarehouseID: wh.ID,
		ProductID:   product.ID,
		LotCode:     "L1",
		ExpiryDate:  dateDaysFromNow(365),
	}

	_, err := batchRepo.Adjust(tenantCtx, repository.AdjustParams{BatchKey: key, Delta: 10})
	require.NoError(t, err)

	batch, err := batchRepo.Adjust(tenantCtx, repository.AdjustParams{BatchKey: key, Delta: -4})
	require.NoError(t, err)
	assert.Equal(t, 6, batch.Quantity)

	// Over-draw fails and reports what was actually available
	_, err = batchRepo.Adjust(tenantCtx, repository.AdjustParams{BatchKey: key, Delta: -10})
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, "10", appErr.Details["requested"])
	assert.Equal(t, "6", appErr.Details["available"])

	// The failed draw left the batch untouched
	found, err := batchRepo.Find(tenantCtx, key)
	require.NoError(t, err)
	assert.Equal(t, 6, found.Quantity)

	// Draining to zero keeps the row around
	batch, err = batchRepo.Adjust(tenantCtx, repository.AdjustParams{BatchKey: key, Delta: -6})
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Quantity)

	found, err = batchRepo.Find(tenantCtx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, found.Quantity)
}

func TestBatchRepository_Adjust_UnknownKeyReportsZeroAvailable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "batch-unknown")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	warehouseRepo := repository.NewWarehouseRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "SP0005")
	wh := createTestWarehouse(t, tenantCtx, warehouseRepo, "Main")

	_, err := batchRepo.Adjust(tenantCtx, repository.AdjustParams{
		BatchKey: repository.BatchKey{
			WarehouseID: wh.ID,
			ProductID:   product.ID,
			LotCode:     "NEVER-IMPORTED",
			ExpiryDate:  dateDaysFromNow(365),
		},
		Delta: -1,
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, "0", appErr.Details["available"])
}

func TestBatchRepository_ListAvailable_FEFOOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "batch-fefo")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	warehouseRepo := repository.NewWarehouseRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "SP0006")
	wh := createTestWarehouse(t, tenantCtx, warehouseRepo, "Main")

	mk := func(lot string, days, qty int) {
		_, err := batchRepo.Adjust(tenantCtx, repository.AdjustParams{
			BatchKey: repository.BatchKey{
				WarehouseID: wh.ID,
				ProductID:   product.ID,
				LotCode:     lot,
				ExpiryDate:  dateDaysFromNow(days),
			},
			Delta: qty,
		})
		require.NoError(t, err)
	}

	mk("LATE", 700, 50)
	mk("EARLY", 100, 5)
	mk("MID", 400, 20)
	mk("EMPTY", 50, 3)

	// Exhausted batches disappear from the available list
	_, err := batchRepo.Adjust(tenantCtx, repository.AdjustParams{
		BatchKey: repository.BatchKey{
			WarehouseID: wh.ID,
			ProductID:   product.ID,
			LotCode:     "EMPTY",
			ExpiryDate:  dateDaysFromNow(50),
		},
		Delta: -3,
	})
	require.NoError(t, err)

	batches, err := batchRepo.ListAvailable(tenantCtx, wh.ID, product.ID)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, "EARLY", batches[0].LotCode)
	assert.Equal(t, "MID", batches[1].LotCode)
	assert.Equal(t, "LATE", batches[2].LotCode)
}

func TestBatchRepository_TotalStockAndExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "batch-expiry")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	warehouseRepo := repository.NewWarehouseRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "SP0007")
	whA := createTestWarehouse(t, tenantCtx, warehouseRepo, "A")
	whB := createTestWarehouse(t, tenantCtx, warehouseRepo, "B")

	adjust := func(whID, lot string, days, qty int) {
		_, err := batchRepo.Adjust(tenantCtx, repository.AdjustParams{
			BatchKey: repository.BatchKey{
				WarehouseID: whID,
				ProductID:   product.ID,
				LotCode:     lot,
				ExpiryDate:  dateDaysFromNow(days),
			},
			Delta: qty,
		})
		require.NoError(t, err)
	}

	adjust(whA.ID, "SOON", 10, 7)
	adjust(whA.ID, "GONE", -5, 4)
	adjust(whB.ID, "FINE", 300, 20)

	total, err := batchRepo.TotalStock(tenantCtx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 31, total)

	expiring, err := batchRepo.ListExpiring(tenantCtx, 30)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "SOON", expiring[0].LotCode)
	assert.Equal(t, product.Name, expiring[0].ProductName)

	expired, err := batchRepo.ListExpired(tenantCtx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "GONE", expired[0].LotCode)
}

func TestBatchRepository_Adjust_ConcurrentDebitsNeverOversell(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "batch-concurrent")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	warehouseRepo := repository.NewWarehouseRepository(suite.DB)
	batchRepo := repository.NewBatchRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "SP0008")
	wh := createTestWarehouse(t, tenantCtx, warehouseRepo, "Main")

	key := repository.BatchKey{
		WarehouseID: wh.ID,
		ProductID:   product.ID,
		LotCode:     "L1",
		ExpiryDate:  dateDaysFromNow(365),
	}

	_, err := batchRepo.Adjust(tenantCtx, repository.AdjustParams{BatchKey: key, Delta: 10})
	require.NoError(t, err)

	// 8 debits of 3 against 10 on hand: only 3 can be covered, the rest
	// must fail with the batch never going negative
	const workers = 8
	const perDebit = 3

	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := batchRepo.Adjust(tenantCtx, repository.AdjustParams{
				BatchKey: key,
				Delta:    -perDebit,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Contains(t, []string{"INSUFFICIENT_STOCK", "CONCURRENCY_CONFLICT"}, appErr.Code)
	}
	assert.Equal(t, 3, succeeded)

	final, err := batchRepo.Find(tenantCtx, key)
	require.NoError(t, err)
	assert.Equal(t, 10-3*perDebit, final.Quantity)
	assert.GreaterOrEqual(t, final.Quantity, 0)
}
