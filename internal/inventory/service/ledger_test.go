package service_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
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

type ledgerEnv struct {
	ledger      *service.LedgerService
	planner     *service.Planner
	batchRepo   *repository.BatchRepository
	noteRepo    *repository.NoteRepository
	requestRepo *repository.RequestRepository
	product     *repository.Product
	source      *repository.Warehouse
	destination *repository.Warehouse
}

func newLedgerEnv(t *testing.T, tenantCtx context.Context) *ledgerEnv {
	t.Helper()

	batchRepo := repository.NewBatchRepository(suite.DB)
	noteRepo := repository.NewNoteRepository(suite.DB)
	requestRepo := repository.NewRequestRepository(suite.DB)
	productRepo := repository.NewProductRepository(suite.DB)
	warehouseRepo := repository.NewWarehouseRepository(suite.DB)

	product := &repository.Product{Code: "SP0100", Name: "Vitamin C 500mg", IsActive: true}
	require.NoError(t, productRepo.Create(tenantCtx, product))

	source := &repository.Warehouse{Name: "Central", IsActive: true}
	require.NoError(t, warehouseRepo.Create(tenantCtx, source))

	destination := &repository.Warehouse{Name: "Branch", IsActive: true}
	require.NoError(t, warehouseRepo.Create(tenantCtx, destination))

	return &ledgerEnv{
		ledger:      service.NewLedgerService(noteRepo, batchRepo, requestRepo, suite.DB, nil, suite.Logger),
		planner:     service.NewPlanner(batchRepo, requestRepo),
		batchRepo:   batchRepo,
		noteRepo:    noteRepo,
		requestRepo: requestRepo,
		product:     product,
		source:      source,
		destination: destination,
	}
}

func expiry(days int) time.Time {
	return time.Now().AddDate(0, 0, days).UTC().Truncate(24 * time.Hour)
}

func (e *ledgerEnv) importLot(t *testing.T, tenantCtx context.Context, code, lot string, days, qty int, price int64) *repository.StockNote {
	t.Helper()
	note, err := e.ledger.ApplyImport(tenantCtx, &service.ImportInput{
		WarehouseID: e.source.ID,
		Code:        code,
		Lines: []service.LineInput{
			{
				ProductID:  e.product.ID,
				LotCode:    lot,
				ExpiryDate: expiry(days),
				Quantity:   qty,
				UnitPrice:  decimal.NewFromInt(price),
			},
		},
	})
	require.NoError(t, err)
	return note
}

func TestLedger_ApplyImport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "ledger-import")
	tenantCtx := suite.TenantContext(tenant)
	env := newLedgerEnv(t, tenantCtx)

	note, err := env.ledger.ApplyImport(tenantCtx, &service.ImportInput{
		WarehouseID: env.source.ID,
		Code:        "PN-001",
		Lines: []service.LineInput{
			{ProductID: env.product.ID, LotCode: "L1", ExpiryDate: expiry(365), Quantity: 10, UnitPrice: decimal.NewFromInt(1500)},
			{ProductID: env.product.ID, LotCode: "L1", ExpiryDate: expiry(365), Quantity: 5, UnitPrice: decimal.NewFromInt(1500)},
			{ProductID: env.product.ID, LotCode: "L2", ExpiryDate: expiry(200), Quantity: 7},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, repository.NoteKindImport, note.Kind)
	assert.Equal(t, repository.NoteStatusCompleted, note.Status)
	assert.Len(t, note.Lines, 3)

	// Two lines against the same key merged into one batch, lines stayed separate
	batch, err := env.batchRepo.Find(tenantCtx, repository.BatchKey{
		WarehouseID: env.source.ID,
		ProductID:   env.product.ID,
		LotCode:     "L1",
		ExpiryDate:  expiry(365),
	})
	require.NoError(t, err)
	assert.Equal(t, 15, batch.Quantity)

	persisted, err := env.noteRepo.GetByCode(tenantCtx, "PN-001")
	require.NoError(t, err)
	assert.Len(t, persisted.Lines, 3)
}

func TestLedger_ApplyImport_DuplicateCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "ledger-dup")
	tenantCtx := suite.TenantContext(tenant)
	env := newLedgerEnv(t, tenantCtx)

	env.importLot(t, tenantCtx, "PN-DUP", "L1", 365, 10, 1000)

	_, err := env.ledger.ApplyImport(tenantCtx, &service.ImportInput{
		WarehouseID: env.source.ID,
		Code:        "PN-DUP",
		Lines: []service.LineInput{
			{ProductID: env.product.ID, LotCode: "L9", ExpiryDate: expiry(365), Quantity: 1},
		},
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "DUPLICATE_CODE", appErr.Code)

	// The rejected note must not have touched stock
	_, err = env.batchRepo.Find(tenantCtx, repository.BatchKey{
		WarehouseID: env.source.ID,
		ProductID:   env.product.ID,
		LotCode:     "L9",
		ExpiryDate:  expiry(365),
	})
	require.Error(t, err)
}

func TestLedger_ApplyImport_RejectsMalformedLines(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "ledger-validate")
	tenantCtx := suite.TenantContext(tenant)
	env := newLedgerEnv(t, tenantCtx)

	_, err := env.ledger.ApplyImport(tenantCtx, &service.ImportInput{
		WarehouseID: env.source.ID,
		Code:        "PN-BAD",
		Lines: []service.LineInput{
			{ProductID: env.product.ID, LotCode: "", ExpiryDate: expiry(365), Quantity: 0},
		},
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestLedger_ApplyExport_ExampleScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "ledger-scenario")
	tenantCtx := suite.TenantContext(tenant)
	env := newLedgerEnv(t, tenantCtx)

	env.importLot(t, tenantCtx, "PN-010", "L1", 365, 10, 2000)

	key := repository.BatchKey{
		WarehouseID: env.source.ID,
		ProductID:   env.product.ID,
		LotCode:     "L1",
		ExpiryDate:  expiry(365),
	}

	// Export 4 of 10
	_, err := env.ledger.ApplyExport(tenantCtx, &service.ExportInput{
		SourceWarehouseID: env.source.ID,
		Code:              "XN-010",
		Lines: []service.LineInput{
			{ProductID: env.product.ID, LotCode: "L1", ExpiryDate: expiry(365), Quantity: 4},
		},
	})
	require.NoError(t, err)

	batch, err := env.batchRepo.Find(tenantCtx, key)
	require.NoError(t, err)
	assert.Equal(t, 6, batch.Quantity)

	// Export 10 more: fails, batch stays at 6
	_, err = env.ledger.ApplyExport(tenantCtx, &service.ExportInput{
		SourceWarehouseID: env.source.ID,
		Code:              "XN-011",
		Lines: []service.LineInput{
			{ProductID: env.product.ID, LotCode: "L1", ExpiryDate: expiry(365), Quantity: 10},
		},
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, "10", appErr.Details["requested"])
	assert.Equal(t, "6", appErr.Details["available"])

	batch, err = env.batchRepo.Find(tenantCtx, key)
	require.NoError(t, err)
	assert.Equal(t, 6, batch.Quantity)
}

func TestLedger_ApplyExport_ShortLineAbortsWholeNote(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "ledger-rollback")
	tenantCtx := suite.TenantContext(tenant)
	env := newLedgerEnv(t, tenantCtx)

	env.importLot(t, tenantCtx, "PN-020", "L1", 365, 10, 1000)

	// First line is coverable, second is not; neither may survive
	_, err := env.ledger.ApplyExport(tenantCtx, &service.ExportInput{
		SourceWarehouseID: env.source.ID,
		Code:              "XN-020",
		Lines: []service.LineInput{
			{ProductID: env.product.ID, LotCode: "L1", ExpiryDate: expiry(365), Quantity: 4},
			{ProductID: env.product.ID, LotCode: "MISSING", ExpiryDate: expiry(365), Quantity: 1},
		},
	})
	require.Error(t, err)

	batch, err := env.batchRepo.Find(tenantCtx, repository.BatchKey{
		WarehouseID: env.source.ID,
		ProductID:   env.product.ID,
		LotCode:     "L1",
		ExpiryDate:  expiry(365),
	})
	require.NoError(t, err)
	assert.Equal(t, 10, batch.Quantity)

	_, err = env.noteRepo.GetByCode(tenantCtx, "XN-020")
	require.Error(t, err)
}

func TestLedger_ApplyExport_Transfer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "ledger-transfer")
	tenantCtx := suite.TenantContext(tenant)
	env := newLedgerEnv(t, tenantCtx)

	env.importLot(t, tenantCtx, "PN-030", "L1", 365, 10, 2500)

	// Same warehouse on both sides is refused outright
	_, err := env.ledger.ApplyExport(tenantCtx, &service.ExportInput{
		SourceWarehouseID:      env.source.ID,
		DestinationWarehouseID: &env.source.ID,
		Code:                   "XN-BAD",
		Lines: []service.LineInput{
			{ProductID: env.product.ID, LotCode: "L1", ExpiryDate: expiry(365), Quantity: 1},
		},
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_TRANSFER", appErr.Code)

	note, err := env.ledger.ApplyExport(tenantCtx, &service.ExportInput{
		SourceWarehouseID:      env.source.ID,
		DestinationWarehouseID: &env.destination.ID,
		Code:                   "XN-030",
		Lines: []service.LineInput{
			{ProductID: env.product.ID, LotCode: "L1", ExpiryDate: expiry(365), Quantity: 6},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, repository.NoteKindTransfer, note.Kind)

	// Stock is conserved: 4 left at the source, 6 landed at the destination
	// under the same lot identity and cost
	src, err := env.batchRepo.Find(tenantCtx, repository.BatchKey{
		WarehouseID: env.source.ID, ProductID: env.product.ID, LotCode: "L1", ExpiryDate: expiry(365),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, src.Quantity)

	dst, err := env.batchRepo.Find(tenantCtx, repository.BatchKey{
		WarehouseID: env.destination.ID, ProductID: env.product.ID, LotCode: "L1", ExpiryDate: expiry(365),
	})
	require.NoError(t, err)
	assert.Equal(t, 6, dst.Quantity)
	assert.True(t, dst.UnitCost.Equal(decimal.NewFromInt(2500)))

	total, err := env.batchRepo.TotalStock(tenantCtx, env.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
}

func TestLedger_ApplyExport_CompletesLinkedRequestOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "ledger-request")
	tenantCtx := suite.TenantContext(tenant)
	env := newLedgerEnv(t, tenantCtx)

	env.importLot(t, tenantCtx, "PN-040", "L1", 365, 20, 1000)

	req := &repository.ReplenishmentRequest{
		Code:                  "REQ-040",
		RequestingWarehouseID: env.destination.ID,
		SupplyingWarehouseID:  env.source.ID,
		Lines: []*repository.RequestLine{
			{ProductID: env.product.ID, Quantity: 8},
		},
	}
	require.NoError(t, env.requestRepo.Create(tenantCtx, req))
	require.NoError(t, env.requestRepo.UpdateStatus(tenantCtx, req.ID, repository.RequestStatusApproved))

	_, err := env.ledger.ApplyExport(tenantCtx, &service.ExportInput{
		SourceWarehouseID:      env.source.ID,
		DestinationWarehouseID: &env.destination.ID,
		RequestID:              &req.ID,
		Code:                   "XN-040",
		Lines: []service.LineInput{
			{ProductID: env.product.ID, LotCode: "L1", ExpiryDate: expiry(365), Quantity: 8},
		},
	})
	require.NoError(t, err)

	completed, err := env.requestRepo.GetByID(tenantCtx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.RequestStatusCompleted, completed.Status)

	// Fulfilling the same request again fails and rolls the whole note back
	_, err = env.ledger.ApplyExport(tenantCtx, &service.ExportInput{
		SourceWarehouseID:      env.source.ID,
		DestinationWarehouseID: &env.destination.ID,
		RequestID:              &req.ID,
		Code:                   "XN-041",
		Lines: []service.LineInput{
			{ProductID: env.product.ID, LotCode: "L1", ExpiryDate: expiry(365), Quantity: 2},
		},
	})
	require.Error(t, err)

	src, err := env.batchRepo.Find(tenantCtx, repository.BatchKey{
		WarehouseID: env.source.ID, ProductID: env.product.ID, LotCode: "L1", ExpiryDate: expiry(365),
	})
	require.NoError(t, err)
	assert.Equal(t, 12, src.Quantity)

	_, err = env.noteRepo.GetByCode(tenantCtx, "XN-041")
	require.Error(t, err)
}

func TestLedger_ApplyExport_ConcurrentExportsNeverOversell(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "ledger-concurrent")
	tenantCtx := suite.TenantContext(tenant)
	env := newLedgerEnv(t, tenantCtx)

	env.importLot(t, tenantCtx, "PN-060", "L1", 365, 10, 1000)

	// Four exports of 4 against 10 on hand race each other: only two
	// can commit, the failed ones must leave no note behind
	const workers = 4
	const perExport = 4

	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			_, err := env.ledger.ApplyExport(tenantCtx, &service.ExportInput{
				SourceWarehouseID: env.source.ID,
				Code:              code,
				Lines: []service.LineInput{
					{ProductID: env.product.ID, LotCode: "L1", ExpiryDate: expiry(365), Quantity: perExport},
				},
			})
			results <- err
		}(fmt.Sprintf("XN-06%d", i))
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
	assert.Equal(t, 2, succeeded)

	batch, err := env.batchRepo.Find(tenantCtx, repository.BatchKey{
		WarehouseID: env.source.ID,
		ProductID:   env.product.ID,
		LotCode:     "L1",
		ExpiryDate:  expiry(365),
	})
	require.NoError(t, err)
	assert.Equal(t, 10-2*perExport, batch.Quantity)

	// Exactly the committed notes persisted
	notes, _, err := env.noteRepo.List(tenantCtx, 1, 50, repository.NoteFilter{Kind: repository.NoteKindExport})
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestPlanner_PlanRequest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "planner-request")
	tenantCtx := suite.TenantContext(tenant)
	env := newLedgerEnv(t, tenantCtx)

	// 5 expiring soon, 10 later
	env.importLot(t, tenantCtx, "PN-050", "EARLY", 60, 5, 900)
	env.importLot(t, tenantCtx, "PN-051", "LATE", 400, 10, 1100)

	req := &repository.ReplenishmentRequest{
		Code:                  "REQ-050",
		RequestingWarehouseID: env.destination.ID,
		SupplyingWarehouseID:  env.source.ID,
		Lines: []*repository.RequestLine{
			{ProductID: env.product.ID, Quantity: 20},
		},
	}
	require.NoError(t, env.requestRepo.Create(tenantCtx, req))

	plan, err := env.planner.PlanRequest(tenantCtx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, env.source.ID, plan.WarehouseID)
	require.Len(t, plan.Plans, 1)

	productPlan := plan.Plans[0]
	assert.Equal(t, 20, productPlan.Requested)
	assert.Equal(t, 5, productPlan.Shortfall)
	require.Len(t, productPlan.Lines, 2)
	assert.Equal(t, "EARLY", productPlan.Lines[0].LotCode)
	assert.Equal(t, 5, productPlan.Lines[0].Quantity)
	assert.True(t, productPlan.Lines[0].SuggestedPrice.Equal(decimal.NewFromInt(900)))
	assert.Equal(t, "LATE", productPlan.Lines[1].LotCode)
	assert.Equal(t, 15, productPlan.Lines[1].Quantity)
}
