package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
)

func day(offset int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func batch(lot string, expiry time.Time, qty int, cost int64) *repository.WarehouseBatch {
	return &repository.WarehouseBatch{
		ID:         lot,
		ProductID:  "prod-1",
		LotCode:    lot,
		ExpiryDate: expiry,
		Quantity:   qty,
		UnitCost:   decimal.NewFromInt(cost),
	}
}

func TestPlanFromBatches_TakesEarliestExpiryFirst(t *testing.T) {
	batches := []*repository.WarehouseBatch{
		batch("E1", day(10), 5, 1200),
		batch("E2", day(90), 8, 1000),
	}

	plan := planFromBatches("prod-1", 7, batches)

	assert.Equal(t, 7, plan.Requested)
	assert.Equal(t, 0, plan.Shortfall)
	if assert.Len(t, plan.Lines, 2) {
		assert.Equal(t, "E1", plan.Lines[0].LotCode)
		assert.Equal(t, 5, plan.Lines[0].Quantity)
		assert.Equal(t, 5, plan.Lines[0].InStock)
		assert.True(t, plan.Lines[0].SuggestedPrice.Equal(decimal.NewFromInt(1200)))

		assert.Equal(t, "E2", plan.Lines[1].LotCode)
		assert.Equal(t, 2, plan.Lines[1].Quantity)
		assert.Equal(t, 8, plan.Lines[1].InStock)
	}
}

func TestPlanFromBatches_ShortfallIsAResultNotAnError(t *testing.T) {
	batches := []*repository.WarehouseBatch{
		batch("A", day(5), 10, 0),
		batch("B", day(20), 5, 0),
	}

	plan := planFromBatches("prod-1", 20, batches)

	assert.Equal(t, 5, plan.Shortfall)
	if assert.Len(t, plan.Lines, 2) {
		assert.Equal(t, 10, plan.Lines[0].Quantity)
		assert.Equal(t, 5, plan.Lines[1].Quantity)
	}
}

func TestPlanFromBatches_NoStock(t *testing.T) {
	plan := planFromBatches("prod-1", 4, nil)

	assert.Equal(t, 4, plan.Shortfall)
	assert.Empty(t, plan.Lines)
}

func TestPlanFromBatches_StopsWhenCovered(t *testing.T) {
	batches := []*repository.WarehouseBatch{
		batch("A", day(5), 10, 0),
		batch("B", day(20), 10, 0),
		batch("C", day(40), 10, 0),
	}

	plan := planFromBatches("prod-1", 10, batches)

	assert.Equal(t, 0, plan.Shortfall)
	if assert.Len(t, plan.Lines, 1) {
		assert.Equal(t, "A", plan.Lines[0].LotCode)
		assert.Equal(t, 10, plan.Lines[0].Quantity)
	}
}
