package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// AllocationLine is one planned take from one batch. SuggestedPrice echoes
// the batch's stored unit cost so callers can pre-fill export line prices.
type AllocationLine struct {
	ProductID      string          `json:"product_id"`
	LotCode        string          `json:"lot_code"`
	ExpiryDate     time.Time       `json:"expiry_date"`
	Quantity       int             `json:"quantity"`
	InStock        int             `json:"in_stock"`
	SuggestedPrice decimal.Decimal `json:"suggested_price"`
}

// AllocationPlan is the planner's answer for one product: which batches to
// draw from, earliest expiry first, and how much demand is left uncovered.
// A non-zero shortfall is a normal outcome, not an error.
type AllocationPlan struct {
	ProductID string            `json:"product_id"`
	Requested int               `json:"requested"`
	Lines     []*AllocationLine `json:"lines"`
	Shortfall int               `json:"shortfall"`
}

// RequestPlan is one plan per request line against the supplying warehouse.
type RequestPlan struct {
	RequestID   string            `json:"request_id"`
	WarehouseID string            `json:"warehouse_id"`
	Plans       []*AllocationPlan `json:"plans"`
}

// Planner produces greedy earliest-expiry-first allocation previews. It only
// reads batch state; it never reserves or mutates anything, so a preview can
// be stale by the time the export runs and the engine re-checks sufficiency.
type Planner struct {
	batchRepo   *repository.BatchRepository
	requestRepo *repository.RequestRepository
}

// NewPlanner creates a new allocation planner
func NewPlanner(batchRepo *repository.BatchRepository, requestRepo *repository.RequestRepository) *Planner {
	return &Planner{
		batchRepo:   batchRepo,
		requestRepo: requestRepo,
	}
}

// PlanProduct plans how to pull needed units of a product from a warehouse.
func (p *Planner) PlanProduct(ctx context.Context, warehouseID, productID string, needed int) (*AllocationPlan, error) {
	if needed <= 0 {
		return nil, errors.BadRequest("requested quantity must be positive")
	}

	batches, err := p.batchRepo.ListAvailable(ctx, warehouseID, productID)
	if err != nil {
		return nil, err
	}

	return planFromBatches(productID, needed, batches), nil
}

// PlanRequest plans every line of a replenishment request against its
// supplying warehouse, with a per-product shortfall.
func (p *Planner) PlanRequest(ctx context.Context, requestID string) (*RequestPlan, error) {
	req, err := p.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	plan := &RequestPlan{
		RequestID:   req.ID,
		WarehouseID: req.SupplyingWarehouseID,
		Plans:       make([]*AllocationPlan, 0, len(req.Lines)),
	}

	for _, line := range req.Lines {
		batches, err := p.batchRepo.ListAvailable(ctx, req.SupplyingWarehouseID, line.ProductID)
		if err != nil {
			return nil, err
		}
		plan.Plans = append(plan.Plans, planFromBatches(line.ProductID, line.Quantity, batches))
	}

	return plan, nil
}

// planFromBatches is the pure core: walk batches in the order given (the
// repository already sorts by expiry) and take min(batch quantity, remaining)
// from each until demand is covered or batches run out.
func planFromBatches(productID string, needed int, batches []*repository.WarehouseBatch) *AllocationPlan {
	plan := &AllocationPlan{
		ProductID: productID,
		Requested: needed,
		Lines:     []*AllocationLine{},
	}

	remaining := needed
	for _, batch := range batches {
		if remaining == 0 {
			break
		}
		take := batch.Quantity
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}
		plan.Lines = append(plan.Lines, &AllocationLine{
			ProductID:      batch.ProductID,
			LotCode:        batch.LotCode,
			ExpiryDate:     batch.ExpiryDate,
			Quantity:       take,
			InStock:        batch.Quantity,
			SuggestedPrice: batch.UnitCost,
		})
		remaining -= take
	}

	plan.Shortfall = remaining
	return plan
}
