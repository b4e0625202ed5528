package service

import (
	"context"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
)

// ExpiringSoonDays is the default horizon for the expiring-soon report.
const ExpiringSoonDays = 30

// StockStatus is the read-only health report of a tenant's inventory:
// batches nearing expiry, expired batches still holding stock, and products
// whose totals dropped below their alert threshold.
type StockStatus struct {
	ExpiringSoon []*repository.ExpiringBatch   `json:"expiring_soon"`
	Expired      []*repository.ExpiringBatch   `json:"expired"`
	LowStock     []*repository.LowStockProduct `json:"low_stock"`
}

// StatusService assembles the stock status report.
type StatusService struct {
	batchRepo   *repository.BatchRepository
	productRepo *repository.ProductRepository
}

// NewStatusService creates a new status service
func NewStatusService(batchRepo *repository.BatchRepository, productRepo *repository.ProductRepository) *StatusService {
	return &StatusService{
		batchRepo:   batchRepo,
		productRepo: productRepo,
	}
}

// Status reads the current report. Nothing here blocks or mutates stock;
// expired batches keep their quantity until an export writes them off.
func (s *StatusService) Status(ctx context.Context) (*StockStatus, error) {
	expiring, err := s.batchRepo.ListExpiring(ctx, ExpiringSoonDays)
	if err != nil {
		return nil, err
	}

	expired, err := s.batchRepo.ListExpired(ctx)
	if err != nil {
		return nil, err
	}

	lowStock, err := s.productRepo.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}

	return &StockStatus{
		ExpiringSoon: expiring,
		Expired:      expired,
		LowStock:     lowStock,
	}, nil
}
