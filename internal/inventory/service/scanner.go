package service

import (
	"context"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/events"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// ExpiryScanner walks one tenant's stock and publishes alerting events for
// batches nearing or past expiry and for products under their minimum.
// Scanning never mutates stock; expired batches keep their quantity until an
// export writes them off.
type ExpiryScanner struct {
	batchRepo        *repository.BatchRepository
	productRepo      *repository.ProductRepository
	publisher        *events.StockEventPublisher
	expiringSoonDays int
	logger           *logger.Logger
}

// NewExpiryScanner creates a new expiry scanner
func NewExpiryScanner(
	batchRepo *repository.BatchRepository,
	productRepo *repository.ProductRepository,
	publisher *events.StockEventPublisher,
	expiringSoonDays int,
	log *logger.Logger,
) *ExpiryScanner {
	if expiringSoonDays <= 0 {
		expiringSoonDays = ExpiringSoonDays
	}
	return &ExpiryScanner{
		batchRepo:        batchRepo,
		productRepo:      productRepo,
		publisher:        publisher,
		expiringSoonDays: expiringSoonDays,
		logger:           log,
	}
}

// ScanAll runs every scan for the tenant carried in ctx.
func (s *ExpiryScanner) ScanAll(ctx context.Context) error {
	if err := s.scanExpiry(ctx); err != nil {
		return err
	}
	return s.scanLowStock(ctx)
}

func (s *ExpiryScanner) scanExpiry(ctx context.Context) error {
	expiring, err := s.batchRepo.ListExpiring(ctx, s.expiringSoonDays)
	if err != nil {
		return err
	}
	for _, batch := range expiring {
		s.publisher.PublishBatchExpiring(ctx, batch, false)
	}

	expired, err := s.batchRepo.ListExpired(ctx)
	if err != nil {
		return err
	}
	for _, batch := range expired {
		s.publisher.PublishBatchExpiring(ctx, batch, true)
	}

	if len(expiring) > 0 || len(expired) > 0 {
		s.logger.Info().
			Int("expiring", len(expiring)).
			Int("expired", len(expired)).
			Msg("expiry scan found batches")
	}
	return nil
}

func (s *ExpiryScanner) scanLowStock(ctx context.Context) error {
	products, err := s.productRepo.ListLowStock(ctx)
	if err != nil {
		return err
	}
	for _, product := range products {
		s.publisher.PublishStockLow(ctx, product)
	}

	if len(products) > 0 {
		s.logger.Info().Int("products", len(products)).Msg("low stock scan found products")
	}
	return nil
}
