package events

import (
	"context"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
)

// StockEventPublisher publishes inventory ledger events. Publishing happens
// after commit and is best-effort: a broker failure is logged, never
// propagated back into the committed transaction.
type StockEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishNoteCommitted publishes a note committed event
func (p *StockEventPublisher) PublishNoteCommitted(ctx context.Context, note *repository.StockNote) {
	if p == nil {
		return
	}

	total := 0
	for _, line := range note.Lines {
		total += line.Quantity
	}

	createdBy := ""
	if note.CreatedBy != nil {
		createdBy = *note.CreatedBy
	}

	data := messaging.NoteCommittedEvent{
		NoteID:                 note.ID,
		Code:                   note.Code,
		Kind:                   note.Kind,
		SourceWarehouseID:      note.SourceWarehouseID,
		DestinationWarehouseID: note.DestinationWarehouseID,
		RequestID:              note.RequestID,
		LineCount:              len(note.Lines),
		TotalQuantity:          total,
		CreatedBy:              createdBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventNoteCommitted, data); err != nil {
		p.logger.Error().Err(err).Str("note_id", note.ID).Str("code", note.Code).
			Msg("failed to publish note committed event")
	}
}

// PublishRequestCompleted publishes a request completed event
func (p *StockEventPublisher) PublishRequestCompleted(ctx context.Context, req *repository.ReplenishmentRequest, noteID string) {
	if p == nil {
		return
	}

	data := messaging.RequestCompletedEvent{
		RequestID:             req.ID,
		NoteID:                noteID,
		RequestingWarehouseID: req.RequestingWarehouseID,
		SupplyingWarehouseID:  req.SupplyingWarehouseID,
	}

	if err := p.publisher.Publish(ctx, messaging.EventRequestCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("request_id", req.ID).
			Msg("failed to publish request completed event")
	}
}

// PublishBatchExpiring publishes a batch expiring event
func (p *StockEventPublisher) PublishBatchExpiring(ctx context.Context, batch *repository.ExpiringBatch, expired bool) {
	if p == nil {
		return
	}

	data := messaging.BatchExpiringEvent{
		BatchID:     batch.ID,
		ProductID:   batch.ProductID,
		ProductName: batch.ProductName,
		WarehouseID: batch.WarehouseID,
		LotCode:     batch.LotCode,
		ExpiryDate:  batch.ExpiryDate,
		Quantity:    batch.Quantity,
		Expired:     expired,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchExpiring, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).
			Msg("failed to publish batch expiring event")
	}
}

// PublishStockLow publishes a low stock event
func (p *StockEventPublisher) PublishStockLow(ctx context.Context, product *repository.LowStockProduct) {
	if p == nil {
		return
	}

	data := messaging.StockLowEvent{
		ProductID:   product.ID,
		ProductCode: product.Code,
		ProductName: product.Name,
		TotalStock:  product.TotalStock,
		MinStock:    product.MinStock,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockLow, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", product.ID).
			Msg("failed to publish stock low event")
	}
}
