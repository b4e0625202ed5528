package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// User events (consumed from the account service)
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	// Inventory events
	EventNoteCommitted    = "inventory.note.committed"
	EventRequestCompleted = "inventory.request.completed"
	EventBatchExpiring    = "inventory.batch.expiring"
	EventStockLow         = "inventory.stock.low"
)

// Exchange names
const (
	ExchangeUserEvents      = "user.events"
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// User Events

// UserCreatedEvent is published when a user is created
type UserCreatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`

	// Tenant context
	TenantID     string `json:"tenant_id"`
	TenantSlug   string `json:"tenant_slug"`
	TenantSchema string `json:"tenant_schema"`
}

// FullName returns the user's full name
func (e *UserCreatedEvent) FullName() string {
	return e.FirstName + " " + e.LastName
}

// UserUpdatedEvent is published when a user is updated
type UserUpdatedEvent struct {
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"` // Changed fields

	// Tenant context
	TenantID     string `json:"tenant_id"`
	TenantSlug   string `json:"tenant_slug"`
	TenantSchema string `json:"tenant_schema"`
}

// UserDeletedEvent is published when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`

	// Tenant context
	TenantID     string `json:"tenant_id"`
	TenantSlug   string `json:"tenant_slug"`
	TenantSchema string `json:"tenant_schema"`
}

// Inventory Events

// NoteCommittedEvent is published after a stock note (import, export or
// transfer) commits with all of its batch adjustments.
type NoteCommittedEvent struct {
	NoteID                 string  `json:"note_id"`
	Code                   string  `json:"code"`
	Kind                   string  `json:"kind"`
	SourceWarehouseID      string  `json:"source_warehouse_id"`
	DestinationWarehouseID *string `json:"destination_warehouse_id,omitempty"`
	RequestID              *string `json:"request_id,omitempty"`
	LineCount              int     `json:"line_count"`
	TotalQuantity          int     `json:"total_quantity"`
	CreatedBy              string  `json:"created_by,omitempty"`
}

// RequestCompletedEvent is published when a replenishment request is
// closed by a fulfilling export or transfer.
type RequestCompletedEvent struct {
	RequestID              string `json:"request_id"`
	NoteID                 string `json:"note_id"`
	RequestingWarehouseID  string `json:"requesting_warehouse_id"`
	SupplyingWarehouseID   string `json:"supplying_warehouse_id"`
}

// BatchExpiringEvent is published when a batch still holding stock is
// nearing (or past) its expiry date.
type BatchExpiringEvent struct {
	BatchID     string    `json:"batch_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	WarehouseID string    `json:"warehouse_id"`
	LotCode     string    `json:"lot_code"`
	ExpiryDate  time.Time `json:"expiry_date"`
	Quantity    int       `json:"quantity"`
	Expired     bool      `json:"expired"`
}

// StockLowEvent is published when a product's total stock across
// batches falls below its configured minimum.
type StockLowEvent struct {
	ProductID   string `json:"product_id"`
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	TotalStock  int    `json:"total_stock"`
	MinStock    int    `json:"min_stock"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
