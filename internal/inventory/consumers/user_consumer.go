package consumers

import (
	"context"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
	"github.com/pharmstock/pharmstock-backend/pkg/tenant"
)

// UserEventConsumer keeps the tenant-local user cache in sync with the user
// service, so note created_by and receiver ids can be shown as names without
// a cross-service call.
type UserEventConsumer struct {
	consumer      *messaging.Consumer
	userCacheRepo *repository.UserCacheRepository
	logger        *logger.Logger
}

// NewUserEventConsumer creates a new user event consumer
func NewUserEventConsumer(rmq *messaging.RabbitMQ, userCacheRepo *repository.UserCacheRepository, log *logger.Logger) (*UserEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "inventory-service.user-events", log)
	if err != nil {
		return nil, err
	}

	// Subscribe to user events
	if err := consumer.Subscribe(messaging.ExchangeUserEvents, "user.#"); err != nil {
		return nil, err
	}

	c := &UserEventConsumer{
		consumer:      consumer,
		userCacheRepo: userCacheRepo,
		logger:        log,
	}

	// Register handlers
	consumer.RegisterHandler(messaging.EventUserCreated, c.handleUserCreated)
	consumer.RegisterHandler(messaging.EventUserUpdated, c.handleUserUpdated)
	consumer.RegisterHandler(messaging.EventUserDeleted, c.handleUserDeleted)

	return c, nil
}

// Start starts consuming messages
func (c *UserEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *UserEventConsumer) handleUserCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Str("tenant_id", data.TenantID).
		Msg("received user created event")

	// Events arrive without an authenticated request, so the tenant context
	// comes from the event payload itself.
	ctx = tenant.WithTenantContext(ctx, data.TenantID, data.TenantSlug, data.TenantSchema)

	return c.userCacheRepo.Set(ctx, &repository.CachedUser{
		UserID:    data.UserID,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Email:     &data.Email,
		RoleName:  &data.RoleName,
		TenantID:  data.TenantID,
	})
}

func (c *UserEventConsumer) handleUserUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user updated event")

	ctx = tenant.WithTenantContext(ctx, data.TenantID, data.TenantSlug, data.TenantSchema)

	existing, _ := c.userCacheRepo.Get(ctx, data.UserID)
	if existing == nil {
		return nil
	}

	if v, ok := changedTo(data.Fields, "first_name"); ok {
		existing.FirstName = v
	}
	if v, ok := changedTo(data.Fields, "last_name"); ok {
		existing.LastName = v
	}
	if v, ok := changedTo(data.Fields, "email"); ok {
		existing.Email = &v
	}
	if v, ok := changedTo(data.Fields, "role_name"); ok {
		existing.RoleName = &v
	}

	return c.userCacheRepo.Set(ctx, existing)
}

func (c *UserEventConsumer) handleUserDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user deleted event")

	ctx = tenant.WithTenantContext(ctx, data.TenantID, data.TenantSlug, data.TenantSchema)

	return c.userCacheRepo.Delete(ctx, data.UserID)
}

// changedTo extracts the "to" value of one changed field from an update
// event's {field: {from, to}} map.
func changedTo(fields map[string]any, name string) (string, bool) {
	change, ok := fields[name].(map[string]interface{})
	if !ok {
		return "", false
	}
	v, ok := change["to"].(string)
	return v, ok
}
