package tenant

import (
	"context"
	"errors"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const (
	tenantIDKey     contextKey = "tenant_id"
	tenantSlugKey   contextKey = "tenant_slug"
	tenantSchemaKey contextKey = "tenant_schema"
)

var (
	// ErrNoTenantInContext is returned when tenant context is missing
	ErrNoTenantInContext = errors.New("no tenant in context")
)

// WithTenantContext adds all tenant information to the context.
// Called by middleware after extracting the tenant from JWT claims or
// forwarded headers, and by consumers from event payloads.
func WithTenantContext(ctx context.Context, id, slug, schema string) context.Context {
	ctx = context.WithValue(ctx, tenantIDKey, id)
	ctx = context.WithValue(ctx, tenantSlugKey, slug)
	ctx = context.WithValue(ctx, tenantSchemaKey, schema)
	return ctx
}

// TenantID extracts tenant ID from context
// Returns ErrNoTenantInContext if tenant ID is not found
func TenantID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(tenantIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoTenantInContext
	}
	return id, nil
}

// TenantSlug extracts tenant slug from context
// Returns ErrNoTenantInContext if tenant slug is not found
func TenantSlug(ctx context.Context) (string, error) {
	slug, ok := ctx.Value(tenantSlugKey).(string)
	if !ok || slug == "" {
		return "", ErrNoTenantInContext
	}
	return slug, nil
}

// TenantSchema extracts tenant schema name from context.
// Used by the database layer to set search_path, so a missing schema
// must fail loudly rather than fall through to public.
func TenantSchema(ctx context.Context) (string, error) {
	schema, ok := ctx.Value(tenantSchemaKey).(string)
	if !ok || schema == "" {
		return "", ErrNoTenantInContext
	}
	return schema, nil
}
