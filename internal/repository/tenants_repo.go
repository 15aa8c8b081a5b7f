package repository

import (
	"context"

	"poem-backend/internal/domain"
)

// TenantsRepository is the tenant registry plus the per-tenant Web-API
// key store (both public schema). ListTenants never returns the shared
// public schema: the propagation and sync loops must not treat the
// catalog itself as a tenant.
type TenantsRepository interface {
	// ListTenants returns every tenant schema except the public one.
	ListTenants(ctx context.Context) ([]*domain.Tenant, error)

	// GetTenantBySchema resolves one tenant registry row by schema name.
	GetTenantBySchema(ctx context.Context, schema string) (*domain.Tenant, error)

	// GetAPIKey returns the token stored under a key name, e.g.
	// "WEB-API-EGI". Missing keys return sql.ErrNoRows.
	GetAPIKey(ctx context.Context, name string) (string, error)

	// SaveAPIKey upserts a token under a key name.
	SaveAPIKey(ctx context.Context, name, token string) error
}
