package httpapi

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"poem-backend/internal/domain"
	"poem-backend/internal/repository"
)

var errNoTenant = errors.New("missing X-Tenant header")

// TenantResolver maps the X-Tenant request header onto the tenant's
// schema context. Tenant-scoped endpoints refuse requests without it;
// the public catalog endpoints never call this.
type TenantResolver struct {
	tenants repository.TenantsRepository
}

func NewTenantResolver(tenants repository.TenantsRepository) *TenantResolver {
	return &TenantResolver{tenants: tenants}
}

func (tr *TenantResolver) Resolve(r *http.Request) (domain.TenantContext, error) {
	schema := r.Header.Get("X-Tenant")
	if schema == "" {
		return domain.TenantContext{}, errNoTenant
	}
	tenant, err := tr.tenants.GetTenantBySchema(r.Context(), schema)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TenantContext{}, fmt.Errorf("unknown tenant %q", schema)
	}
	if err != nil {
		return domain.TenantContext{}, err
	}
	return tenant.Context(), nil
}
