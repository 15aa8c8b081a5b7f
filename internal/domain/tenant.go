package domain

// PublicSchema is the shared schema holding the admin catalog
// (probes, packages, metric templates). It is never iterated by the
// cross-schema propagation loop.
const PublicSchema = "public"

// Tenant is one row of the tenant registry (public schema, tenants table).
type Tenant struct {
	ID         int64  `db:"tenant_id"`
	Name       string `db:"tenant_name"` // e.g. "EGI"
	SchemaName string `db:"schema_name"` // e.g. "egi"
	Domain     string `db:"domain"`
	Active     bool   `db:"active"`
}

// TenantContext selects the tenant schema a repository call operates on.
// It is passed explicitly to every tenant-scoped operation; there is no
// ambient "current schema" state anywhere in the codebase.
type TenantContext struct {
	SchemaName string
	Name       string
}

// Context returns the TenantContext for this registry row.
func (t *Tenant) Context() TenantContext {
	return TenantContext{SchemaName: t.SchemaName, Name: t.Name}
}
