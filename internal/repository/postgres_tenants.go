package repository

import (
	"context"
	"database/sql"
	"fmt"

	"poem-backend/internal/domain"
)

// PostgresTenantsRepository is the Postgres tenant registry.
type PostgresTenantsRepository struct {
	db *sql.DB
}

func NewPostgresTenantsRepository(db *sql.DB) *PostgresTenantsRepository {
	return &PostgresTenantsRepository{db: db}
}

var _ TenantsRepository = (*PostgresTenantsRepository)(nil)

func (r *PostgresTenantsRepository) ListTenants(ctx context.Context) ([]*domain.Tenant, error) {
	query := `
		SELECT tenant_id, tenant_name, schema_name, domain, active
		FROM tenants
		WHERE schema_name <> $1 AND active
		ORDER BY tenant_name
	`
	rows, err := r.db.QueryContext(ctx, query, domain.PublicSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.SchemaName, &t.Domain, &t.Active); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}
	return tenants, nil
}

func (r *PostgresTenantsRepository) GetTenantBySchema(ctx context.Context, schema string) (*domain.Tenant, error) {
	query := `
		SELECT tenant_id, tenant_name, schema_name, domain, active
		FROM tenants
		WHERE schema_name = $1
	`
	var t domain.Tenant
	err := r.db.QueryRowContext(ctx, query, schema).Scan(&t.ID, &t.Name, &t.SchemaName, &t.Domain, &t.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get tenant %q: %w", schema, err)
	}
	return &t, nil
}

func (r *PostgresTenantsRepository) GetAPIKey(ctx context.Context, name string) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		`SELECT token FROM api_keys WHERE key_name = $1`, name).Scan(&token)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", err
		}
		return "", fmt.Errorf("failed to get api key %q: %w", name, err)
	}
	return token, nil
}

func (r *PostgresTenantsRepository) SaveAPIKey(ctx context.Context, name, token string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (key_name, token)
		VALUES ($1, $2)
		ON CONFLICT (key_name) DO UPDATE SET token = EXCLUDED.token
	`, name, token)
	if err != nil {
		return fmt.Errorf("failed to save api key %q: %w", name, err)
	}
	return nil
}
