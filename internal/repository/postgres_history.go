package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"poem-backend/internal/domain"
)

// PostgresHistoryRepository implements HistoryRepository over the
// per-tenant tenant_history table. Rows are never updated; ordering is
// date_created with the bigserial id as insertion-order tie-break.
type PostgresHistoryRepository struct {
	db *sql.DB
}

func NewPostgresHistoryRepository(db *sql.DB) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

var _ HistoryRepository = (*PostgresHistoryRepository)(nil)

func historyTable(tc domain.TenantContext) string {
	return pq.QuoteIdentifier(tc.SchemaName) + ".tenant_history"
}

func (r *PostgresHistoryRepository) InsertTenantHistory(ctx context.Context, tc domain.TenantContext, h *domain.TenantHistory) (int64, error) {
	query := `
		INSERT INTO ` + historyTable(tc) + ` (object_id, content_type, serialized_data,
			object_repr, comment, version_user)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6)
		RETURNING history_id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, h.ObjectID, h.ContentType,
		string(h.SerializedData), h.ObjectRepr, h.Comment, h.VersionUser).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert history for %s %d in %s: %w",
			h.ContentType, h.ObjectID, tc.SchemaName, err)
	}
	h.ID = id
	return id, nil
}

const tenantHistoryColumns = `
	history_id, object_id, content_type, serialized_data, object_repr,
	comment, version_user, date_created
`

func scanTenantHistoryRow(scan func(dest ...any) error) (*domain.TenantHistory, error) {
	var h domain.TenantHistory
	var data string
	err := scan(&h.ID, &h.ObjectID, &h.ContentType, &data, &h.ObjectRepr,
		&h.Comment, &h.VersionUser, &h.DateCreated)
	if err != nil {
		return nil, err
	}
	h.SerializedData = []byte(data)
	return &h, nil
}

func (r *PostgresHistoryRepository) LatestTenantHistory(ctx context.Context, tc domain.TenantContext, objectID int64, contentType string) (*domain.TenantHistory, error) {
	query := `
		SELECT ` + tenantHistoryColumns + `
		FROM ` + historyTable(tc) + `
		WHERE object_id = $1 AND content_type = $2
		ORDER BY date_created DESC, history_id DESC
		LIMIT 1
	`
	h, err := scanTenantHistoryRow(r.db.QueryRowContext(ctx, query, objectID, contentType).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get latest history for %s %d in %s: %w",
			contentType, objectID, tc.SchemaName, err)
	}
	return h, nil
}

func (r *PostgresHistoryRepository) ListTenantHistory(ctx context.Context, tc domain.TenantContext, objectID int64, contentType string) ([]*domain.TenantHistory, error) {
	query := `
		SELECT ` + tenantHistoryColumns + `
		FROM ` + historyTable(tc) + `
		WHERE object_id = $1 AND content_type = $2
		ORDER BY date_created DESC, history_id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, objectID, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for %s %d in %s: %w",
			contentType, objectID, tc.SchemaName, err)
	}
	defer rows.Close()

	var versions []*domain.TenantHistory
	for rows.Next() {
		h, err := scanTenantHistoryRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant history: %w", err)
		}
		versions = append(versions, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenant history: %w", err)
	}
	return versions, nil
}

func (r *PostgresHistoryRepository) DeleteTenantHistory(ctx context.Context, tc domain.TenantContext, objectID int64, contentType string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM `+historyTable(tc)+` WHERE object_id = $1 AND content_type = $2`,
		objectID, contentType)
	if err != nil {
		return fmt.Errorf("failed to delete history for %s %d in %s: %w",
			contentType, objectID, tc.SchemaName, err)
	}
	return nil
}
