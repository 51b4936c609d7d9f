package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"portal-auth/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	var meta any
	if len(a.Metadata) > 0 {
		b, err := json.Marshal(a.Metadata)
		if err != nil {
			return err
		}
		meta = b
	}
	ip := sql.NullString{String: a.IP, Valid: a.IP != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, subject, action, resource, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Subject, a.Action, a.Resource, ip, meta, a.CreatedAt)
	return err
}
