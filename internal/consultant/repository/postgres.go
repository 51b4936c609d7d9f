package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"portal-auth/backend/internal/consultant/domain"
)

const consultantColumns = `id, external_id, display_name, mail, coalesce(mobile_phone, ''), role, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a consultant repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByMail returns the consultant with the given mail, or nil if not found.
func (r *PostgresRepository) GetByMail(ctx context.Context, mail string) (*domain.Consultant, error) {
	return r.get(ctx, `SELECT `+consultantColumns+` FROM consultants WHERE lower(mail) = lower($1)`, mail)
}

// GetByExternalID returns the consultant with the given IdP subject, or nil if not found.
func (r *PostgresRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Consultant, error) {
	return r.get(ctx, `SELECT `+consultantColumns+` FROM consultants WHERE external_id = $1`, externalID)
}

func (r *PostgresRepository) get(ctx context.Context, q, arg string) (*domain.Consultant, error) {
	var c domain.Consultant
	var role string
	err := r.db.QueryRowContext(ctx, q, arg).Scan(&c.ID, &c.ExternalID, &c.DisplayName, &c.Mail, &c.MobilePhone, &role, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Role = domain.Role(role)
	return &c, nil
}

// Create persists the consultant. Unique violations on mail or external id map to ErrDuplicate.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Consultant) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO consultants (id, external_id, display_name, mail, mobile_phone, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.ExternalID, c.DisplayName, c.Mail, sql.NullString{String: c.MobilePhone, Valid: c.MobilePhone != ""},
		string(c.Role), c.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
