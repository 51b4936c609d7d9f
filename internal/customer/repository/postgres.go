package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"portal-auth/backend/internal/customer/domain"
	"portal-auth/backend/internal/mfa"
)

const uniqueViolation = "23505"

const customerColumns = `id, email, coalesce(name, ''), coalesce(contact, ''), coalesce(company_name, ''),
	coalesce(address, ''), coalesce(city, ''), coalesce(state, ''), coalesce(country, ''), status,
	coalesce(rejection_reason, ''), email_verified, coalesce(verification_token_hash, ''),
	verification_token_expiry, mfa_enabled, coalesce(mfa_secret, ''), created_at, updated_at`

type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository returns a customer repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// GetByEmail returns the customer with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE lower(email) = lower($1)`, email)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// Create persists the customer. The customer must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var expiry sql.NullTime
	if !c.VerificationTokenExpiry.IsZero() {
		expiry = sql.NullTime{Time: c.VerificationTokenExpiry, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO customers (
		id, email, name, contact, company_name, address, city, state, country, status,
		email_verified, verification_token_hash, verification_token_expiry, mfa_enabled, mfa_secret,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		c.ID, c.Email, nullString(c.Name), nullString(c.Contact), nullString(c.CompanyName),
		nullString(c.Address), nullString(c.City), nullString(c.State), nullString(c.Country), string(c.Status),
		c.EmailVerified, nullString(c.VerificationTokenHash), expiry, c.MFAEnabled, nullString(c.MFASecret),
		c.CreatedAt, c.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

// UpdateFields applies f to the customer with email.
func (r *PostgresRepository) UpdateFields(ctx context.Context, email string, f domain.Fields) error {
	if f.Empty() {
		return nil
	}
	sets := []string{}
	args := []interface{}{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.Status != nil {
		if !f.Status.Valid() {
			return errors.New("unknown customer status")
		}
		add("status", string(*f.Status))
	}
	if f.RejectionReason != nil {
		add("rejection_reason", nullString(*f.RejectionReason))
	}
	if f.Name != nil {
		add("name", nullString(*f.Name))
	}
	if f.Contact != nil {
		add("contact", nullString(*f.Contact))
	}
	if f.CompanyName != nil {
		add("company_name", nullString(*f.CompanyName))
	}
	add("updated_at", r.now().UTC())
	args = append(args, email)
	q := fmt.Sprintf("UPDATE customers SET %s WHERE lower(email) = lower($%d)", strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkEmailVerified consumes the verification token.
func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, email, tokenHash string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE customers
		SET email_verified = TRUE,
			status = CASE WHEN status = 'UNVERIFIED' THEN 'PENDING'::customer_status ELSE status END,
			verification_token_hash = NULL,
			verification_token_expiry = NULL,
			updated_at = $3
		WHERE lower(email) = lower($1)
			AND verification_token_hash = $2
			AND verification_token_expiry > $3`,
		email, tokenHash, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Ping checks the database connection.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetEnrollment implements mfa.EnrollmentRepository.
func (r *PostgresRepository) GetEnrollment(ctx context.Context, email string) (*mfa.EnrollmentRecord, error) {
	var rec mfa.EnrollmentRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT mfa_enabled, coalesce(mfa_secret, '') FROM customers WHERE lower(email) = lower($1)`, email,
	).Scan(&rec.Enabled, &rec.SealedSecret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SetPendingSecret stores sealed while MFA is not yet enabled.
func (r *PostgresRepository) SetPendingSecret(ctx context.Context, email, sealed string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE customers SET mfa_secret = $2, updated_at = $3
		WHERE lower(email) = lower($1) AND mfa_enabled = FALSE`, email, sealed, r.now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// EnableMFA flips mfa_enabled only if the secret is still the one that was validated.
func (r *PostgresRepository) EnableMFA(ctx context.Context, email, sealed string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE customers SET mfa_enabled = TRUE, updated_at = $3
		WHERE lower(email) = lower($1) AND mfa_enabled = FALSE AND mfa_secret = $2`, email, sealed, r.now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var c domain.Customer
	var status string
	var expiry sql.NullTime
	err := row.Scan(&c.ID, &c.Email, &c.Name, &c.Contact, &c.CompanyName,
		&c.Address, &c.City, &c.State, &c.Country, &status,
		&c.RejectionReason, &c.EmailVerified, &c.VerificationTokenHash,
		&expiry, &c.MFAEnabled, &c.MFASecret, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = domain.Status(status)
	if expiry.Valid {
		c.VerificationTokenExpiry = expiry.Time
	}
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
