package repository

import (
	"context"
	"errors"
	"time"

	"portal-auth/backend/internal/customer/domain"
	"portal-auth/backend/internal/mfa"
)

var (
	// ErrNotFound is returned by methods that require an existing customer.
	ErrNotFound = errors.New("customer not found")
	// ErrDuplicateEmail is returned by Create when the email is already registered.
	ErrDuplicateEmail = errors.New("customer email already exists")
)

// Repository defines persistence for customers.
type Repository interface {
	// GetByEmail returns the customer, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	Create(ctx context.Context, c *domain.Customer) error
	// UpdateFields applies a partial update. Returns ErrNotFound when no row matches.
	UpdateFields(ctx context.Context, email string, f domain.Fields) error
	// MarkEmailVerified sets email_verified and moves UNVERIFIED to PENDING when tokenHash
	// matches and has not expired at now. Returns false when nothing changed.
	MarkEmailVerified(ctx context.Context, email, tokenHash string, now time.Time) (bool, error)
	// Ping checks the backing store.
	Ping(ctx context.Context) error

	mfa.EnrollmentRepository
}
