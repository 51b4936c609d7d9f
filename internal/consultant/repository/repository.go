package repository

import (
	"context"
	"errors"

	"portal-auth/backend/internal/consultant/domain"
)

// ErrDuplicate is returned by Create when the mail or external id is already bound.
var ErrDuplicate = errors.New("consultant already exists")

// Repository defines persistence for consultants.
type Repository interface {
	// GetByMail returns the consultant, or nil if not found.
	GetByMail(ctx context.Context, mail string) (*domain.Consultant, error)
	// GetByExternalID returns the consultant, or nil if not found.
	GetByExternalID(ctx context.Context, externalID string) (*domain.Consultant, error)
	Create(ctx context.Context, c *domain.Consultant) error
}
