package repository

import (
	"context"
	"strings"
	"sync"

	"portal-auth/backend/internal/consultant/domain"
)

// MemoryRepository is an in-process Repository used by tests.
type MemoryRepository struct {
	mu   sync.Mutex
	byID map[string]*domain.Consultant
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Consultant)}
}

// GetByMail returns a copy of the consultant, or nil if not found.
func (r *MemoryRepository) GetByMail(_ context.Context, mail string) (*domain.Consultant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if strings.EqualFold(c.Mail, mail) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

// GetByExternalID returns a copy of the consultant, or nil if not found.
func (r *MemoryRepository) GetByExternalID(_ context.Context, externalID string) (*domain.Consultant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if c.ExternalID == externalID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

// Create stores a copy of c.
func (r *MemoryRepository) Create(_ context.Context, c *domain.Consultant) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byID {
		if strings.EqualFold(e.Mail, c.Mail) || e.ExternalID == c.ExternalID {
			return ErrDuplicate
		}
	}
	cp := *c
	r.byID[c.ID] = &cp
	return nil
}
