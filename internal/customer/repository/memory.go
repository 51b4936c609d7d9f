package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"portal-auth/backend/internal/customer/domain"
	"portal-auth/backend/internal/mfa"
)

// MemoryRepository is an in-process Repository used by tests and local tooling.
type MemoryRepository struct {
	mu   sync.Mutex
	byID map[string]*domain.Customer
	now  func() time.Time
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Customer), now: time.Now}
}

func (r *MemoryRepository) find(email string) *domain.Customer {
	for _, c := range r.byID {
		if strings.EqualFold(c.Email, email) {
			return c
		}
	}
	return nil
}

// GetByEmail returns a copy of the customer, or nil if not found.
func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(email)
	if c == nil {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// Create stores a copy of c.
func (r *MemoryRepository) Create(_ context.Context, c *domain.Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(c.Email) != nil {
		return ErrDuplicateEmail
	}
	cp := *c
	r.byID[c.ID] = &cp
	return nil
}

// UpdateFields applies f.
func (r *MemoryRepository) UpdateFields(_ context.Context, email string, f domain.Fields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(email)
	if c == nil {
		return ErrNotFound
	}
	if f.Status != nil {
		c.Status = *f.Status
	}
	if f.RejectionReason != nil {
		c.RejectionReason = *f.RejectionReason
	}
	if f.Name != nil {
		c.Name = *f.Name
	}
	if f.Contact != nil {
		c.Contact = *f.Contact
	}
	if f.CompanyName != nil {
		c.CompanyName = *f.CompanyName
	}
	c.UpdatedAt = r.now().UTC()
	return nil
}

// MarkEmailVerified consumes the verification token.
func (r *MemoryRepository) MarkEmailVerified(_ context.Context, email, tokenHash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(email)
	if c == nil || c.VerificationTokenHash == "" || c.VerificationTokenHash != tokenHash || !c.VerificationTokenExpiry.After(now) {
		return false, nil
	}
	c.EmailVerified = true
	if c.Status == domain.StatusUnverified {
		c.Status = domain.StatusPending
	}
	c.VerificationTokenHash = ""
	c.VerificationTokenExpiry = time.Time{}
	c.UpdatedAt = now
	return true, nil
}

// Ping always succeeds.
func (r *MemoryRepository) Ping(context.Context) error { return nil }

// GetEnrollment implements mfa.EnrollmentRepository.
func (r *MemoryRepository) GetEnrollment(_ context.Context, email string) (*mfa.EnrollmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(email)
	if c == nil {
		return nil, ErrNotFound
	}
	return &mfa.EnrollmentRecord{Enabled: c.MFAEnabled, SealedSecret: c.MFASecret}, nil
}

// SetPendingSecret stores sealed while MFA is not yet enabled.
func (r *MemoryRepository) SetPendingSecret(_ context.Context, email, sealed string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(email)
	if c == nil || c.MFAEnabled {
		return false, nil
	}
	c.MFASecret = sealed
	return true, nil
}

// EnableMFA flips the flag only if the stored secret equals sealed.
func (r *MemoryRepository) EnableMFA(_ context.Context, email, sealed string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(email)
	if c == nil || c.MFAEnabled || c.MFASecret != sealed {
		return false, nil
	}
	c.MFAEnabled = true
	return true, nil
}
