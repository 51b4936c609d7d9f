package credstore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"portal-auth/backend/internal/mfa"
)

type otpEntry struct {
	hash      string
	expiresAt time.Time
}

type pendingEntry struct {
	email     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store. All per-email operations run under one mutex.
type MemoryStore struct {
	mu      sync.Mutex
	otps    map[string]otpEntry
	pending map[string]pendingEntry
	steps   map[string]time.Time
	opts    Options
	nowF    func() time.Time
}

// NewMemoryStore returns a new in-memory store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		otps:    make(map[string]otpEntry),
		pending: make(map[string]pendingEntry),
		steps:   make(map[string]time.Time),
		opts:    opts.withDefaults(),
		nowF:    time.Now,
	}
}

// IssueOTP generates and stores a new OTP for email.
func (s *MemoryStore) IssueOTP(ctx context.Context, email string) (string, error) {
	code, err := s.opts.Generate()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[email] = otpEntry{hash: mfa.HashOTP(code), expiresAt: s.nowF().Add(s.opts.OTPTTL)}
	return code, nil
}

// ValidateOTP checks and, on success, consumes the OTP for email.
func (s *MemoryStore) ValidateOTP(ctx context.Context, email, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.otps[email]
	if !ok {
		return false, nil
	}
	if !e.expiresAt.After(s.nowF()) {
		delete(s.otps, email)
		return false, nil
	}
	if !mfa.OTPEqual(code, e.hash) {
		return false, nil
	}
	delete(s.otps, email)
	return true, nil
}

// RegisterPendingSSO stores a pending SSO request for email.
func (s *MemoryStore) RegisterPendingSSO(ctx context.Context, email string) (string, error) {
	id := newRequestID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id] = pendingEntry{email: email, expiresAt: s.nowF().Add(s.opts.SSOTTL)}
	return id, nil
}

// ResolvePendingSSO removes and returns the pending request.
func (s *MemoryStore) ResolvePendingSSO(ctx context.Context, requestID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[requestID]
	if !ok {
		return "", ErrNotFound
	}
	delete(s.pending, requestID)
	if !e.expiresAt.After(s.nowF()) {
		return "", ErrNotFound
	}
	return e.email, nil
}

// ClaimTOTPStep records step for email unless already recorded.
func (s *MemoryStore) ClaimTOTPStep(ctx context.Context, email string, step int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimLocked(email, step, s.nowF()), nil
}

// RedeemOTPWithStep validates the OTP and claims step under one lock.
func (s *MemoryStore) RedeemOTPWithStep(ctx context.Context, email, code string, step int64) (Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowF()
	e, ok := s.otps[email]
	if !ok || !e.expiresAt.After(now) || !mfa.OTPEqual(code, e.hash) {
		return RedeemInvalidOTP, nil
	}
	if !s.claimLocked(email, step, now) {
		return RedeemStepUsed, nil
	}
	delete(s.otps, email)
	return Redeemed, nil
}

func (s *MemoryStore) claimLocked(email string, step int64, now time.Time) bool {
	key := email + "|" + strconv.FormatInt(step, 10)
	if exp, ok := s.steps[key]; ok && exp.After(now) {
		return false
	}
	s.steps[key] = now.Add(stepClaimTTL)
	return true
}

// Sweep drops expired entries.
func (s *MemoryStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowF()
	for k, e := range s.otps {
		if !e.expiresAt.After(now) {
			delete(s.otps, k)
		}
	}
	for k, e := range s.pending {
		if !e.expiresAt.After(now) {
			delete(s.pending, k)
		}
	}
	for k, exp := range s.steps {
		if !exp.After(now) {
			delete(s.steps, k)
		}
	}
}

// Run sweeps expired entries every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Len returns the number of live OTPs, pending SSO requests and claimed steps.
func (s *MemoryStore) Len() (otps, pending, steps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.otps), len(s.pending), len(s.steps)
}
