// Package devotp keeps the last email sent to each recipient so local clients can read
// login codes without a mail server. Only wired when DEV_OTP_ENABLED is set outside production.
package devotp

import (
	"context"
	"strings"
	"sync"
	"time"

	"portal-auth/backend/internal/notification"
)

// Store holds the most recent message per recipient.
type Store interface {
	// Put stores m for recipient until expiresAt, replacing any earlier message.
	Put(ctx context.Context, recipient string, m notification.Message, expiresAt time.Time)
	// Get returns the message for recipient if present and not expired.
	Get(ctx context.Context, recipient string) (notification.Message, bool)
}

type entry struct {
	msg       notification.Message
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory mailbox.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

func key(recipient string) string {
	return strings.ToLower(strings.TrimSpace(recipient))
}

// Put stores m for recipient until expiresAt.
func (s *MemoryStore) Put(_ context.Context, recipient string, m notification.Message, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key(recipient)] = entry{msg: m, expiresAt: expiresAt}
}

// Get returns the message for recipient if present and not expired.
func (s *MemoryStore) Get(_ context.Context, recipient string) (notification.Message, bool) {
	k := key(recipient)
	s.mu.RLock()
	e, ok := s.m[k]
	s.mu.RUnlock()
	if !ok {
		return notification.Message{}, false
	}
	now := s.nowF()
	if e.expiresAt.After(now) {
		return e.msg, true
	}
	// A Put may have landed since the read lock was released.
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.m[k]
	if !ok {
		return notification.Message{}, false
	}
	if cur.expiresAt.After(now) {
		return cur.msg, true
	}
	delete(s.m, k)
	return notification.Message{}, false
}

// CaptureSender records every successfully sent message in a Store.
type CaptureSender struct {
	next  notification.Sender
	store Store
	ttl   time.Duration
	nowF  func() time.Time
}

// NewCaptureSender wraps next. Messages stay readable for ttl.
func NewCaptureSender(next notification.Sender, store Store, ttl time.Duration) *CaptureSender {
	return &CaptureSender{next: next, store: store, ttl: ttl, nowF: time.Now}
}

// Send implements notification.Sender.
func (c *CaptureSender) Send(ctx context.Context, to string, m notification.Message) error {
	if err := c.next.Send(ctx, to, m); err != nil {
		return err
	}
	c.store.Put(ctx, to, m, c.nowF().Add(c.ttl))
	return nil
}
