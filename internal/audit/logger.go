package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"portal-auth/backend/internal/audit/domain"
	auditrepo "portal-auth/backend/internal/audit/repository"
	"portal-auth/backend/internal/logger"
)

// UnknownSubject is recorded for events that carry no identity (e.g. an ACS post with a forged request id).
const UnknownSubject = "_unknown"

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

type ipKey struct{}

// WithClientIP returns a context carrying the client IP for audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// ClientIP is the default IPExtractor; it reads the value stored by WithClientIP.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ipKey{}).(string); ok {
		return ip
	}
	return ""
}

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, subject, action, resource string, metadata map[string]string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         *zap.Logger
	now         func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, log: log, now: time.Now}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, subject, action, resource string, metadata map[string]string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := ""
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if ip == "" {
		ip = "unknown"
	}
	if subject == "" {
		subject = UnknownSubject
	}
	entry := &domain.AuditLog{
		ID:        uuid.NewString(),
		Subject:   subject,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	// The write outlives a cancelled request so the trail is not lost on client disconnect.
	if err := l.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		logger.FromContext(ctx, l.log).Warn("audit: failed to log event",
			zap.String("action", action),
			zap.String("resource", resource),
			zap.Error(err))
	}
}
