package notification

import (
	"context"

	"go.uber.org/zap"

	"portal-auth/backend/internal/logger"
)

// LogSender writes messages to the application log instead of sending them.
// For local development only; config refuses it in production.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender returns a LogSender.
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, to string, m Message) error {
	logger.FromContext(ctx, s.log).Info("email (not sent, NOTIFY_MODE=log)",
		zap.String("to", to),
		zap.String("template", m.Template),
		zap.String("subject", m.Subject),
		zap.String("body", m.Body),
	)
	return nil
}
