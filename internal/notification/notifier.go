package notification

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"portal-auth/backend/internal/logger"
)

// Notifier sends through a Sender with bounded retries and records every outcome.
type Notifier struct {
	sender   Sender
	log      DeliveryLog
	logger   *zap.Logger
	maxTries uint
	initial  time.Duration
}

// NewNotifier returns a Notifier. deliveries may be nil.
func NewNotifier(sender Sender, deliveries DeliveryLog, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		sender:   sender,
		log:      deliveries,
		logger:   log,
		maxTries: 3,
		initial:  200 * time.Millisecond,
	}
}

// Send delivers m to to, retrying transient failures. The delivery is recorded
// whether it succeeded or not; recording failures are only logged.
func (n *Notifier) Send(ctx context.Context, to string, m Message) error {
	attempts := 0
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.initial
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, n.sender.Send(ctx, to, m)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(n.maxTries),
		backoff.WithMaxElapsedTime(5*time.Second),
	)

	log := logger.FromContext(ctx, n.logger)
	d := Delivery{
		Template:  m.Template,
		Recipient: to,
		Status:    StatusSent,
		Retries:   attempts - 1,
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		d.Status = StatusFailed
		d.Error = err.Error()
		log.Warn("email delivery failed",
			zap.String("template", m.Template),
			zap.String("to", logger.MaskEmail(to)),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
	}
	if n.log != nil {
		if recErr := n.log.Record(context.WithoutCancel(ctx), d); recErr != nil {
			log.Warn("email delivery log write failed", zap.Error(recErr))
		}
	}
	return err
}
