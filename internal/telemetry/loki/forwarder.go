package loki

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const pushTimeout = 10 * time.Second

// MessageReader is the subset of *kafka.Reader the Forwarder needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type eventPusher interface {
	PushEventJSON(ctx context.Context, rawJSON []byte) error
}

// Forwarder copies auth events from a Kafka topic into Loki. Push failures are
// logged and the message is skipped; the reader's group commit still advances.
type Forwarder struct {
	reader MessageReader
	client eventPusher
	log    *zap.Logger
}

// NewForwarder returns a Forwarder.
func NewForwarder(reader MessageReader, client *Client, log *zap.Logger) *Forwarder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Forwarder{reader: reader, client: client, log: log}
}

// Run forwards messages until ctx is cancelled.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		msg, err := f.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			f.log.Warn("kafka read failed", zap.Error(err))
			continue
		}
		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := f.client.PushEventJSON(pushCtx, msg.Value); err != nil {
			f.log.Warn("loki push failed",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
		cancel()
	}
}
