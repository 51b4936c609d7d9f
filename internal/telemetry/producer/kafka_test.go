package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-auth/backend/internal/telemetry"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed int
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

var _ Producer = (*KafkaProducer)(nil)

func TestNewKafkaProducer_Disabled(t *testing.T) {
	assert.Nil(t, NewKafkaProducer(nil, "topic"))
	assert.Nil(t, NewKafkaProducer([]string{"localhost:9092"}, ""))

	var p *KafkaProducer
	assert.NoError(t, p.Emit(context.Background(), telemetry.NewEvent(telemetry.EventOTPIssued, "s", "")))
	assert.NoError(t, p.Close())
}

func TestNewKafkaProducer_Enabled(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"}, "portal-auth-events")
	require.NotNil(t, p)
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "portal-auth-events", w.Topic)
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "t"}

	event := telemetry.NewEvent(telemetry.EventLoginSuccess, "id-1", "consultant")
	require.NoError(t, p.Emit(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte("id-1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "login_success", string(msg.Headers[0].Value))

	var decoded telemetry.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, telemetry.EventLoginSuccess, decoded.Type)
	assert.Equal(t, "consultant", decoded.IdentityClass)

	require.NoError(t, p.Emit(context.Background(), nil))
	assert.Len(t, w.msgs, 1)
}

func TestKafkaProducer_EmitError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &KafkaProducer{writer: w, topic: "t"}
	assert.Error(t, p.Emit(context.Background(), telemetry.NewEvent(telemetry.EventOTPIssued, "", "")))
	assert.Nil(t, w.msgs[0].Key)

	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
}
