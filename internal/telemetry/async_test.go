package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"portal-auth/backend/internal/logger"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*Event
	ctxErrs []error
	emitErr error
	done    chan struct{}
}

func newMockEmitter() *mockEventEmitter {
	return &mockEventEmitter{done: make(chan struct{}, 16)}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	m.mu.Unlock()
	m.done <- struct{}{}
	return m.emitErr
}

func (m *mockEventEmitter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit did not run")
	}
}

func TestEmitAsync_NilEmitterOrEvent(t *testing.T) {
	// Should not panic or start goroutines.
	EmitAsync(nil, context.Background(), NewEvent(EventOTPIssued, "s", "customer"))
	m := newMockEmitter()
	EmitAsync(m, context.Background(), nil)
	select {
	case <-m.done:
		t.Fatal("nil event should not be emitted")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitAsync_SurvivesCancelledRequest(t *testing.T) {
	m := newMockEmitter()
	ctx, cancel := context.WithCancel(logger.WithRequestID(context.Background(), "req-7"))
	cancel()

	EmitAsync(m, ctx, NewEvent(EventLoginSuccess, "id-1", "consultant"))
	m.wait(t)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctxErrs[0] != nil {
		t.Errorf("emit context should not inherit cancellation, got %v", m.ctxErrs[0])
	}
	if m.events[0].RequestID != "req-7" {
		t.Errorf("RequestID = %q, want req-7", m.events[0].RequestID)
	}
}

func TestEmitAsync_ErrorIsSwallowed(t *testing.T) {
	m := newMockEmitter()
	m.emitErr = errors.New("broker down")
	EmitAsync(m, context.Background(), NewEvent(EventLoginFailure, "s", ""))
	m.wait(t)
}

func TestFanout(t *testing.T) {
	a, b := newMockEmitter(), newMockEmitter()
	b.emitErr = errors.New("b failed")
	f := Fanout{a, nil, b}

	err := f.Emit(context.Background(), NewEvent(EventSSOCompleted, "id-1", "consultant"))
	if err == nil || err.Error() != "b failed" {
		t.Fatalf("Fanout.Emit err = %v, want b failed", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("every emitter should receive the event: a=%d b=%d", len(a.events), len(b.events))
	}
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(EventCustomerSignup, "a***@shop.example", "customer")
	if e.Source != SourceAPI || e.CreatedAt.IsZero() || e.CreatedAt.Location() != time.UTC {
		t.Errorf("NewEvent = %+v", e)
	}
}
