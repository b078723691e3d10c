package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*SecurityEvent
	emitErr error
	delay   time.Duration
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *SecurityEvent) error {
	defer func() {
		if m.done != nil {
			m.done <- struct{}{}
		}
	}()
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func waitDone(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("emit did not complete")
	}
}

func TestEmitAsync_NilEmitterAndEvent(t *testing.T) {
	EmitAsync(nil, context.Background(), &SecurityEvent{EventType: "login_success"})
	m := &mockEventEmitter{}
	EmitAsync(m, context.Background(), nil)
	time.Sleep(20 * time.Millisecond)
	if len(m.getEvents()) != 0 {
		t.Error("nil event should not be emitted")
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	m := &mockEventEmitter{done: make(chan struct{}, 1)}
	EmitAsync(m, context.Background(), &SecurityEvent{EventType: "challenge_issued", UserID: "u-1"})
	waitDone(t, m.done)

	events := m.getEvents()
	if len(events) != 1 || events[0].UserID != "u-1" {
		t.Errorf("events = %+v", events)
	}
}

func TestEmitAsync_SurvivesCanceledRequest(t *testing.T) {
	m := &mockEventEmitter{done: make(chan struct{}, 1), delay: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	EmitAsync(m, ctx, &SecurityEvent{EventType: "login_flagged"})
	cancel()
	waitDone(t, m.done)

	if len(m.getEvents()) != 1 {
		t.Error("request cancellation should not abort the emit")
	}
}

func TestEmitAsync_ErrorIsLoggedOnly(t *testing.T) {
	m := &mockEventEmitter{done: make(chan struct{}, 1), emitErr: errors.New("kafka down")}
	EmitAsync(m, context.Background(), &SecurityEvent{EventType: "otp_invalid"})
	waitDone(t, m.done)
}

func TestMultiEmitter(t *testing.T) {
	a := &mockEventEmitter{}
	b := &mockEventEmitter{emitErr: errors.New("b failed")}
	multi := MultiEmitter{a, nil, b}

	err := multi.Emit(context.Background(), &SecurityEvent{EventType: "otp_verified"})
	if err == nil || err.Error() != "b failed" {
		t.Errorf("err = %v", err)
	}
	if len(a.getEvents()) != 1 || len(b.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
	if err := (MultiEmitter{}).Emit(context.Background(), &SecurityEvent{}); err != nil {
		t.Errorf("empty MultiEmitter: %v", err)
	}
}
