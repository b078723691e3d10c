package otel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"

	"anomalyguard/backend/internal/telemetry"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec   otellog.Record
	calls int
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
	r.calls++
}

func attrs(rec otellog.Record) map[string]otellog.Value {
	out := make(map[string]otellog.Value)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value
		return true
	})
	return out
}

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if err := em.Emit(context.Background(), &telemetry.SecurityEvent{EventType: "login_success"}); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
}

func TestEmit_NilEvent(t *testing.T) {
	c := &recordCapture{}
	if err := NewEventEmitterWithLogger(c).Emit(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if c.calls != 0 {
		t.Error("nil event should not be emitted")
	}
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	c := &recordCapture{}
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	event := &telemetry.SecurityEvent{
		UserID:    "u-1",
		EventType: "challenge_issued",
		Source:    telemetry.SourceLogin,
		Decision:  "CHALLENGE",
		RiskScore: 0.85,
		Reasons:   []string{"new_country", "new_device"},
		IP:        "203.0.113.9",
		Country:   "DE",
		Metadata:  json.RawMessage(`{"expiresInMinutes":30}`),
		CreatedAt: at,
	}
	if err := NewEventEmitterWithLogger(c).Emit(context.Background(), event); err != nil {
		t.Fatal(err)
	}
	rec := c.rec
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v", rec.Timestamp())
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want WARN for a challenge", rec.Severity())
	}
	if string(rec.Body().AsBytes()) != `{"expiresInMinutes":30}` {
		t.Errorf("body = %q", rec.Body().AsBytes())
	}
	a := attrs(rec)
	for k, want := range map[string]string{
		"user_id": "u-1", "event_type": "challenge_issued", "source": "login",
		"decision": "CHALLENGE", "ip": "203.0.113.9", "country": "DE",
	} {
		if got := a[k].AsString(); got != want {
			t.Errorf("attr %q = %q, want %q", k, got, want)
		}
	}
	if a["risk_score"].AsFloat64() != 0.85 {
		t.Errorf("risk_score = %v", a["risk_score"])
	}
	if reasons := a["reasons"].AsSlice(); len(reasons) != 2 || reasons[1].AsString() != "new_device" {
		t.Errorf("reasons = %v", reasons)
	}
}

func TestEmit_DefaultsAndOmissions(t *testing.T) {
	c := &recordCapture{}
	before := time.Now().Add(-time.Second)
	_ = NewEventEmitterWithLogger(c).Emit(context.Background(), &telemetry.SecurityEvent{EventType: "login_success", Decision: "ALLOW"})

	if c.rec.Timestamp().Before(before) {
		t.Error("zero CreatedAt should default to now")
	}
	if !c.rec.Body().Empty() {
		t.Error("body should be empty without metadata")
	}
	if c.rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want INFO", c.rec.Severity())
	}
	a := attrs(c.rec)
	if _, ok := a["user_id"]; ok {
		t.Error("empty user_id should be omitted")
	}
	if _, ok := a["reasons"]; ok {
		t.Error("empty reasons should be omitted")
	}
}
