package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"anomalyguard/backend/internal/telemetry"
)

const instrumentationName = "anomalyguard.security"

// recordEmitter is the part of otellog.Logger the adapter needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return telemetry.Nop{}
	}
	return NewEventEmitterWithLogger(provider.Logger(instrumentationName))
}

// NewEventEmitterWithLogger wraps an existing logger.
func NewEventEmitterWithLogger(l recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: l}
}

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record. Challenges and failures are logged at WARN.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.SecurityEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetSeverity(severity(event))
	rec.SetEventName(event.EventType)
	if len(event.Metadata) > 0 {
		rec.SetBody(otellog.BytesValue(event.Metadata))
	}

	attrs := []otellog.KeyValue{otellog.Float64("risk_score", event.RiskScore)}
	for _, kv := range []struct{ k, v string }{
		{"user_id", event.UserID},
		{"event_type", event.EventType},
		{"source", event.Source},
		{"decision", event.Decision},
		{"ip", event.IP},
		{"country", event.Country},
	} {
		if kv.v != "" {
			attrs = append(attrs, otellog.String(kv.k, kv.v))
		}
	}
	if len(event.Reasons) > 0 {
		vals := make([]otellog.Value, len(event.Reasons))
		for i, r := range event.Reasons {
			vals[i] = otellog.StringValue(r)
		}
		attrs = append(attrs, otellog.Slice("reasons", vals...))
	}
	rec.AddAttributes(attrs...)
	e.logger.Emit(ctx, rec)
	return nil
}

func severity(event *telemetry.SecurityEvent) otellog.Severity {
	switch event.EventType {
	case "login_failure", "otp_invalid", "otp_expired", "notification_failed":
		return otellog.SeverityWarn
	}
	if event.Decision == "CHALLENGE" || event.Decision == "FLAG" {
		return otellog.SeverityWarn
	}
	return otellog.SeverityInfo
}
