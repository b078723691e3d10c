// Package producer defines the interface for publishing security events to a broker (e.g. Kafka).
package producer

import "anomalyguard/backend/internal/telemetry"

// Producer publishes security events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	telemetry.EventEmitter
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
