package telemetry

import (
	"encoding/json"
	"time"
)

// Source identifies the component that produced an event.
const SourceLogin = "login"

// SecurityEvent is one login-flow event published to the telemetry pipeline.
// EventType uses the audit action names (login_success, challenge_issued, ...).
type SecurityEvent struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Decision  string          `json:"decision,omitempty"`
	RiskScore float64         `json:"riskScore"`
	Reasons   []string        `json:"reasons,omitempty"`
	IP        string          `json:"ip,omitempty"`
	Country   string          `json:"country,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
