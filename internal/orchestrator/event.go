// Package orchestrator coordinates the URL analyzer and the duress detector
// in real time and turns their verdicts into events and alerts.
package orchestrator

import (
	"time"

	"github.com/elder-shield/guardian-engine/internal/analyzer"
	"github.com/elder-shield/guardian-engine/internal/behavior"
)

// EmergencyLevel grades how urgently an event needs attention.
type EmergencyLevel string

const (
	EmergencyNone     EmergencyLevel = "none"
	EmergencyLow      EmergencyLevel = "low"
	EmergencyMedium   EmergencyLevel = "medium"
	EmergencyHigh     EmergencyLevel = "high"
	EmergencyCritical EmergencyLevel = "critical"
)

// rank orders emergency levels for comparisons and the escalation ladder.
var emergencyRank = map[EmergencyLevel]int{
	EmergencyNone:     0,
	EmergencyLow:      1,
	EmergencyMedium:   2,
	EmergencyHigh:     3,
	EmergencyCritical: 4,
}

func (e EmergencyLevel) atLeast(other EmergencyLevel) bool {
	return emergencyRank[e] >= emergencyRank[other]
}

// bump raises the level one step, saturating at critical.
func (e EmergencyLevel) bump() EmergencyLevel {
	switch e {
	case EmergencyNone:
		return EmergencyLow
	case EmergencyLow:
		return EmergencyMedium
	case EmergencyMedium:
		return EmergencyHigh
	default:
		return EmergencyCritical
	}
}

// ThreatEvent is the combined record for one processed message.
type ThreatEvent struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	URL            string            `json:"url,omitempty"`
	Message        string            `json:"message,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Analysis       *analyzer.Result  `json:"analysis,omitempty"`
	Duress         *behavior.Verdict `json:"duress,omitempty"`
	EmergencyLevel EmergencyLevel    `json:"emergency_level"`
	FamilyAlert    bool              `json:"family_alert"`
	ExpiresAt      time.Time         `json:"expires_at"`
}

// AlertKind names the audience and trigger of an alert.
type AlertKind string

const (
	AlertThreatDetected     AlertKind = "threat_detected"
	AlertDuressDetected     AlertKind = "duress_detected"
	AlertElderlyAtRisk      AlertKind = "elderly_at_risk"
	AlertFamilyNotification AlertKind = "family_notification"
)

// Alert is a user-facing or family-facing notification derived from an event.
type Alert struct {
	AlertID      string         `json:"alert_id"`
	EventID      string         `json:"event_id"`
	UserID       string         `json:"user_id"`
	Kind         AlertKind      `json:"kind"`
	Severity     EmergencyLevel `json:"severity"`
	Message      string         `json:"message"`
	ActionItems  []string       `json:"action_items"`
	CreatedAt    time.Time      `json:"created_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Acknowledged bool           `json:"acknowledged"`
}

// Stats is a snapshot of the orchestrator's rolling counters.
type Stats struct {
	MessagesProcessed int64                    `json:"messages_processed"`
	ThreatsDetected   int64                    `json:"threats_detected"`
	DuressDetected    int64                    `json:"duress_detected"`
	FamilyEscalations int64                    `json:"family_escalations"`
	EventsByLevel     map[EmergencyLevel]int64 `json:"events_by_level"`
	HourlyActivity    [24]int64                `json:"hourly_activity"`
	ActiveAlerts      int                      `json:"active_alerts"`
	StoredEvents      int                      `json:"stored_events"`
}
