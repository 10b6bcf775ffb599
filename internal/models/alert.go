package models

import "time"

// AlertState is the lifecycle position of an alert
type AlertState string

const (
	AlertActive       AlertState = "active"
	AlertAcknowledged AlertState = "acknowledged"
	AlertResolved     AlertState = "resolved"
)

// Open reports whether the alert can still be acknowledged or resolved
func (s AlertState) Open() bool {
	return s == AlertActive || s == AlertAcknowledged
}

// ParseAlertState converts a state name to an AlertState
func ParseAlertState(s string) (AlertState, bool) {
	switch AlertState(s) {
	case AlertActive, AlertAcknowledged, AlertResolved:
		return AlertState(s), true
	}
	return "", false
}

// Alert represents a non-normal classification surfaced to an operator
type Alert struct {
	ID              string     `json:"id"`
	ReadingID       int64      `json:"reading_id"` // back-reference only, the reading may be evicted
	Metric          Metric     `json:"metric"`
	Zone            string     `json:"zone"`
	Severity        Status     `json:"severity"`
	Value           float64    `json:"value"`
	Threshold       float64    `json:"threshold"`
	Message         string     `json:"message"`
	Recommendations []string   `json:"recommendations,omitempty"`
	State           AlertState `json:"state"`
	Acknowledged    bool       `json:"acknowledged"`
	CreatedAt       time.Time  `json:"created_at"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}
