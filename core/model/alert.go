package model

import (
	"fmt"
	"time"
)

// RiskLevel is the discrete severity bucket derived from a failure
// probability through fixed thresholds.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler so risk levels serialize as
// their lowercase names in JSON payloads.
func (r RiskLevel) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText parses the lowercase name back into a RiskLevel.
func (r *RiskLevel) UnmarshalText(b []byte) error {
	lvl, ok := RiskLevelFromString(string(b))
	if !ok {
		return fmt.Errorf("unknown risk level %q", string(b))
	}
	*r = lvl
	return nil
}

// RiskLevelFromString parses a lowercase risk level name.
func RiskLevelFromString(s string) (RiskLevel, bool) {
	switch s {
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	case "critical":
		return RiskCritical, true
	}
	return RiskLow, false
}

// Alert is the current risk assessment for one vehicle component. A new
// reading recomputes and supersedes the previous alert for the same
// vehicle and component; superseded alerts are retained for audit.
type Alert struct {
	VehicleID      string    `json:"vehicle_id"`
	Component      Component `json:"component"`
	Risk           RiskLevel `json:"risk_level"`
	Probability    float64   `json:"probability"`
	Recommendation string    `json:"recommendation"`
	AutoSchedule   bool      `json:"auto_schedule"`
	Timestamp      time.Time `json:"timestamp"`
}
