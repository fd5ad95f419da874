package model

import "time"

// ComponentScore is a 0-100 health score for a single component. Stale marks
// a score carried forward from an earlier reading because the current one
// did not include the backing metric.
type ComponentScore struct {
	Score float64 `json:"score"`
	Stale bool    `json:"stale,omitempty"`
}

// HealthScore is the per-component and overall health assessment derived
// from one sensor reading.
type HealthScore struct {
	VehicleID  string                       `json:"vehicle_id"`
	Timestamp  time.Time                    `json:"timestamp"`
	Components map[Component]ComponentScore `json:"components"`
	// Overall is the fixed-weight average of the component scores. Weights
	// are configuration and always sum to 1; stale components keep their
	// weight so staleness is surfaced, never hidden by renormalization.
	Overall float64 `json:"overall"`
}

// Stale reports whether any component score was carried forward.
func (h HealthScore) Stale() bool {
	for _, cs := range h.Components {
		if cs.Stale {
			return true
		}
	}
	return false
}

// AnomalyFlag is the statistical outlier verdict for one reading. It is
// produced independently of the health score and never mutates it.
type AnomalyFlag struct {
	VehicleID string    `json:"vehicle_id"`
	Timestamp time.Time `json:"timestamp"`
	Anomalous bool      `json:"is_anomalous"`
	Score     float64   `json:"anomaly_score"`
	// InsufficientHistory distinguishes "cannot judge yet" from a genuine
	// negative verdict during the detector's cold start.
	InsufficientHistory bool `json:"insufficient_history,omitempty"`
}
