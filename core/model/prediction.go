package model

import "time"

// FailurePrediction holds per-component failure probabilities derived from a
// health score and anomaly flag sharing the same timestamp.
type FailurePrediction struct {
	VehicleID     string                        `json:"vehicle_id"`
	Timestamp     time.Time                     `json:"timestamp"`
	Probabilities map[Component]float64         `json:"probabilities"`
	Timeline      map[Component]FailureEstimate `json:"timeline"`
}

// FailureEstimate is a coarse days-until-failure projection for a component.
type FailureEstimate struct {
	// DaysUntilFailure is nil while the component is healthy.
	DaysUntilFailure *int   `json:"days_until_failure"`
	Status           string `json:"status"`
	Confidence       string `json:"confidence"`
	ImmediateAction  bool   `json:"immediate_action_required,omitempty"`
}
