package prediction

import (
	"fmt"
	"time"

	"fleetsense/core/model"
)

// Config tunes the failure probability model.
type Config struct {
	// AnomalyBoost multiplies the baseline probability when the paired
	// anomaly flag is set. 1 disables the boost.
	AnomalyBoost float64 `json:"anomaly_boost"`
}

// SetDefaults applies the reference tuning.
func (c *Config) SetDefaults() {
	if c.AnomalyBoost == 0 {
		c.AnomalyBoost = 1.25
	}
}

// Validate checks the tuning once at startup.
func (c Config) Validate() error {
	if c.AnomalyBoost < 1 {
		return fmt.Errorf("prediction: anomaly_boost must be >= 1")
	}
	return nil
}

// StalePairingError reports a health score and anomaly flag from different
// epochs. It is an internal invariant violation: the reading is reprocessed
// from the scorer forward rather than surfaced to the caller.
type StalePairingError struct {
	VehicleID string
	Health    time.Time
	Anomaly   time.Time
}

func (e *StalePairingError) Error() string {
	return fmt.Sprintf("stale pairing for %s: health %s vs anomaly %s",
		e.VehicleID, e.Health.Format(time.RFC3339Nano), e.Anomaly.Format(time.RFC3339Nano))
}

// Predictor derives per-component failure probabilities from a health score
// and the anomaly flag of the same reading.
type Predictor struct {
	cfg Config
}

// NewPredictor validates the configuration and returns a Predictor.
func NewPredictor(cfg Config) (*Predictor, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Predictor{cfg: cfg}, nil
}

// Predict combines the two inputs. The baseline probability decreases
// monotonically with health; an anomalous reading boosts every component by
// the configured factor. Output is clamped to [0,1]. Inputs from different
// vehicles or timestamps fail with StalePairingError.
func (p *Predictor) Predict(h model.HealthScore, a model.AnomalyFlag) (model.FailurePrediction, error) {
	if h.VehicleID != a.VehicleID || !h.Timestamp.Equal(a.Timestamp) {
		return model.FailurePrediction{}, &StalePairingError{
			VehicleID: h.VehicleID, Health: h.Timestamp, Anomaly: a.Timestamp,
		}
	}

	pred := model.FailurePrediction{
		VehicleID:     h.VehicleID,
		Timestamp:     h.Timestamp,
		Probabilities: make(map[model.Component]float64, len(h.Components)),
		Timeline:      make(map[model.Component]model.FailureEstimate, len(h.Components)),
	}
	for comp, cs := range h.Components {
		prob := (100 - cs.Score) / 100
		if a.Anomalous {
			prob *= p.cfg.AnomalyBoost
		}
		if prob < 0 {
			prob = 0
		}
		if prob > 1 {
			prob = 1
		}
		pred.Probabilities[comp] = prob
		pred.Timeline[comp] = estimate(cs.Score)
	}
	return pred, nil
}

// estimate buckets a health score into a coarse days-until-failure
// projection.
func estimate(score float64) model.FailureEstimate {
	switch {
	case score >= 80:
		return model.FailureEstimate{Status: "healthy", Confidence: "high"}
	case score >= 50:
		days := int(180 * (100 - score) / 100)
		return model.FailureEstimate{DaysUntilFailure: &days, Status: "monitor", Confidence: "medium"}
	case score >= 30:
		days := int(score)
		return model.FailureEstimate{DaysUntilFailure: &days, Status: "warning", Confidence: "high"}
	default:
		days := 0
		return model.FailureEstimate{
			DaysUntilFailure: &days,
			Status:           "critical",
			Confidence:       "high",
			ImmediateAction:  true,
		}
	}
}
