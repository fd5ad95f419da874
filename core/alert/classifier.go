package alert

import (
	"fmt"
	"sort"

	"fleetsense/core/model"
)

// Config defines the severity thresholds and auto-scheduling policy.
// Thresholds are per-deployment configuration; the recommendation texts are
// a fixed table, not configuration.
type Config struct {
	// MediumThreshold, HighThreshold and CriticalThreshold bucket a failure
	// probability into a risk level. They must be strictly increasing
	// within (0,1].
	MediumThreshold   float64 `json:"medium_threshold"`
	HighThreshold     float64 `json:"high_threshold"`
	CriticalThreshold float64 `json:"critical_threshold"`
	// AutoScheduleOnHigh extends automatic booking to high-risk alerts.
	// Critical alerts always auto-schedule.
	AutoScheduleOnHigh bool `json:"auto_schedule_on_high"`
}

// SetDefaults applies the reference thresholds.
func (c *Config) SetDefaults() {
	if c.MediumThreshold == 0 {
		c.MediumThreshold = 0.2
	}
	if c.HighThreshold == 0 {
		c.HighThreshold = 0.5
	}
	if c.CriticalThreshold == 0 {
		c.CriticalThreshold = 0.8
	}
}

// Validate checks the threshold ordering once at startup.
func (c Config) Validate() error {
	if c.MediumThreshold <= 0 || c.MediumThreshold >= c.HighThreshold {
		return fmt.Errorf("alerts: medium_threshold %v must be in (0, high_threshold)", c.MediumThreshold)
	}
	if c.HighThreshold >= c.CriticalThreshold {
		return fmt.Errorf("alerts: high_threshold %v must be below critical_threshold %v", c.HighThreshold, c.CriticalThreshold)
	}
	if c.CriticalThreshold > 1 {
		return fmt.Errorf("alerts: critical_threshold %v above 1", c.CriticalThreshold)
	}
	return nil
}

// recommendations is the fixed per-component, per-risk-level action table.
var recommendations = map[model.Component]map[model.RiskLevel]string{
	model.ComponentBattery: {
		model.RiskLow:      "Battery is healthy, no action needed.",
		model.RiskMedium:   "Test battery charge at the next service visit.",
		model.RiskHigh:     "Have the battery and charging system inspected soon.",
		model.RiskCritical: "Replace the battery immediately to avoid a breakdown.",
	},
	model.ComponentEngine: {
		model.RiskLow:      "Engine is operating normally.",
		model.RiskMedium:   "Watch coolant level and operating temperature.",
		model.RiskHigh:     "Book an engine inspection soon.",
		model.RiskCritical: "Stop driving and have the engine inspected immediately.",
	},
	model.ComponentOil: {
		model.RiskLow:      "Oil pressure is nominal.",
		model.RiskMedium:   "Check oil level and top up if needed.",
		model.RiskHigh:     "Schedule an oil change soon.",
		model.RiskCritical: "Change the oil immediately; low pressure risks engine damage.",
	},
	model.ComponentBrakes: {
		model.RiskLow:      "Brake pads are in good condition.",
		model.RiskMedium:   "Monitor brake pad wear at the next rotation.",
		model.RiskHigh:     "Plan a brake pad replacement soon.",
		model.RiskCritical: "Replace the brake pads immediately; braking is compromised.",
	},
	model.ComponentTires: {
		model.RiskLow:      "Tire pressure is within tolerance.",
		model.RiskMedium:   "Adjust tire pressure to the recommended value.",
		model.RiskHigh:     "Inspect tires for damage or slow leaks.",
		model.RiskCritical: "Replace or repair the affected tire before driving on.",
	},
}

// Classifier maps failure predictions to severity-bucketed alerts. It is a
// pure function of its configuration: reprocessing the same prediction
// yields the same alerts.
type Classifier struct {
	cfg Config
}

// NewClassifier validates the configuration and returns a Classifier.
func NewClassifier(cfg Config) (*Classifier, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg}, nil
}

// Risk buckets a probability into its severity level.
func (c *Classifier) Risk(probability float64) model.RiskLevel {
	switch {
	case probability >= c.cfg.CriticalThreshold:
		return model.RiskCritical
	case probability >= c.cfg.HighThreshold:
		return model.RiskHigh
	case probability >= c.cfg.MediumThreshold:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// Classify produces one alert per component, ordered by component name. The
// new alerts supersede any previous alerts for the same vehicle+component.
func (c *Classifier) Classify(pred model.FailurePrediction) []model.Alert {
	alerts := make([]model.Alert, 0, len(pred.Probabilities))
	for comp, prob := range pred.Probabilities {
		risk := c.Risk(prob)
		auto := risk == model.RiskCritical || (risk == model.RiskHigh && c.cfg.AutoScheduleOnHigh)
		alerts = append(alerts, model.Alert{
			VehicleID:      pred.VehicleID,
			Component:      comp,
			Risk:           risk,
			Probability:    prob,
			Recommendation: recommendations[comp][risk],
			AutoSchedule:   auto,
			Timestamp:      pred.Timestamp,
		})
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Component < alerts[j].Component })
	return alerts
}
