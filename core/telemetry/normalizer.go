package telemetry

import (
	"fmt"
	"sync"
	"time"

	"fleetsense/core/logger"
	"fleetsense/core/model"
)

// RawSample is a heterogeneous, possibly partial telemetry sample as
// delivered by the ingress collaborator. Absent fields decode to nil.
type RawSample struct {
	VehicleID string    `json:"vehicle_id"`
	Timestamp time.Time `json:"timestamp"`

	BatteryVoltage    *float64 `json:"battery_voltage"`
	EngineTemp        *float64 `json:"engine_temp"`
	OilPressure       *float64 `json:"oil_pressure"`
	BrakePadThickness *float64 `json:"brake_pad_thickness"`
	TirePressure      *float64 `json:"tire_pressure"`
	RPM               *float64 `json:"rpm"`
	Speed             *float64 `json:"speed"`
	Mileage           *float64 `json:"mileage"`
}

// ValidationError reports malformed or out-of-order input. The caller may
// resubmit with corrected data; the sample is never silently coerced.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid sample: %s %s", e.Field, e.Reason)
}

// metricRange is the physical plausibility window for one metric. Values
// outside the window are rejected to unknown, not clamped.
type metricRange struct {
	min, max float64
}

var metricRanges = map[string]metricRange{
	"battery_voltage":     {min: 0, max: 24},
	"engine_temp":         {min: -40, max: 250},
	"oil_pressure":        {min: 0, max: 150},
	"brake_pad_thickness": {min: 0, max: 30},
	"tire_pressure":       {min: 0, max: 80},
	"rpm":                 {min: 0, max: 12000},
	"speed":               {min: 0, max: 320},
	"mileage":             {min: 0, max: 2_000_000},
}

// Normalizer validates raw samples into fixed-shape readings and enforces
// strictly increasing timestamps per vehicle. It is safe for concurrent use.
type Normalizer struct {
	log logger.Logger

	mu   sync.Mutex
	last map[string]time.Time
}

// NewNormalizer creates a Normalizer. A nil logger disables logging.
func NewNormalizer(log logger.Logger) *Normalizer {
	return &Normalizer{log: log, last: make(map[string]time.Time)}
}

// Normalize validates the sample and returns the canonical reading. A
// reading whose timestamp is not after the last accepted timestamp for the
// vehicle is rejected, not reordered, so downstream stages can rely on
// monotonic time per vehicle.
func (n *Normalizer) Normalize(raw RawSample) (model.SensorReading, error) {
	if raw.VehicleID == "" {
		return model.SensorReading{}, &ValidationError{Field: "vehicle_id", Reason: "missing"}
	}
	if raw.Timestamp.IsZero() {
		return model.SensorReading{}, &ValidationError{Field: "timestamp", Reason: "missing"}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.last[raw.VehicleID]; ok && !raw.Timestamp.After(last) {
		return model.SensorReading{}, &ValidationError{
			Field:  "timestamp",
			Reason: fmt.Sprintf("%s not after last accepted %s", raw.Timestamp.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano)),
		}
	}

	r := model.SensorReading{
		VehicleID:         raw.VehicleID,
		Timestamp:         raw.Timestamp.UTC(),
		BatteryVoltage:    n.sanitize(raw.VehicleID, "battery_voltage", raw.BatteryVoltage),
		EngineTemp:        n.sanitize(raw.VehicleID, "engine_temp", raw.EngineTemp),
		OilPressure:       n.sanitize(raw.VehicleID, "oil_pressure", raw.OilPressure),
		BrakePadThickness: n.sanitize(raw.VehicleID, "brake_pad_thickness", raw.BrakePadThickness),
		TirePressure:      n.sanitize(raw.VehicleID, "tire_pressure", raw.TirePressure),
		RPM:               n.sanitize(raw.VehicleID, "rpm", raw.RPM),
		Speed:             n.sanitize(raw.VehicleID, "speed", raw.Speed),
		Mileage:           n.sanitize(raw.VehicleID, "mileage", raw.Mileage),
	}
	n.last[raw.VehicleID] = raw.Timestamp
	return r, nil
}

// LastAccepted returns the last accepted timestamp for a vehicle.
func (n *Normalizer) LastAccepted(vehicleID string) (time.Time, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.last[vehicleID]
	return t, ok
}

func (n *Normalizer) sanitize(vehicleID, field string, v *float64) *float64 {
	if v == nil {
		return nil
	}
	rng := metricRanges[field]
	if *v < rng.min || *v > rng.max {
		if n.log != nil {
			n.log.Warnf("vehicle %s: %s=%v outside physical range, treated as unknown", vehicleID, field, *v)
		}
		return nil
	}
	val := *v
	return &val
}
