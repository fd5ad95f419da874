package model

import "time"

// SensorReading is a validated, fixed-shape telemetry sample for one vehicle.
// Metric fields are pointers: a nil value means the metric was absent or
// rejected during normalization, never zero.
type SensorReading struct {
	VehicleID string    `json:"vehicle_id"`
	Timestamp time.Time `json:"timestamp"`

	BatteryVoltage    *float64 `json:"battery_voltage,omitempty"`
	EngineTemp        *float64 `json:"engine_temp,omitempty"`
	OilPressure       *float64 `json:"oil_pressure,omitempty"`
	BrakePadThickness *float64 `json:"brake_pad_thickness,omitempty"`
	TirePressure      *float64 `json:"tire_pressure,omitempty"`
	RPM               *float64 `json:"rpm,omitempty"`
	Speed             *float64 `json:"speed,omitempty"`
	Mileage           *float64 `json:"mileage,omitempty"`
}

// Metric returns the value backing the given component, or nil when unknown.
func (r SensorReading) Metric(c Component) *float64 {
	switch c {
	case ComponentBattery:
		return r.BatteryVoltage
	case ComponentEngine:
		return r.EngineTemp
	case ComponentOil:
		return r.OilPressure
	case ComponentBrakes:
		return r.BrakePadThickness
	case ComponentTires:
		return r.TirePressure
	}
	return nil
}
