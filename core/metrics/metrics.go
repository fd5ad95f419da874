package metrics

import (
	"time"

	"fleetsense/core/model"
)

// ReadingEvent summarizes one processed reading for observability.
type ReadingEvent struct {
	VehicleID string
	Timestamp time.Time
	Overall   float64
	Scores    map[model.Component]float64
	Stale     bool
	Anomalous bool
	// Duration is the wall time of the full pipeline step.
	Duration time.Duration
}

// AlertEvent records one emitted alert.
type AlertEvent struct {
	VehicleID    string
	Component    model.Component
	Risk         model.RiskLevel
	Probability  float64
	AutoSchedule bool
	Time         time.Time
}

// BookingEvent records a scheduling outcome, including rejections.
type BookingEvent struct {
	AppointmentID string
	VehicleID     string
	Service       model.ServiceType
	Slot          model.TimeSlot
	Status        model.AppointmentStatus
	Auto          bool
	Time          time.Time
}

// Sink records pipeline events for observability purposes.
type Sink interface {
	RecordReading(ev ReadingEvent) error
	RecordAlert(ev AlertEvent) error
	RecordBooking(ev BookingEvent) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordReading(ReadingEvent) error { return nil }
func (NopSink) RecordAlert(AlertEvent) error     { return nil }
func (NopSink) RecordBooking(BookingEvent) error { return nil }
