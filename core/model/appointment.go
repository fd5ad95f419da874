package model

import "time"

// ServiceType names a maintenance service offered by the workshop.
type ServiceType string

const (
	ServiceBatteryReplacement ServiceType = "battery_replacement"
	ServiceEngineInspection   ServiceType = "engine_inspection"
	ServiceOilChange          ServiceType = "oil_change"
	ServiceBrakeReplacement   ServiceType = "brake_replacement"
	ServiceTireReplacement    ServiceType = "tire_replacement"
	ServiceGeneralInspection  ServiceType = "general_inspection"
	ServiceDiagnosticCheck    ServiceType = "diagnostic_check"
)

var serviceDurations = map[ServiceType]int{
	ServiceBatteryReplacement: 60,
	ServiceEngineInspection:   90,
	ServiceOilChange:          30,
	ServiceBrakeReplacement:   120,
	ServiceTireReplacement:    60,
	ServiceGeneralInspection:  60,
	ServiceDiagnosticCheck:    45,
}

// DurationMinutes returns the estimated service duration. Unknown services
// default to one hour.
func (s ServiceType) DurationMinutes() int {
	if d, ok := serviceDurations[s]; ok {
		return d
	}
	return 60
}

// ServiceForComponent maps a failing component to the service booked for it.
func ServiceForComponent(c Component) ServiceType {
	switch c {
	case ComponentBattery:
		return ServiceBatteryReplacement
	case ComponentEngine:
		return ServiceEngineInspection
	case ComponentOil:
		return ServiceOilChange
	case ComponentBrakes:
		return ServiceBrakeReplacement
	case ComponentTires:
		return ServiceTireReplacement
	}
	return ServiceDiagnosticCheck
}

// TimeSlot is a bookable (date, hour) unit of workshop capacity.
// Booked never exceeds Capacity.
type TimeSlot struct {
	Date     time.Time `json:"date"`
	Hour     int       `json:"hour"`
	Capacity int       `json:"capacity"`
	Booked   int       `json:"booked_count"`
}

// AppointmentStatus tracks the appointment state machine:
// pending -> confirmed on slot commit, pending -> rejected when no slot
// satisfies the constraints, confirmed -> cancelled on explicit cancellation.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentRejected  AppointmentStatus = "rejected"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is a booked (or rejected) maintenance visit. Appointments are
// never deleted, only marked cancelled.
type Appointment struct {
	ID          string            `json:"id"`
	VehicleID   string            `json:"vehicle_id"`
	ServiceType ServiceType       `json:"service_type"`
	Slot        TimeSlot          `json:"slot"`
	Status      AppointmentStatus `json:"status"`
	// AutoScheduled marks bookings initiated by the pipeline rather than a
	// customer request.
	AutoScheduled bool      `json:"auto_scheduled,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
