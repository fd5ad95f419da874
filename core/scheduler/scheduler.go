package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fleetsense/core/logger"
	"fleetsense/core/model"
)

// Scheduler allocates appointment slots. Slot selection scans the target
// date and then subsequent days within the lookahead window, taking the
// first slot with free capacity in ascending hour order.
type Scheduler struct {
	cfg   Config
	store Store
	log   logger.Logger
	now   func() time.Time
}

// NewScheduler validates the configuration and returns a Scheduler.
func NewScheduler(cfg Config, store Store, log logger.Logger) (*Scheduler, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{cfg: cfg, store: store, log: log, now: time.Now}, nil
}

// Book schedules the service on the first available slot at or after the
// preferred date. The appointment starts pending, transitions to confirmed
// on a successful slot commit, and is recorded as rejected when no slot
// within the lookahead window has capacity, in which case a NoCapacityError
// is returned.
func (s *Scheduler) Book(ctx context.Context, vehicleID string, service model.ServiceType, preferred time.Time, auto bool) (model.Appointment, error) {
	if preferred.IsZero() {
		// Earliest available: bookings start the next day.
		preferred = s.now().Add(24 * time.Hour)
	}
	appt := model.Appointment{
		ID:            uuid.NewString(),
		VehicleID:     vehicleID,
		ServiceType:   service,
		Status:        model.AppointmentPending,
		AutoScheduled: auto,
		CreatedAt:     s.now().UTC(),
	}

	start := Day(preferred)
	for d := 0; d < s.cfg.LookaheadDays; d++ {
		day := start.AddDate(0, 0, d)
		for hour := s.cfg.OpenHour; hour < s.cfg.CloseHour; hour++ {
			ok, err := s.store.ReserveSlot(ctx, day, hour, s.cfg.SlotCapacity)
			if err != nil {
				return model.Appointment{}, err
			}
			if !ok {
				continue
			}
			appt.Slot = model.TimeSlot{Date: day, Hour: hour, Capacity: s.cfg.SlotCapacity}
			appt.Status = model.AppointmentConfirmed
			if err := s.store.SaveAppointment(ctx, appt); err != nil {
				// The reservation must not leak when the appointment
				// record cannot be written.
				if rerr := s.store.ReleaseSlot(ctx, day, hour); rerr != nil && s.log != nil {
					s.log.Errorf("release slot after failed save: %v", rerr)
				}
				return model.Appointment{}, err
			}
			if s.log != nil {
				s.log.Infof("booked %s for %s on %s at %02d:00", service, vehicleID, day.Format("2006-01-02"), hour)
			}
			return appt, nil
		}
	}

	appt.Status = model.AppointmentRejected
	if err := s.store.SaveAppointment(ctx, appt); err != nil && s.log != nil {
		s.log.Errorf("record rejected appointment: %v", err)
	}
	return model.Appointment{}, &NoCapacityError{Service: service, From: start, Days: s.cfg.LookaheadDays}
}

// AutoSchedule books the earliest available slot for a pipeline-triggered
// service. It runs synchronously within the processing step that produced
// the alert.
func (s *Scheduler) AutoSchedule(ctx context.Context, vehicleID string, service model.ServiceType) (model.Appointment, error) {
	return s.Book(ctx, vehicleID, service, time.Time{}, true)
}

// Cancel marks a confirmed appointment cancelled and frees its slot.
// Appointments are never deleted. Cancelling twice is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	appt, ok, err := s.store.Appointment(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{ID: id}
	}
	if appt.Status != model.AppointmentConfirmed {
		return nil
	}
	if err := s.store.UpdateAppointmentStatus(ctx, id, model.AppointmentCancelled); err != nil {
		return err
	}
	return s.store.ReleaseSlot(ctx, appt.Slot.Date, appt.Slot.Hour)
}

// Appointment looks up an appointment by ID.
func (s *Scheduler) Appointment(ctx context.Context, id string) (model.Appointment, error) {
	appt, ok, err := s.store.Appointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !ok {
		return model.Appointment{}, &NotFoundError{ID: id}
	}
	return appt, nil
}

// DaySlots lists the slot table for one day.
func (s *Scheduler) DaySlots(ctx context.Context, day time.Time) ([]model.TimeSlot, error) {
	return s.store.DaySlots(ctx, day, s.cfg.OpenHour, s.cfg.CloseHour, s.cfg.SlotCapacity)
}
