package scheduler

import (
	"context"
	"sync"
	"time"

	"fleetsense/core/model"
)

// Store persists the slot table and appointments. ReserveSlot is the one
// genuinely shared mutable operation of the pipeline: implementations must
// make the capacity check and increment atomic so the booked count never
// exceeds capacity under concurrent bookings.
type Store interface {
	// ReserveSlot atomically increments the booked count of the (day, hour)
	// slot if it is below capacity. It reports whether the reservation
	// succeeded.
	ReserveSlot(ctx context.Context, day time.Time, hour, capacity int) (bool, error)
	// ReleaseSlot decrements the booked count after a cancellation.
	ReleaseSlot(ctx context.Context, day time.Time, hour int) error
	// DaySlots lists the slots of a day, including untouched ones.
	DaySlots(ctx context.Context, day time.Time, openHour, closeHour, capacity int) ([]model.TimeSlot, error)

	SaveAppointment(ctx context.Context, appt model.Appointment) error
	Appointment(ctx context.Context, id string) (model.Appointment, bool, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status model.AppointmentStatus) error
}

// Day truncates t to midnight UTC, the canonical slot date.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type slotKey struct {
	day  time.Time
	hour int
}

// MemoryStore is the in-memory Store used by default and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	booked map[slotKey]int
	appts  map[string]model.Appointment
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{booked: make(map[slotKey]int), appts: make(map[string]model.Appointment)}
}

func (s *MemoryStore) ReserveSlot(_ context.Context, day time.Time, hour, capacity int) (bool, error) {
	key := slotKey{day: Day(day), hour: hour}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.booked[key] >= capacity {
		return false, nil
	}
	s.booked[key]++
	return true, nil
}

func (s *MemoryStore) ReleaseSlot(_ context.Context, day time.Time, hour int) error {
	key := slotKey{day: Day(day), hour: hour}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.booked[key] > 0 {
		s.booked[key]--
	}
	return nil
}

func (s *MemoryStore) DaySlots(_ context.Context, day time.Time, openHour, closeHour, capacity int) ([]model.TimeSlot, error) {
	d := Day(day)
	s.mu.Lock()
	defer s.mu.Unlock()
	slots := make([]model.TimeSlot, 0, closeHour-openHour)
	for h := openHour; h < closeHour; h++ {
		slots = append(slots, model.TimeSlot{
			Date:     d,
			Hour:     h,
			Capacity: capacity,
			Booked:   s.booked[slotKey{day: d, hour: h}],
		})
	}
	return slots, nil
}

func (s *MemoryStore) SaveAppointment(_ context.Context, appt model.Appointment) error {
	s.mu.Lock()
	s.appts[appt.ID] = appt
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Appointment(_ context.Context, id string) (model.Appointment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	return appt, ok, nil
}

func (s *MemoryStore) UpdateAppointmentStatus(_ context.Context, id string, status model.AppointmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	appt.Status = status
	s.appts[id] = appt
	return nil
}
