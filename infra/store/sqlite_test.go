package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fleetsense/core/model"
	"fleetsense/core/scheduler"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "fleetsense.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReserveSlotCapacity(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		ok, err := s.ReserveSlot(ctx, day, 9, 2)
		if err != nil || !ok {
			t.Fatalf("reserve %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := s.ReserveSlot(ctx, day, 9, 2)
	if err != nil {
		t.Fatalf("reserve over capacity: %v", err)
	}
	if ok {
		t.Fatalf("reservation succeeded beyond capacity")
	}

	if err := s.ReleaseSlot(ctx, day, 9); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := s.ReserveSlot(ctx, day, 9, 2); !ok {
		t.Fatalf("slot not reusable after release")
	}
}

func TestReserveSlotConcurrent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	const capacity = 3

	var wg sync.WaitGroup
	granted := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ReserveSlot(ctx, day, 10, capacity)
			if err != nil {
				t.Errorf("reserve: %v", err)
				return
			}
			granted <- ok
		}()
	}
	wg.Wait()
	close(granted)

	var n int
	for ok := range granted {
		if ok {
			n++
		}
	}
	if n != capacity {
		t.Fatalf("granted %d reservations, want %d", n, capacity)
	}

	slots, err := s.DaySlots(ctx, day, 9, 17, capacity)
	if err != nil {
		t.Fatalf("day slots: %v", err)
	}
	for _, sl := range slots {
		if sl.Booked > sl.Capacity {
			t.Fatalf("slot %d overbooked: %d/%d", sl.Hour, sl.Booked, sl.Capacity)
		}
	}
}

func TestAppointmentRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	appt := model.Appointment{
		ID:          "a1",
		VehicleID:   "veh1",
		ServiceType: model.ServiceBrakeReplacement,
		Slot:        model.TimeSlot{Date: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), Hour: 11, Capacity: 1},
		Status:      model.AppointmentConfirmed,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := s.SaveAppointment(ctx, appt); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.Appointment(ctx, "a1")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if got.ServiceType != appt.ServiceType || got.Slot.Hour != 11 {
		t.Fatalf("round trip mismatch: %#v", got)
	}

	if err := s.UpdateAppointmentStatus(ctx, "a1", model.AppointmentCancelled); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _, _ = s.Appointment(ctx, "a1")
	if got.Status != model.AppointmentCancelled {
		t.Fatalf("status %s, want cancelled", got.Status)
	}

	var nf *scheduler.NotFoundError
	if err := s.UpdateAppointmentStatus(ctx, "missing", model.AppointmentCancelled); err == nil {
		t.Fatalf("expected not-found error")
	} else if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	appts, err := s.VehicleAppointments(ctx, "veh1")
	if err != nil || len(appts) != 1 {
		t.Fatalf("vehicle appointments: %v %d", err, len(appts))
	}
}

func TestSchedulerOnSQLite(t *testing.T) {
	s := openStore(t)
	sched, err := scheduler.NewScheduler(scheduler.Config{OpenHour: 9, CloseHour: 11, SlotCapacity: 1, LookaheadDays: 2}, s, nil)
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	ctx := context.Background()
	preferred := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)

	first, err := sched.Book(ctx, "veh1", model.ServiceOilChange, preferred, false)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if first.Slot.Hour != 9 || first.Status != model.AppointmentConfirmed {
		t.Fatalf("first booking %#v", first)
	}
	second, err := sched.Book(ctx, "veh2", model.ServiceOilChange, preferred, false)
	if err != nil {
		t.Fatalf("second book: %v", err)
	}
	if second.Slot.Hour != 10 {
		t.Fatalf("second booking hour %d, want 10", second.Slot.Hour)
	}

	if err := sched.Cancel(ctx, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	rebooked, err := sched.Book(ctx, "veh3", model.ServiceOilChange, preferred, false)
	if err != nil {
		t.Fatalf("rebook: %v", err)
	}
	if rebooked.Slot.Hour != 9 {
		t.Fatalf("released slot not reused: hour %d", rebooked.Slot.Hour)
	}
}

func TestAlertAuditLog(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, risk := range []model.RiskLevel{model.RiskMedium, model.RiskHigh} {
		if err := s.AppendAlert(ctx, model.Alert{
			VehicleID:   "veh1",
			Component:   model.ComponentBrakes,
			Risk:        risk,
			Probability: 0.4 + 0.2*float64(i),
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	hist, err := s.AlertHistory(ctx, "veh1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history length %d, want 2", len(hist))
	}
	if hist[0].Risk != model.RiskMedium || hist[1].Risk != model.RiskHigh {
		t.Fatalf("superseded alert lost: %#v", hist)
	}
}
