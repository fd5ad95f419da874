package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"fleetsense/core/model"
	"fleetsense/core/scheduler"
)

// SQLiteStore persists the slot table, appointments and the alert audit log
// to a SQLite database. It implements scheduler.Store and the pipeline's
// audit log.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent bookings.
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS slots (
        day INTEGER NOT NULL,
        hour INTEGER NOT NULL,
        booked INTEGER NOT NULL DEFAULT 0,
        PRIMARY KEY (day, hour)
    );
    CREATE TABLE IF NOT EXISTS appointments (
        id TEXT PRIMARY KEY,
        vehicle_id TEXT,
        status TEXT,
        record TEXT
    );
    CREATE TABLE IF NOT EXISTS alerts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER,
        vehicle_id TEXT,
        component TEXT,
        risk_level TEXT,
        record TEXT
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// ReserveSlot increments the booked count if it is below capacity. The upsert
// runs as a single statement, so the check and increment are atomic.
func (s *SQLiteStore) ReserveSlot(ctx context.Context, day time.Time, hour, capacity int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO slots (day, hour, booked) VALUES (?, ?, 1)
         ON CONFLICT(day, hour) DO UPDATE SET booked = booked + 1 WHERE booked < ?`,
		scheduler.Day(day).Unix(), hour, capacity)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReleaseSlot decrements the booked count after a cancellation.
func (s *SQLiteStore) ReleaseSlot(ctx context.Context, day time.Time, hour int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE slots SET booked = booked - 1 WHERE day = ? AND hour = ? AND booked > 0`,
		scheduler.Day(day).Unix(), hour)
	return err
}

// DaySlots lists the slots of a day, including untouched ones.
func (s *SQLiteStore) DaySlots(ctx context.Context, day time.Time, openHour, closeHour, capacity int) ([]model.TimeSlot, error) {
	d := scheduler.Day(day)
	rows, err := s.db.QueryContext(ctx,
		`SELECT hour, booked FROM slots WHERE day = ?`, d.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	booked := make(map[int]int)
	for rows.Next() {
		var hour, n int
		if err := rows.Scan(&hour, &n); err != nil {
			return nil, err
		}
		booked[hour] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slots := make([]model.TimeSlot, 0, closeHour-openHour)
	for h := openHour; h < closeHour; h++ {
		slots = append(slots, model.TimeSlot{Date: d, Hour: h, Capacity: capacity, Booked: booked[h]})
	}
	return slots, nil
}

// SaveAppointment writes the full appointment record.
func (s *SQLiteStore) SaveAppointment(ctx context.Context, appt model.Appointment) error {
	b, err := json.Marshal(appt)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO appointments (id, vehicle_id, status, record) VALUES (?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET status = excluded.status, record = excluded.record`,
		appt.ID, appt.VehicleID, string(appt.Status), string(b))
	return err
}

// Appointment looks up an appointment by ID.
func (s *SQLiteStore) Appointment(ctx context.Context, id string) (model.Appointment, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM appointments WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return model.Appointment{}, false, nil
	}
	if err != nil {
		return model.Appointment{}, false, err
	}
	var appt model.Appointment
	if err := json.Unmarshal([]byte(data), &appt); err != nil {
		return model.Appointment{}, false, fmt.Errorf("unmarshal appointment: %w", err)
	}
	return appt, true, nil
}

// UpdateAppointmentStatus transitions the appointment and keeps the stored
// record in sync.
func (s *SQLiteStore) UpdateAppointmentStatus(ctx context.Context, id string, status model.AppointmentStatus) error {
	appt, ok, err := s.Appointment(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &scheduler.NotFoundError{ID: id}
	}
	appt.Status = status
	return s.SaveAppointment(ctx, appt)
}

// VehicleAppointments lists the appointments of one vehicle, newest first.
func (s *SQLiteStore) VehicleAppointments(ctx context.Context, vehicleID string) ([]model.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM appointments WHERE vehicle_id = ? ORDER BY rowid DESC`, vehicleID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Appointment
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var appt model.Appointment
		if err := json.Unmarshal([]byte(data), &appt); err != nil {
			return nil, fmt.Errorf("unmarshal appointment: %w", err)
		}
		res = append(res, appt)
	}
	return res, rows.Err()
}

// AppendAlert writes an emitted alert to the audit log. The log is
// append-only; superseded alerts stay queryable.
func (s *SQLiteStore) AppendAlert(ctx context.Context, a model.Alert) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alerts (ts, vehicle_id, component, risk_level, record) VALUES (?, ?, ?, ?, ?)`,
		a.Timestamp.Unix(), a.VehicleID, string(a.Component), a.Risk.String(), string(b))
	return err
}

// AlertHistory returns the audit trail of one vehicle in emission order.
func (s *SQLiteStore) AlertHistory(ctx context.Context, vehicleID string) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM alerts WHERE vehicle_id = ? ORDER BY id`, vehicleID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Alert
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var a model.Alert
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("unmarshal alert: %w", err)
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
