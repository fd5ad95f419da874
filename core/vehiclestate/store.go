package vehiclestate

import (
	"sort"
	"sync"
	"time"

	"fleetsense/core/model"
)

// Snapshot is the current derived state of one vehicle: the latest health
// score, prediction and alert per component.
type Snapshot struct {
	VehicleID  string                          `json:"vehicle_id"`
	Health     model.HealthScore               `json:"health_score"`
	Prediction model.FailurePrediction         `json:"prediction"`
	Alerts     map[model.Component]model.Alert `json:"alerts"`
	UpdatedAt  time.Time                       `json:"updated_at"`
}

// Store keeps per-vehicle current state plus the audit trail of superseded
// alerts. Consumers treat alerts as current state, not an event log; the
// history exists for audit only.
type Store interface {
	Apply(health model.HealthScore, pred model.FailurePrediction, alerts []model.Alert)
	Get(vehicleID string) (Snapshot, bool)
	List() []Snapshot
	// History returns superseded and current alerts for a vehicle in
	// insertion order.
	History(vehicleID string) []model.Alert
}

// MemoryStore is the default in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string]Snapshot
	history map[string][]model.Alert
	// maxHistory bounds the per-vehicle audit trail.
	maxHistory int
}

// NewMemoryStore creates a MemoryStore keeping up to maxHistory superseded
// alerts per vehicle. Zero means the default of 500.
func NewMemoryStore(maxHistory int) *MemoryStore {
	if maxHistory <= 0 {
		maxHistory = 500
	}
	return &MemoryStore{
		data:       make(map[string]Snapshot),
		history:    make(map[string][]model.Alert),
		maxHistory: maxHistory,
	}
}

// Apply records the derived chain of one reading, superseding the previous
// alerts for the affected vehicle components.
func (s *MemoryStore) Apply(health model.HealthScore, pred model.FailurePrediction, alerts []model.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.data[health.VehicleID]
	if !ok {
		snap = Snapshot{VehicleID: health.VehicleID, Alerts: make(map[model.Component]model.Alert)}
	}
	snap.Health = health
	snap.Prediction = pred
	for _, a := range alerts {
		snap.Alerts[a.Component] = a
		h := append(s.history[a.VehicleID], a)
		if len(h) > s.maxHistory {
			h = h[len(h)-s.maxHistory:]
		}
		s.history[a.VehicleID] = h
	}
	snap.UpdatedAt = health.Timestamp
	s.data[health.VehicleID] = snap
}

// Get returns the snapshot for a vehicle.
func (s *MemoryStore) Get(vehicleID string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.data[vehicleID]
	if !ok {
		return Snapshot{}, false
	}
	return cloneSnapshot(snap), true
}

// List returns all snapshots ordered by vehicle ID.
func (s *MemoryStore) List() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.data))
	for _, snap := range s.data {
		out = append(out, cloneSnapshot(snap))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

// History returns the audit trail for a vehicle.
func (s *MemoryStore) History(vehicleID string) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[vehicleID]
	out := make([]model.Alert, len(h))
	copy(out, h)
	return out
}

func cloneSnapshot(snap Snapshot) Snapshot {
	alerts := make(map[model.Component]model.Alert, len(snap.Alerts))
	for c, a := range snap.Alerts {
		alerts[c] = a
	}
	snap.Alerts = alerts
	return snap
}
