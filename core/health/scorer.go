package health

import (
	"sync"

	"fleetsense/core/model"
)

// Scorer maps sensor readings to per-component and overall health scores.
// Scoring itself is a pure function of the configured curves; the scorer
// additionally remembers the last known score per vehicle and component so
// unknown metrics carry forward instead of defaulting to healthy.
type Scorer struct {
	cfg Config

	mu   sync.Mutex
	last map[string]map[model.Component]float64
}

// NewScorer validates the configuration and returns a Scorer.
func NewScorer(cfg Config) (*Scorer, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg, last: make(map[string]map[model.Component]float64)}, nil
}

// Score computes the health assessment for one reading. Components without
// a metric in this reading reuse the vehicle's last known score and are
// marked stale; the overall aggregate keeps the configured weights either
// way so staleness is surfaced rather than renormalized away.
func (s *Scorer) Score(r model.SensorReading) model.HealthScore {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := s.last[r.VehicleID]
	if known == nil {
		known = make(map[model.Component]float64)
		s.last[r.VehicleID] = known
	}

	h := model.HealthScore{
		VehicleID:  r.VehicleID,
		Timestamp:  r.Timestamp,
		Components: make(map[model.Component]model.ComponentScore, len(s.cfg.Weights)),
	}
	for _, comp := range model.Components() {
		v := r.Metric(comp)
		if v == nil {
			score, ok := known[comp]
			if !ok {
				score = s.cfg.UnknownScore
			}
			h.Components[comp] = model.ComponentScore{Score: score, Stale: true}
		} else {
			score := Evaluate(s.cfg.Curves[comp], *v)
			known[comp] = score
			h.Components[comp] = model.ComponentScore{Score: score}
		}
		h.Overall += s.cfg.Weights[comp] * h.Components[comp].Score
	}
	return h
}

// Evaluate interpolates the piecewise linear curve at v. Values outside the
// curve clamp to the nearest endpoint score.
func Evaluate(curve []CurvePoint, v float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	if v <= curve[0].Value {
		return curve[0].Score
	}
	last := curve[len(curve)-1]
	if v >= last.Value {
		return last.Score
	}
	for i := 1; i < len(curve); i++ {
		if v <= curve[i].Value {
			a, b := curve[i-1], curve[i]
			t := (v - a.Value) / (b.Value - a.Value)
			return a.Score + t*(b.Score-a.Score)
		}
	}
	return last.Score
}
