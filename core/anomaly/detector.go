package anomaly

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"fleetsense/core/model"
)

// Config tunes the rolling statistical profile.
type Config struct {
	// WindowSize is the number of recent readings kept per vehicle.
	WindowSize int `json:"window_size"`
	// MinSamples is the history required before the detector judges a
	// reading. Below it the flag carries the insufficient-history marker.
	MinSamples int `json:"min_samples"`
	// Threshold is the z-score above which a reading is anomalous.
	Threshold float64 `json:"threshold"`
}

// SetDefaults applies the reference tuning.
func (c *Config) SetDefaults() {
	if c.WindowSize == 0 {
		c.WindowSize = 100
	}
	if c.MinSamples == 0 {
		c.MinSamples = 20
	}
	if c.Threshold == 0 {
		c.Threshold = 3.0
	}
}

// Validate checks the tuning once at startup.
func (c Config) Validate() error {
	if c.MinSamples < 2 {
		return fmt.Errorf("anomaly: min_samples must be at least 2")
	}
	if c.WindowSize < c.MinSamples {
		return fmt.Errorf("anomaly: window_size %d below min_samples %d", c.WindowSize, c.MinSamples)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("anomaly: threshold must be positive")
	}
	return nil
}

// profile is the fixed-capacity ring buffer of recent metric vectors for one
// vehicle. Unknown metrics are stored as NaN and skipped during scoring.
type profile struct {
	rows [][]float64
	next int
}

func newProfile(capacity int) *profile {
	return &profile{rows: make([][]float64, 0, capacity)}
}

func (p *profile) add(row []float64) {
	if len(p.rows) < cap(p.rows) {
		p.rows = append(p.rows, row)
		return
	}
	p.rows[p.next] = row
	p.next = (p.next + 1) % len(p.rows)
}

func (p *profile) size() int { return len(p.rows) }

// column returns the known historical values of metric i.
func (p *profile) column(i int) []float64 {
	out := make([]float64, 0, len(p.rows))
	for _, row := range p.rows {
		if !math.IsNaN(row[i]) {
			out = append(out, row[i])
		}
	}
	return out
}

// Detector flags statistically unusual readings independent of the fixed
// scoring thresholds. Each vehicle keeps its own rolling profile; a reading
// is scored against the profile before being added to it, so it never
// influences its own verdict.
type Detector struct {
	cfg Config

	mu       sync.Mutex
	profiles map[string]*profile
}

// NewDetector validates the configuration and returns a Detector.
func NewDetector(cfg Config) (*Detector, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg, profiles: make(map[string]*profile)}, nil
}

// Detect scores the reading against the vehicle's rolling profile and then
// folds the reading into the profile. During cold start the flag reports
// insufficient history and is never anomalous.
func (d *Detector) Detect(r model.SensorReading) model.AnomalyFlag {
	row := metricVector(r)

	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.profiles[r.VehicleID]
	if p == nil {
		p = newProfile(d.cfg.WindowSize)
		d.profiles[r.VehicleID] = p
	}

	flag := model.AnomalyFlag{VehicleID: r.VehicleID, Timestamp: r.Timestamp}
	if p.size() < d.cfg.MinSamples {
		flag.InsufficientHistory = true
		p.add(row)
		return flag
	}

	var worst float64
	for i, v := range row {
		if math.IsNaN(v) {
			continue
		}
		hist := p.column(i)
		if len(hist) < d.cfg.MinSamples {
			continue
		}
		mean, std := stat.MeanStdDev(hist, nil)
		var z float64
		if std < 1e-9 {
			// A flat profile treats any deviation as maximal surprise.
			if math.Abs(v-mean) > 1e-9 {
				z = d.cfg.Threshold + 1
			}
		} else {
			z = math.Abs(v-mean) / std
		}
		if z > worst {
			worst = z
		}
	}
	flag.Score = worst
	flag.Anomalous = worst > d.cfg.Threshold
	p.add(row)
	return flag
}

// HistorySize returns the number of profiled readings for a vehicle.
func (d *Detector) HistorySize(vehicleID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p := d.profiles[vehicleID]; p != nil {
		return p.size()
	}
	return 0
}

func metricVector(r model.SensorReading) []float64 {
	fields := []*float64{
		r.BatteryVoltage,
		r.EngineTemp,
		r.OilPressure,
		r.BrakePadThickness,
		r.TirePressure,
		r.RPM,
		r.Speed,
	}
	row := make([]float64, len(fields))
	for i, f := range fields {
		if f == nil {
			row[i] = math.NaN()
		} else {
			row[i] = *f
		}
	}
	return row
}
