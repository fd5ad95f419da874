package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"fleetsense/core/telemetry"
)

// Scenario selects the degradation behavior of a simulated vehicle.
type Scenario string

const (
	ScenarioHealthy     Scenario = "healthy"
	ScenarioBatteryWear Scenario = "battery_wear"
	ScenarioOverheat    Scenario = "engine_overheat"
	ScenarioBrakeWear   Scenario = "brake_wear"
	ScenarioTireLeak    Scenario = "tire_leak"
	ScenarioOilLoss     Scenario = "oil_loss"
)

var scenarios = []Scenario{
	ScenarioBatteryWear, ScenarioOverheat, ScenarioBrakeWear, ScenarioTireLeak, ScenarioOilLoss,
}

// Config tunes the simulated fleet.
type Config struct {
	FleetSize int
	// DegradedPct is the ratio of vehicles assigned a degradation scenario.
	DegradedPct float64
	Interval    time.Duration
	Seed        int64
}

// SetDefaults applies a small demonstration fleet.
func (c *Config) SetDefaults() {
	if c.FleetSize == 0 {
		c.FleetSize = 5
	}
	if c.DegradedPct == 0 {
		c.DegradedPct = 0.4
	}
	if c.Interval == 0 {
		c.Interval = 2 * time.Second
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Vehicle is one simulated telemetry source. Metrics random-walk around
// nominal values; a degradation scenario adds a slow drift on one metric.
type Vehicle struct {
	ID       string
	Scenario Scenario

	rng      *rand.Rand
	battery  float64
	engine   float64
	oil      float64
	brakes   float64
	tires    float64
	mileage  float64
	lastTime time.Time
}

// NewFleet generates the simulated vehicles. The first vehicles of the fleet
// carry the degradation scenarios so small fleets still demonstrate alerts.
func NewFleet(cfg Config) []*Vehicle {
	cfg.SetDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed))
	degraded := int(float64(cfg.FleetSize) * cfg.DegradedPct)
	fleet := make([]*Vehicle, 0, cfg.FleetSize)
	for i := 0; i < cfg.FleetSize; i++ {
		scenario := ScenarioHealthy
		if i < degraded {
			scenario = scenarios[i%len(scenarios)]
		}
		fleet = append(fleet, &Vehicle{
			ID:       fmt.Sprintf("sim-%03d", i+1),
			Scenario: scenario,
			rng:      rand.New(rand.NewSource(rng.Int63())),
			battery:  12.6,
			engine:   90,
			oil:      50,
			brakes:   9,
			tires:    32,
			mileage:  20000 + rng.Float64()*80000,
		})
	}
	return fleet
}

// Next produces the next sample for the vehicle at the given time.
func (v *Vehicle) Next(now time.Time) telemetry.RawSample {
	if !now.After(v.lastTime) {
		now = v.lastTime.Add(time.Millisecond)
	}
	v.lastTime = now

	jitter := func(scale float64) float64 { return (v.rng.Float64()*2 - 1) * scale }
	v.battery += jitter(0.02)
	v.engine += jitter(0.8)
	v.oil += jitter(0.5)
	v.brakes += jitter(0.005)
	v.tires += jitter(0.1)
	v.mileage += 0.5 + v.rng.Float64()

	switch v.Scenario {
	case ScenarioBatteryWear:
		v.battery -= 0.015
	case ScenarioOverheat:
		v.engine += 0.25
	case ScenarioBrakeWear:
		v.brakes -= 0.02
	case ScenarioTireLeak:
		v.tires -= 0.08
	case ScenarioOilLoss:
		v.oil -= 0.2
	}

	clamp := func(v, lo, hi float64) float64 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	v.battery = clamp(v.battery, 9.0, 13.0)
	v.engine = clamp(v.engine, 60, 130)
	v.oil = clamp(v.oil, 5, 70)
	v.brakes = clamp(v.brakes, 0.5, 12)
	v.tires = clamp(v.tires, 15, 40)

	ptr := func(f float64) *float64 { v := f; return &v }
	rpm := 800 + v.rng.Float64()*2200
	speed := v.rng.Float64() * 110
	return telemetry.RawSample{
		VehicleID:         v.ID,
		Timestamp:         now.UTC(),
		BatteryVoltage:    ptr(v.battery),
		EngineTemp:        ptr(v.engine),
		OilPressure:       ptr(v.oil),
		BrakePadThickness: ptr(v.brakes),
		TirePressure:      ptr(v.tires),
		RPM:               ptr(rpm),
		Speed:             ptr(speed),
		Mileage:           ptr(v.mileage),
	}
}

// Runner drives a fleet, emitting one sample per vehicle per tick.
type Runner struct {
	fleet    []*Vehicle
	interval time.Duration
	emit     func(telemetry.RawSample) error
}

// NewRunner creates a Runner. emit is called for every generated sample;
// emission errors stop the run.
func NewRunner(cfg Config, emit func(telemetry.RawSample) error) *Runner {
	cfg.SetDefaults()
	return &Runner{fleet: NewFleet(cfg), interval: cfg.Interval, emit: emit}
}

// Fleet exposes the simulated vehicles.
func (r *Runner) Fleet() []*Vehicle { return r.fleet }

// Run emits samples until the context ends.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			for _, v := range r.fleet {
				if err := r.emit(v.Next(now)); err != nil {
					return err
				}
			}
		}
	}
}
