package health

import (
	"fmt"
	"math"

	"fleetsense/core/model"
)

// CurvePoint is one breakpoint of a piecewise linear scoring curve.
type CurvePoint struct {
	Value float64 `json:"value"`
	Score float64 `json:"score"`
}

// Config defines the scoring curves and aggregation weights. Both are
// per-deployment configuration; the defaults encode the reference curves
// for a combustion fleet.
type Config struct {
	// Weights aggregates component scores into the overall score. The
	// weights must cover every component and sum to 1.
	Weights map[model.Component]float64 `json:"weights"`
	// Curves maps a raw metric value to a 0-100 score per component.
	// Points must be sorted by strictly increasing value; scores are
	// linearly interpolated between points and clamped at the ends.
	Curves map[model.Component][]CurvePoint `json:"curves"`
	// UnknownScore is used when a metric has never been observed for a
	// vehicle, so no last-known score can be carried forward.
	UnknownScore float64 `json:"unknown_score"`
}

// SetDefaults applies the reference curves and weights.
func (c *Config) SetDefaults() {
	if c.Weights == nil {
		c.Weights = map[model.Component]float64{
			model.ComponentBattery: 0.15,
			model.ComponentEngine:  0.25,
			model.ComponentOil:     0.20,
			model.ComponentBrakes:  0.25,
			model.ComponentTires:   0.15,
		}
	}
	if c.Curves == nil {
		c.Curves = map[model.Component][]CurvePoint{
			// 12.6V fully charged, below 11.8V the battery is failing.
			model.ComponentBattery: {
				{Value: 9.5, Score: 0},
				{Value: 11.8, Score: 40},
				{Value: 12.0, Score: 80},
				{Value: 12.6, Score: 100},
			},
			// 85-95C nominal operating band, 110C is overheating.
			model.ComponentEngine: {
				{Value: 52, Score: 0},
				{Value: 85, Score: 100},
				{Value: 95, Score: 100},
				{Value: 110, Score: 0},
			},
			// 40-60 PSI nominal.
			model.ComponentOil: {
				{Value: 0, Score: 0},
				{Value: 40, Score: 100},
				{Value: 60, Score: 100},
				{Value: 80, Score: 0},
			},
			// 10mm new pads, below 3mm replacement is due.
			model.ComponentBrakes: {
				{Value: 0, Score: 0},
				{Value: 3, Score: 30},
				{Value: 10, Score: 100},
			},
			// 32 PSI nominal with a +/-2 PSI tolerance band.
			model.ComponentTires: {
				{Value: 22, Score: 0},
				{Value: 30, Score: 100},
				{Value: 34, Score: 100},
				{Value: 44, Score: 0},
			},
		}
	}
	if c.UnknownScore == 0 {
		c.UnknownScore = 50
	}
}

// Validate checks curve and weight consistency. It is called once at
// startup; a failure here is the only fatal condition of the pipeline.
func (c Config) Validate() error {
	var sum float64
	for _, comp := range model.Components() {
		w, ok := c.Weights[comp]
		if !ok {
			return fmt.Errorf("scoring: missing weight for %s", comp)
		}
		if w < 0 {
			return fmt.Errorf("scoring: negative weight for %s", comp)
		}
		sum += w
		curve, ok := c.Curves[comp]
		if !ok || len(curve) < 2 {
			return fmt.Errorf("scoring: curve for %s needs at least two points", comp)
		}
		for i, p := range curve {
			if p.Score < 0 || p.Score > 100 {
				return fmt.Errorf("scoring: %s curve score %v out of [0,100]", comp, p.Score)
			}
			if i > 0 && p.Value <= curve[i-1].Value {
				return fmt.Errorf("scoring: %s curve values must be strictly increasing", comp)
			}
		}
	}
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("scoring: weights sum to %v, want 1", sum)
	}
	if c.UnknownScore < 0 || c.UnknownScore > 100 {
		return fmt.Errorf("scoring: unknown_score %v out of [0,100]", c.UnknownScore)
	}
	return nil
}
