package scheduler

import "fmt"

// Config defines workshop capacity planning parameters.
type Config struct {
	// OpenHour and CloseHour bound the bookable hours of a day.
	// Slots exist for OpenHour <= hour < CloseHour.
	OpenHour  int `json:"open_hour"`
	CloseHour int `json:"close_hour"`
	// SlotCapacity is the number of concurrent appointments per slot.
	SlotCapacity int `json:"slot_capacity"`
	// LookaheadDays bounds the search for an available slot.
	LookaheadDays int `json:"lookahead_days"`
}

// SetDefaults applies the reference workshop hours.
func (c *Config) SetDefaults() {
	if c.OpenHour == 0 {
		c.OpenHour = 9
	}
	if c.CloseHour == 0 {
		c.CloseHour = 17
	}
	if c.SlotCapacity == 0 {
		c.SlotCapacity = 1
	}
	if c.LookaheadDays == 0 {
		c.LookaheadDays = 14
	}
}

// Validate checks the planning parameters once at startup.
func (c Config) Validate() error {
	if c.OpenHour < 0 || c.CloseHour > 24 || c.OpenHour >= c.CloseHour {
		return fmt.Errorf("scheduler: invalid opening hours %d-%d", c.OpenHour, c.CloseHour)
	}
	if c.SlotCapacity < 1 {
		return fmt.Errorf("scheduler: slot_capacity must be positive")
	}
	if c.LookaheadDays < 1 {
		return fmt.Errorf("scheduler: lookahead_days must be positive")
	}
	return nil
}
