package config

import "fmt"

// StorageConfig selects the scheduling and audit store backend.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	// Path is the SQLite database location.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Path == "" {
		c.Path = "fleetsense.db"
	}
}

// Validate checks mandatory fields.
func (c StorageConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown storage backend %s", c.Backend)
	}
	if c.Backend == "sqlite" && c.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}
