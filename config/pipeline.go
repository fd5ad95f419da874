package config

// PipelineConfig tunes the ingestion worker pool.
type PipelineConfig struct {
	// QueueSize bounds the per-vehicle sample backlog.
	QueueSize int `json:"queue_size"`
	// HistoryLimit bounds the retained snapshots per vehicle.
	HistoryLimit int `json:"history_limit"`
}

// SetDefaults applies sane defaults.
func (c *PipelineConfig) SetDefaults() {
	if c.QueueSize == 0 {
		c.QueueSize = 16
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 500
	}
}
