package config

// APIConfig defines settings for the HTTP API server.
type APIConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr"`
	// ReadTimeoutSeconds bounds request reading; zero uses the default.
	ReadTimeoutSeconds int `json:"read_timeout_seconds"`
}

// SetDefaults applies the default listen address.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeoutSeconds == 0 {
		c.ReadTimeoutSeconds = 10
	}
}
