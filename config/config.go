package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"fleetsense/core/alert"
	"fleetsense/core/anomaly"
	"fleetsense/core/health"
	"fleetsense/core/metrics"
	"fleetsense/core/prediction"
	"fleetsense/core/scheduler"
	"fleetsense/infra/mqtt"
)

type Config struct {
	API        APIConfig        `json:"api"`
	MQTT       mqtt.Config      `json:"mqtt"`
	Metrics    metrics.Config   `json:"metrics"`
	Scoring    health.Config    `json:"scoring"`
	Anomaly    anomaly.Config   `json:"anomaly"`
	Prediction prediction.Config `json:"prediction"`
	Alerts     alert.Config     `json:"alerts"`
	Scheduler  scheduler.Config `json:"scheduler"`
	Storage    StorageConfig    `json:"storage"`
	Pipeline   PipelineConfig   `json:"pipeline"`
	Sentry     SentryConfig     `json:"sentry"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("FS_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fs_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills in defaults for every section.
func (c *Config) SetDefaults() {
	c.API.SetDefaults()
	c.MQTT.SetDefaults()
	c.Metrics.SetDefaults()
	c.Scoring.SetDefaults()
	c.Anomaly.SetDefaults()
	c.Prediction.SetDefaults()
	c.Alerts.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Storage.SetDefaults()
	c.Pipeline.SetDefaults()
}

// Validate checks every section once at startup.
func (c *Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	if err := c.Anomaly.Validate(); err != nil {
		return err
	}
	if err := c.Prediction.Validate(); err != nil {
		return err
	}
	if err := c.Alerts.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	return c.Storage.Validate()
}
