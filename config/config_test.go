package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `api:
  addr: ":9000"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  telemetry_topic: "fleet/telemetry/+"
  use_tls: false
metrics:
  prometheus_enabled: true
  prometheus_port: "2113"
anomaly:
  window_size: 200
  threshold: 2.5
alerts:
  auto_schedule_on_high: true
scheduler:
  open_hour: 8
  close_hour: 18
  slot_capacity: 2
storage:
  backend: "sqlite"
  path: "test.db"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"api.addr", cfg.API.Addr, ":9000"},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"username", cfg.MQTT.Username, "user"},
		{"telemetry_topic", cfg.MQTT.TelemetryTopic, "fleet/telemetry/+"},
		{"use_tls", cfg.MQTT.UseTLS, false},
		{"prometheus_port", cfg.Metrics.PrometheusPort, "2113"},
		{"window_size", cfg.Anomaly.WindowSize, 200},
		{"threshold", cfg.Anomaly.Threshold, 2.5},
		{"auto_schedule_on_high", cfg.Alerts.AutoScheduleOnHigh, true},
		{"open_hour", cfg.Scheduler.OpenHour, 8},
		{"close_hour", cfg.Scheduler.CloseHour, 18},
		{"slot_capacity", cfg.Scheduler.SlotCapacity, 2},
		{"storage.backend", cfg.Storage.Backend, "sqlite"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
	// Defaults fill the untouched sections.
	if cfg.Scoring.UnknownScore != 50 {
		t.Errorf("scoring defaults not applied: %v", cfg.Scoring.UnknownScore)
	}
	if cfg.Prediction.AnomalyBoost == 0 {
		t.Errorf("prediction defaults not applied")
	}
	if cfg.Pipeline.QueueSize != 16 {
		t.Errorf("pipeline defaults not applied: %d", cfg.Pipeline.QueueSize)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `alerts:
  medium_threshold: 0.9
  high_threshold: 0.5
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for inverted thresholds")
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load("config.toml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
