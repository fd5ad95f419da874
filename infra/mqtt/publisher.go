package mqtt

import (
	"encoding/json"
	"strings"

	"fleetsense/core/telemetry"
)

// Publisher sends raw telemetry samples to the fleet topic. It is used by
// the simulator and the ingest command; the service itself only subscribes.
type Publisher struct {
	cli pahoClient
	cfg Config
}

// NewPublisher connects to the broker.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &Publisher{cli: c, cfg: cfg}, nil
}

// PublishSample publishes one sample on the vehicle's telemetry topic.
func (p *Publisher) PublishSample(raw telemetry.RawSample) error {
	payload, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	// fleet/telemetry/+ -> fleet/telemetry/<vehicle_id>
	topic := strings.TrimSuffix(p.cfg.TelemetryTopic, "/+") + "/" + raw.VehicleID
	token := p.cli.Publish(topic, p.cfg.QoS, false, payload)
	token.Wait()
	return token.Error()
}

// Disconnect gracefully closes the MQTT connection.
func (p *Publisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
