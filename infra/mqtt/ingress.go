package mqtt

import (
	"encoding/json"
	"errors"

	paho "github.com/eclipse/paho.mqtt.golang"

	"fleetsense/core/pipeline"
	"fleetsense/core/telemetry"
	"fleetsense/infra/logger"
)

// Submitter accepts raw samples for asynchronous processing.
type Submitter interface {
	Submit(raw telemetry.RawSample) error
}

// Ingress subscribes to the fleet telemetry topic and feeds decoded samples
// into the pipeline's worker pool. Malformed payloads and full queues are
// logged and dropped; the broker connection is never stalled.
type Ingress struct {
	cli  pahoClient
	cfg  Config
	pool Submitter
	log  logger.Logger
}

// NewIngress connects to the broker and subscribes to the telemetry topic.
func NewIngress(cfg Config, pool Submitter) (*Ingress, error) {
	cfg.SetDefaults()
	if pool == nil {
		return nil, errors.New("mqtt: nil submitter")
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_ingress")
	in := &Ingress{cfg: cfg, pool: pool, log: log}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(cfg.TelemetryTopic, cfg.QoS, in.onSample); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	in.cli = c
	return in, nil
}

func (in *Ingress) onSample(_ paho.Client, msg paho.Message) {
	var raw telemetry.RawSample
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		in.log.Errorf("decode sample on %s: %v", msg.Topic(), err)
		return
	}
	if err := in.pool.Submit(raw); err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) {
			in.log.Warnf("vehicle %s backlog full, sample dropped", raw.VehicleID)
			return
		}
		in.log.Errorf("submit sample for %s: %v", raw.VehicleID, err)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (in *Ingress) Disconnect() {
	if in.cli != nil && in.cli.IsConnected() {
		in.cli.Disconnect(250)
	}
}
