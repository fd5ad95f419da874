package mqtt

import (
	"encoding/json"

	"fleetsense/core/model"
	"fleetsense/infra/logger"
	"fleetsense/internal/eventbus"
)

// AlertPublisher forwards emitted alerts to per-vehicle MQTT topics so fleet
// operators can subscribe to them.
type AlertPublisher struct {
	cli    pahoClient
	cfg    Config
	log    logger.Logger
	sub    <-chan model.Alert
	bus    *eventbus.Bus[model.Alert]
	closed chan struct{}
}

// NewAlertPublisher connects to the broker and starts forwarding alerts from
// the bus until Close is called.
func NewAlertPublisher(cfg Config, bus *eventbus.Bus[model.Alert]) (*AlertPublisher, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p := &AlertPublisher{
		cli:    c,
		cfg:    cfg,
		log:    logger.New("mqtt_alerts"),
		sub:    bus.Subscribe(),
		bus:    bus,
		closed: make(chan struct{}),
	}
	go p.run()
	return p, nil
}

func (p *AlertPublisher) run() {
	defer close(p.closed)
	for al := range p.sub {
		payload, err := json.Marshal(al)
		if err != nil {
			p.log.Errorf("encode alert: %v", err)
			continue
		}
		topic := p.cfg.AlertTopicPrefix + "/" + al.VehicleID
		if token := p.cli.Publish(topic, p.cfg.QoS, false, payload); token.Wait() && token.Error() != nil {
			p.log.Errorf("publish alert to %s: %v", topic, token.Error())
		}
	}
}

// Close unsubscribes from the bus and disconnects from the broker.
func (p *AlertPublisher) Close() {
	p.bus.Unsubscribe(p.sub)
	<-p.closed
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
