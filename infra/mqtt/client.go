package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker           string      `json:"broker"`
	ClientID         string      `json:"client_id"`
	Username         string      `json:"username"`
	Password         string      `json:"password"`
	TelemetryTopic   string      `json:"telemetry_topic"`
	AlertTopicPrefix string      `json:"alert_topic_prefix"`
	QoS              byte        `json:"qos"`
	UseTLS           bool        `json:"use_tls"`
	ClientCert       string      `json:"client_cert"`
	ClientKey        string      `json:"client_key"`
	CABundle         string      `json:"ca_bundle"`
	LWTTopic         string      `json:"lwt_topic"`
	LWTPayload       string      `json:"lwt_payload"`
	LWTQoS           byte        `json:"lwt_qos"`
	LWTRetain        bool        `json:"lwt_retain"`
	TLSConfig        *tls.Config `json:"-"`
}

// SetDefaults fills in the default topics and client identity.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "fleetsense"
	}
	if c.TelemetryTopic == "" {
		c.TelemetryTopic = "fleet/telemetry/+"
	}
	if c.AlertTopicPrefix == "" {
		c.AlertTopicPrefix = "fleet/alerts"
	}
}

// pahoClient is the subset of the Paho client used here, extracted for tests.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
