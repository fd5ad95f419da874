package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"fleetsense/core/model"
	"fleetsense/core/pipeline"
	"fleetsense/core/telemetry"
	"fleetsense/internal/eventbus"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

type fakeSubmitter struct {
	mu      sync.Mutex
	samples []telemetry.RawSample
	err     error
}

func (f *fakeSubmitter) Submit(raw telemetry.RawSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.samples = append(f.samples, raw)
	return nil
}

func withMockClient(t *testing.T) *mockClient {
	t.Helper()
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
	return mc
}

func TestIngressSubscribesAndSubmits(t *testing.T) {
	mc := withMockClient(t)
	sub := &fakeSubmitter{}
	in, err := NewIngress(Config{Broker: "tcp://localhost:1883"}, sub)
	if err != nil {
		t.Fatalf("ingress: %v", err)
	}
	defer in.Disconnect()

	if len(mc.subscribed) != 1 || mc.subscribed[0].topic != "fleet/telemetry/+" {
		t.Fatalf("subscription missing: %#v", mc.subscribed)
	}

	payload := `{"vehicle_id":"veh1","timestamp":"2025-06-01T08:00:00Z","battery_voltage":12.4}`
	mc.subscribed[0].handler(nil, mockMessage{p: []byte(payload), topic: "fleet/telemetry/veh1"})

	if len(sub.samples) != 1 {
		t.Fatalf("sample not submitted: %d", len(sub.samples))
	}
	got := sub.samples[0]
	if got.VehicleID != "veh1" || got.BatteryVoltage == nil || *got.BatteryVoltage != 12.4 {
		t.Fatalf("decoded sample %#v", got)
	}
}

func TestIngressDropsMalformedPayload(t *testing.T) {
	mc := withMockClient(t)
	sub := &fakeSubmitter{}
	in, err := NewIngress(Config{Broker: "tcp://localhost:1883"}, sub)
	if err != nil {
		t.Fatalf("ingress: %v", err)
	}
	defer in.Disconnect()

	mc.subscribed[0].handler(nil, mockMessage{p: []byte("not json")})
	if len(sub.samples) != 0 {
		t.Fatalf("malformed payload reached the pipeline")
	}
}

func TestIngressToleratesFullQueue(t *testing.T) {
	mc := withMockClient(t)
	sub := &fakeSubmitter{err: pipeline.ErrQueueFull}
	in, err := NewIngress(Config{Broker: "tcp://localhost:1883"}, sub)
	if err != nil {
		t.Fatalf("ingress: %v", err)
	}
	defer in.Disconnect()

	payload := `{"vehicle_id":"veh1","timestamp":"2025-06-01T08:00:00Z"}`
	// must not panic or block
	mc.subscribed[0].handler(nil, mockMessage{p: []byte(payload)})
}

func TestAlertPublisherForwardsAlerts(t *testing.T) {
	mc := withMockClient(t)
	bus := eventbus.New[model.Alert]()
	pub, err := NewAlertPublisher(Config{Broker: "tcp://localhost:1883"}, bus)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}

	bus.Publish(model.Alert{VehicleID: "veh1", Component: model.ComponentTires, Risk: model.RiskHigh})

	deadline := time.After(time.Second)
	for {
		if len(mc.publishedTopics()) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("alert never published")
		case <-time.After(5 * time.Millisecond):
		}
	}
	pub.Close()
	if got := mc.publishedTopics()[0]; got != "fleet/alerts/veh1" {
		t.Fatalf("published to %s", got)
	}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	mu         sync.Mutex
	opts       *paho.ClientOptions
	subscribed []struct {
		topic   string
		qos     byte
		handler paho.MessageHandler
	}
	published []struct {
		topic string
		qos   byte
	}
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, _ interface{}) paho.Token {
	m.mu.Lock()
	m.published = append(m.published, struct {
		topic string
		qos   byte
	}{topic, qos})
	m.mu.Unlock()
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic   string
		qos     byte
		handler paho.MessageHandler
	}{topic, qos, cb})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

func (m *mockClient) publishedTopics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	topics := make([]string, 0, len(m.published))
	for _, p := range m.published {
		topics = append(topics, p.topic)
	}
	return topics
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	p     []byte
	topic string
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
