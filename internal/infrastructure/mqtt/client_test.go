package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/arentkievits/odemis/internal/infrastructure/config"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

var _ pahomqtt.Message = fakeMessage{}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

// disconnected returns a client that was never connected.
func disconnected() *Client {
	return &Client{subscriptions: make(map[string]subscription)}
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		got, want string
	}{
		{topics.SystemStatus(), "odemis/system/status"},
		{topics.PathMode(), "odemis/core/path/mode"},
		{topics.PathTransition(), "odemis/core/path/transition"},
		{topics.ActuatorCommand("lens-switch"), "odemis/command/actuator/lens-switch"},
		{topics.ActuatorAck("lens-switch"), "odemis/ack/actuator/lens-switch"},
		{topics.ActuatorState("spectrograph"), "odemis/state/actuator/spectrograph"},
		{topics.AllActuatorAcks(), "odemis/ack/actuator/+"},
		{topics.AllActuatorStates(), "odemis/state/actuator/+"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestTopics_ActuatorRole(t *testing.T) {
	tests := []struct {
		topic  string
		want   string
		wantOk bool
	}{
		{"odemis/ack/actuator/lens-switch", "lens-switch", true},
		{"odemis/state/actuator/spec-det-selector", "spec-det-selector", true},
		{"odemis/core/path/mode", "", false},
		{"odemis/ack/actuator/", "", false},
		{"other/ack/actuator/x", "", false},
		{"odemis/ack/actuator/x/extra", "", false},
	}
	for _, tt := range tests {
		got, ok := Topics{}.ActuatorRole(tt.topic)
		if got != tt.want || ok != tt.wantOk {
			t.Errorf("ActuatorRole(%q) = (%q, %v), want (%q, %v)", tt.topic, got, ok, tt.want, tt.wantOk)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker:    config.MQTTBrokerConfig{Host: "broker.lab", Port: 8883, TLS: true, ClientID: "pathd"},
		Auth:      config.MQTTAuthConfig{Username: "odemis", Password: "secret"},
		Reconnect: config.MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 30},
	}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://broker.lab:8883" {
		t.Errorf("Servers = %v, want ssl://broker.lab:8883", opts.Servers)
	}
	if opts.ClientID != "pathd" || opts.Username != "odemis" || opts.Password != "secret" {
		t.Errorf("identity = %q/%q", opts.ClientID, opts.Username)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("auto-reconnect and clean session should be enabled")
	}
	if opts.TLSConfig == nil {
		t.Error("TLS config missing")
	}
	if !opts.WillEnabled || opts.WillTopic != "odemis/system/status" || !opts.WillRetained {
		t.Errorf("LWT = %v %q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	var will statusMessage
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("LWT payload: %v", err)
	}
	if will.Status != "offline" || will.Reason != "unexpected_disconnect" || will.ClientID != "pathd" {
		t.Errorf("LWT payload = %+v", will)
	}
}

func TestBuildClientOptions_PlainTCP(t *testing.T) {
	opts := buildClientOptions(config.MQTTConfig{Broker: config.MQTTBrokerConfig{Host: "localhost", Port: 1883}})

	if opts.Servers[0].String() != "tcp://localhost:1883" {
		t.Errorf("Servers[0] = %v", opts.Servers[0])
	}
	if opts.Username != "" {
		t.Error("username set without credentials")
	}
}

func TestClient_ValidationBeforeConnection(t *testing.T) {
	c := disconnected()
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"publish empty topic", c.Publish("", nil, 1, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("t", nil, 3, false), ErrInvalidQoS},
		{"publish too large", c.Publish("t", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"publish disconnected", c.Publish("t", []byte("{}"), 1, false), ErrNotConnected},
		{"subscribe empty topic", c.Subscribe("", 1, noop), ErrInvalidTopic},
		{"subscribe bad qos", c.Subscribe("t", 5, noop), ErrInvalidQoS},
		{"subscribe nil handler", c.Subscribe("t", 1, nil), ErrSubscribeFailed},
		{"subscribe disconnected", c.Subscribe("t", 1, noop), ErrNotConnected},
		{"unsubscribe empty", c.Unsubscribe(""), ErrInvalidTopic},
		{"unsubscribe disconnected", c.Unsubscribe("t"), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.wantErr) {
				t.Errorf("error = %v, want %v", tt.err, tt.wantErr)
			}
		})
	}

	if c.SubscriptionCount() != 0 {
		t.Error("failed subscriptions must not be tracked")
	}
}

func TestClient_HealthCheck(t *testing.T) {
	c := disconnected()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) = %v, want context.Canceled", err)
	}
}

func TestClient_CloseWithoutConnection(t *testing.T) {
	if err := disconnected().Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestClient_HandleDisconnectNotifies(t *testing.T) {
	c := disconnected()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	var got error
	c.SetOnDisconnect(func(err error) { got = err })

	lost := errors.New("broker gone")
	c.handleDisconnect(lost)

	if !errors.Is(got, lost) {
		t.Errorf("callback error = %v", got)
	}
	if c.IsConnected() {
		t.Error("client reports connected after disconnect")
	}
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v", logger.warns)
	}
}

func TestWrapHandler(t *testing.T) {
	c := disconnected()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	var received string
	c.wrapHandler(func(topic string, payload []byte) error {
		received = topic + "=" + string(payload)
		return nil
	})(nil, fakeMessage{topic: "odemis/ack/actuator/x", payload: []byte("ok")})
	if received != "odemis/ack/actuator/x=ok" {
		t.Errorf("handler got %q", received)
	}

	c.wrapHandler(func(string, []byte) error {
		return errors.New("bad payload")
	})(nil, fakeMessage{topic: "t"})

	c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, fakeMessage{topic: "t"})

	if len(logger.warns) != 1 || len(logger.errors) != 1 {
		t.Errorf("warns = %v, errors = %v; want one of each", logger.warns, logger.errors)
	}
}
