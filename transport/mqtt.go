package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Swind/choreo/core"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Broker         string // host:port or a full tcp:// URL
	ClientID       string
	Topic          string
	QoS            byte
	ConnectTimeout time.Duration // default 5s
}

func (o MQTTOptions) brokerURL() string {
	if strings.Contains(o.Broker, "://") {
		return o.Broker
	}
	return fmt.Sprintf("tcp://%s", o.Broker)
}

func (o MQTTOptions) connectTimeout() time.Duration {
	if o.ConnectTimeout <= 0 {
		return 5 * time.Second
	}
	return o.ConnectTimeout
}

// NewMQTTClient builds a client that reconnects on its own.
func NewMQTTClient(opts MQTTOptions, logger core.Logger) mqtt.Client {
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.brokerURL())
	co.SetClientID(opts.ClientID)
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(2 * time.Second)
	co.SetMaxReconnectInterval(30 * time.Second)

	co.OnConnect = func(c mqtt.Client) {
		logger.Info("mqtt connection established",
			core.F("broker", opts.Broker),
			core.F("client_id", opts.ClientID))
	}
	co.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect",
			core.F("error", err),
			core.F("broker", opts.Broker))
	}
	return mqtt.NewClient(co)
}

func connectMQTT(client mqtt.Client, opts MQTTOptions) error {
	if client.IsConnected() {
		return nil
	}
	token := client.Connect()
	if !token.WaitTimeout(opts.connectTimeout()) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// =============================================================================
// MQTTSource
// =============================================================================

// MQTTSource subscribes to one topic and forwards its payloads.
type MQTTSource struct {
	client mqtt.Client
	opts   MQTTOptions
	logger core.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewMQTTSource creates a source with its own client.
func NewMQTTSource(opts MQTTOptions, logger core.Logger) *MQTTSource {
	return NewMQTTSourceWithClient(NewMQTTClient(opts, logger), opts, logger)
}

// NewMQTTSourceWithClient creates a source on an existing client.
func NewMQTTSourceWithClient(client mqtt.Client, opts MQTTOptions, logger core.Logger) *MQTTSource {
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &MQTTSource{
		client: client,
		opts:   opts,
		logger: logger,
		closed: make(chan struct{}),
	}
}

// Listen connects, subscribes and blocks until ctx ends or Close.
func (s *MQTTSource) Listen(ctx context.Context, handler Handler) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	s.logger.Info("connecting to mqtt broker", core.F("broker", s.opts.Broker))
	if err := connectMQTT(s.client, s.opts); err != nil {
		return err
	}

	// paho delivers messages for one subscription in order on its router goroutine.
	token := s.client.Subscribe(s.opts.Topic, s.opts.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	})
	if !token.WaitTimeout(s.opts.connectTimeout()) {
		return fmt.Errorf("mqtt subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscription failed: %w", err)
	}
	s.logger.Info("listening for events", core.F("topic", s.opts.Topic), core.F("qos", s.opts.QoS))

	select {
	case <-ctx.Done():
	case <-s.closed:
	}

	if s.client.IsConnected() {
		s.client.Unsubscribe(s.opts.Topic).WaitTimeout(time.Second)
	}
	return nil
}

// Close stops Listen and disconnects the client.
func (s *MQTTSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.client.IsConnected() {
			s.client.Disconnect(250)
		}
	})
	return nil
}

// =============================================================================
// MQTTPublisher
// =============================================================================

// Publisher sends one payload.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// MQTTPublisher publishes payloads to one topic.
type MQTTPublisher struct {
	client mqtt.Client
	opts   MQTTOptions
}

// NewMQTTPublisher connects client and returns a publisher for opts.Topic.
func NewMQTTPublisher(client mqtt.Client, opts MQTTOptions) (*MQTTPublisher, error) {
	if err := connectMQTT(client, opts); err != nil {
		return nil, err
	}
	return &MQTTPublisher{client: client, opts: opts}, nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, payload []byte) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	token := p.client.Publish(p.opts.Topic, p.opts.QoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Second):
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
