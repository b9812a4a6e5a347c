package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type MQTTOptions struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	// ConnectTimeout bounds the initial connection; default 10s.
	ConnectTimeout time.Duration
}

// MQTTPublisher publishes to one topic.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// DialMQTT connects to the broker. The client reconnects on its own after
// the first successful connection.
func DialMQTT(opts MQTTOptions) (*MQTTPublisher, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(opts.ConnectTimeout)
	c := mqtt.NewClient(co)
	token := c.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("telemetry: mqtt connect %s: timeout", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("telemetry: mqtt connect %s: %w", opts.Broker, err)
	}
	return NewMQTTPublisher(c, opts.Topic, opts.QoS), nil
}

// NewMQTTPublisher wraps an existing client.
func NewMQTTPublisher(c mqtt.Client, topic string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: c, topic: topic, qos: qos}
}

func (p *MQTTPublisher) Publish(ctx context.Context, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("telemetry: marshal: %w", err)
	}
	token := p.client.Publish(p.topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("telemetry: mqtt publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
