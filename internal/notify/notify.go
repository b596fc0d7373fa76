// Package notify announces new buildings to outside listeners.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/poku-e/invisible-city/internal/city"
)

// Publisher is told about every building after it has been stored.
type Publisher interface {
	BuildingAdded(ctx context.Context, b city.Building) error
	Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) BuildingAdded(context.Context, city.Building) error { return nil }
func (Nop) Close() {}

type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// MQTT publishes each new building as its API record JSON.
type MQTT struct {
	client mqtt.Client
	topic  string
	qos    byte
	logger *zap.Logger
}

func NewMQTT(opts MQTTOptions, logger *zap.Logger) (*MQTT, error) {
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.SetCleanSession(true)
	co.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(co)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.Info("mqtt connected", zap.String("broker", opts.Broker), zap.String("topic", opts.Topic))
	return newMQTT(client, opts.Topic, opts.QoS, logger), nil
}

func newMQTT(client mqtt.Client, topic string, qos byte, logger *zap.Logger) *MQTT {
	return &MQTT{client: client, topic: topic, qos: qos, logger: logger}
}

func (p *MQTT) BuildingAdded(ctx context.Context, b city.Building) error {
	payload, err := Payload(b)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", p.topic, err)
	}
	p.logger.Debug("building event published", zap.Int64("id", b.ID), zap.String("topic", p.topic))
	return nil
}

func (p *MQTT) Close() {
	p.client.Disconnect(250)
}

// Payload is the event body: the same JSON the create endpoint returns.
func Payload(b city.Building) ([]byte, error) {
	return json.Marshal(b.Record())
}
