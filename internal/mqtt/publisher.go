// Package mqtt mirrors shutter events onto an MQTT broker for home
// automation integrations.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"shutter-control-backend/config"
	"shutter-control-backend/internal/control"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds
	queueSize         = 64
)

var (
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
)

// client is the part of the paho client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Topics for a prefix.
type Topics struct {
	Prefix string
}

// Command carries every accepted command and scheduled firing.
func (t Topics) Command() string { return t.Prefix + "/command" }

// State carries the last device status, retained.
func (t Topics) State() string { return t.Prefix + "/state" }

// Availability carries "online" or "offline", retained.
func (t Topics) Availability() string { return t.Prefix + "/availability" }

// Publisher queues events and publishes them from Run.
type Publisher struct {
	client client
	topics Topics
	qos    byte
	events chan control.Event
}

// NewPublisher wraps an already connected client.
func NewPublisher(c client, prefix string, qos byte) *Publisher {
	return &Publisher{
		client: c,
		topics: Topics{Prefix: prefix},
		qos:    qos,
		events: make(chan control.Event, queueSize),
	}
}

// Connect dials the broker described by cfg. The broker publishes a
// retained "offline" on the availability topic if the process dies.
func Connect(cfg config.MQTTConfig) (*Publisher, error) {
	topics := Topics{Prefix: cfg.TopicPrefix}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "shutterd-" + uuid.NewString()
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWill(topics.Availability(), "offline", byte(cfg.QoS), true)
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		log.Printf("Connected to MQTT broker %s as %s", cfg.Broker, clientID)
		c.Publish(topics.Availability(), byte(cfg.QoS), true, "online")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v", err)
	})

	c := pahomqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return NewPublisher(c, cfg.TopicPrefix, byte(cfg.QoS)), nil
}

// Notify queues e without blocking. A full queue drops the event.
func (p *Publisher) Notify(e control.Event) {
	select {
	case p.events <- e:
	default:
		log.Printf("MQTT queue full, dropping %s event", e.Kind)
	}
}

// Run publishes queued events until ctx is cancelled, then marks the
// service offline and disconnects.
func (p *Publisher) Run(ctx context.Context) {
	log.Println("Starting MQTT publisher...")
	for {
		select {
		case e := <-p.events:
			if err := p.publish(e); err != nil {
				log.Printf("Error publishing event: %v", err)
			}
		case <-ctx.Done():
			p.close()
			log.Println("MQTT publisher shutting down.")
			return
		}
	}
}

func (p *Publisher) publish(e control.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	topic, retained := p.topics.Command(), false
	if e.Kind == control.EventStatus {
		topic, retained = p.topics.State(), true
	}

	token := p.client.Publish(topic, p.qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

func (p *Publisher) close() {
	token := p.client.Publish(p.topics.Availability(), p.qos, true, "offline")
	token.WaitTimeout(publishTimeout)
	p.client.Disconnect(disconnectQuiesce)
}
