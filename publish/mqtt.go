// Package publish implements the notification transports the supervisor
// hands admitted spots and status transitions to: an MQTT publisher for
// real deployments and a log-only publisher for first runs without a
// broker.
package publish

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"

	"spotfeed/cluster"
	"spotfeed/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultSpotTopic   = "spotfeed/spots"
	defaultStatusTopic = "spotfeed/status"
)

// MQTTPublisher pushes spot and status events as JSON onto two topics.
// Reconnection is handled by the MQTT library; a dropped broker connection
// never propagates back into the ingestion pipeline.
type MQTTPublisher struct {
	broker      string
	port        int
	spotTopic   string
	statusTopic string
	client      mqtt.Client
}

// NewMQTTPublisher builds a publisher from the transport settings.
func NewMQTTPublisher(cfg config.MQTTConfig) *MQTTPublisher {
	spotTopic := cfg.SpotTopic
	if spotTopic == "" {
		spotTopic = defaultSpotTopic
	}
	statusTopic := cfg.StatusTopic
	if statusTopic == "" {
		statusTopic = defaultStatusTopic
	}
	return &MQTTPublisher{
		broker:      cfg.Broker,
		port:        cfg.Port,
		spotTopic:   spotTopic,
		statusTopic: statusTopic,
	}
}

// Connect establishes the broker connection.
func (p *MQTTPublisher) Connect() error {
	opts := mqtt.NewClientOptions()
	brokerURL := fmt.Sprintf("tcp://%s:%d", p.broker, p.port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(fmt.Sprintf("spotfeed-%d", time.Now().Unix()))
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Printf("MQTT: connected to %s", brokerURL)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("MQTT: connection lost: %v (will reconnect)", err)
	})

	p.client = mqtt.NewClient(opts)

	log.Printf("MQTT: connecting to broker at %s...", brokerURL)
	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// PublishSpot pushes one admitted spot event.
func (p *MQTTPublisher) PublishSpot(ev cluster.SpotEvent) error {
	return p.publish(p.spotTopic, ev)
}

// PublishStatus pushes one status transition.
func (p *MQTTPublisher) PublishStatus(ev cluster.StatusEvent) error {
	return p.publish(p.statusTopic, ev)
}

func (p *MQTTPublisher) publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	token := p.client.Publish(topic, 0, false, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.client != nil {
		p.client.Disconnect(250)
	}
}
