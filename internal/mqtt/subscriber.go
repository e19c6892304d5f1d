package mqtt

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"ph-monitor/internal/models"
)

// Subscriber handles MQTT subscriptions and writes state changes to a channel
type Subscriber struct {
	client mqtt.Client

	// Output channel (written by subscriber, read by the sensor service)
	ChangeChan chan models.StateChange

	phTopic string
	timeout time.Duration
	now     func() time.Time

	mu   sync.Mutex
	last map[string]*models.RawState
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	PHTopic     string        // e.g., "sensor/+/ph"
	SendTimeout time.Duration // how long to wait on a full channel before dropping
}

// NewSubscriber creates a new MQTT subscriber writing to changeChan
func NewSubscriber(client mqtt.Client, config SubscriberConfig, changeChan chan models.StateChange) *Subscriber {
	timeout := config.SendTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Subscriber{
		client:     client,
		ChangeChan: changeChan,
		phTopic:    config.PHTopic,
		timeout:    timeout,
		now:        time.Now,
		last:       make(map[string]*models.RawState),
	}
}

// SubscribeAll subscribes to all configured sensor topics
func (s *Subscriber) SubscribeAll() error {
	if s.phTopic == "" {
		return fmt.Errorf("no pH topic configured")
	}
	token := s.client.Subscribe(s.phTopic, 1, s.handlePH)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to pH topic: %w", token.Error())
	}
	slog.Info("subscribed to pH topic", "component", "mqtt", "topic", s.phTopic)
	return nil
}

// handlePH turns a pH message into a StateChange carrying the previous raw
// state of the same source
func (s *Subscriber) handlePH(client mqtt.Client, msg mqtt.Message) {
	// Extract source ID from topic (sensor/{source}/ph)
	source := extractDeviceID(msg.Topic())
	if source == "" {
		slog.Warn("could not extract source from topic", "component", "mqtt", "topic", msg.Topic())
		return
	}

	value, ts, err := ParsePayload(msg.Payload(), s.now())
	if err != nil {
		slog.Warn("dropping malformed pH message", "component", "mqtt", "source", source, "error", err)
		return
	}

	next := &models.RawState{Source: source, Timestamp: ts, Value: value}

	s.mu.Lock()
	prev := s.last[source]
	s.last[source] = next
	s.mu.Unlock()

	slog.Debug("received pH state", "component", "mqtt", "source", source, "value", value)

	// Write to channel (non-blocking with timeout)
	select {
	case s.ChangeChan <- models.StateChange{Old: prev, New: next}:
	case <-time.After(s.timeout):
		slog.Warn("change channel full, dropping message", "component", "mqtt", "source", source)
	}
}

// extractDeviceID extracts the source id from an MQTT topic
// Example: "sensor/sensor.tank_ph/ph" -> "sensor.tank_ph"
func extractDeviceID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}
