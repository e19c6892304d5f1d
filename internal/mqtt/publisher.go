package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"ph-monitor/internal/models"
)

const publishTimeout = 5 * time.Second

// Publisher publishes reports as retained messages, one topic per source
type Publisher struct {
	client mqtt.Client

	// Topic pattern
	reportTopic string // e.g., "ph/{source}/report"
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	ReportTopic string // e.g., "ph/{source}/report"
}

// NewPublisher creates a new MQTT report publisher
func NewPublisher(client mqtt.Client, config PublisherConfig) *Publisher {
	return &Publisher{
		client:      client,
		reportTopic: config.ReportTopic,
	}
}

func (p *Publisher) Name() string { return "mqtt" }

// Deliver publishes the report retained so late subscribers see the last state
func (p *Publisher) Deliver(ctx context.Context, report models.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	topic := formatTopic(p.reportTopic, report.Source)

	token := p.client.Publish(topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("failed to publish report: timed out on %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish report: %w", token.Error())
	}

	slog.Debug("published report", "component", "mqtt", "source", report.Source, "topic", topic)
	return nil
}

// formatTopic replaces the {source} placeholder with the source id
func formatTopic(topicPattern, source string) string {
	return strings.ReplaceAll(topicPattern, "{source}", source)
}
