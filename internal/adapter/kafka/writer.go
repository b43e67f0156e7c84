// Package kafka publishes escalated alerts to a Kafka topic. It is the
// optional external escalation hook for CRITICAL anomalies,
// feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/temp-anomaly-service/internal/alert"
	"github.com/couchcryptid/temp-anomaly-service/internal/config"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces alert records to the configured alert topic.
// It implements alert.Escalator.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the alert topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Escalate serializes and publishes one alert record. Called
// synchronously from the alert sink for CRITICAL anomalies; a failure
// here is reported by the sink, never propagated into the engine.
func (p *Publisher) Escalate(ctx context.Context, rec alert.Record) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an alert record into a Kafka message
// keyed by the anomaly timestamp for per-series ordering.
func serializeToMessage(rec alert.Record) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Timestamp.UTC().Format(time.RFC3339)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "severity", Value: []byte(rec.Severity.String())},
			{Key: "detected_at", Value: []byte(rec.DetectedAt.Format(time.RFC3339))},
		},
	}, nil
}
