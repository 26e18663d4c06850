package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/feedfuse/feedfuse/internal/config"
	"github.com/feedfuse/feedfuse/pkg/models"
)

// SignalPublisher republishes processed signals for downstream consumers.
// Publish failures are non-fatal to the ingestion pipeline.
type SignalPublisher struct {
	writer *kafka.Writer
	topic  string
	logger *logrus.Logger
}

func NewSignalPublisher(cfg *config.KafkaConfig, logger *logrus.Logger) *SignalPublisher {
	return &SignalPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topics.ProcessedSignals,
			Balancer:     &kafka.Hash{}, // Key by user id so per-user ordering survives partitioning
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
			BatchSize:    100,
		},
		topic:  cfg.Topics.ProcessedSignals,
		logger: logger,
	}
}

// Publish writes one processed signal to the signals topic.
func (p *SignalPublisher) Publish(ctx context.Context, signal models.Signal) error {
	value, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to marshal signal: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(signal.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "signal_id", Value: []byte(signal.SignalID.String())},
			{Key: "signal_type", Value: []byte(string(signal.Type))},
			{Key: "timestamp", Value: []byte(signal.Timestamp.Format(time.RFC3339))},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"signal_id": signal.SignalID,
			"user_id":   signal.UserID,
			"topic":     p.topic,
		}).Warn("Failed to publish signal")
		return fmt.Errorf("failed to write signal to Kafka: %w", err)
	}

	return nil
}

// Stats exposes writer counters for the health endpoint.
func (p *SignalPublisher) Stats() map[string]interface{} {
	stats := p.writer.Stats()
	return map[string]interface{}{
		"messages_written": stats.Messages,
		"bytes_written":    stats.Bytes,
		"write_errors":     stats.Errors,
		"retries":          stats.Retries,
	}
}

func (p *SignalPublisher) Close() error {
	return p.writer.Close()
}
