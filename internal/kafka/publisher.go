// Package kafka publishes guardian engine events to Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/elder-shield/guardian-engine/internal/config"
)

// Publisher is the event publishing abstraction. The orchestrator publishes
// best-effort: a failed publish is logged, never surfaced to the caller.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
	Close() error
}

// Writer publishes JSON-encoded events via kafka-go.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka publisher for the configured brokers.
func NewWriter(cfg config.KafkaConfig, logger *slog.Logger) *Writer {
	return &Writer{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Balancer:     &kafkago.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafkago.RequireOne,
		},
		logger: logger,
	}
}

func (w *Writer) Publish(ctx context.Context, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	err = w.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return errors.Wrapf(err, "publish to %s", topic)
	}
	w.logger.Debug("event published", "topic", topic, "key", key)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// NopPublisher discards all events. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
