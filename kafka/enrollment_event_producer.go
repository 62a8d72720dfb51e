package kafka

import (
	"context"
	"encoding/json"
	"time"

	"enrollment-service/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer used by the producer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type EnrollmentEventProducer struct {
	writer MessageWriter
	topic  string
	logger *zap.Logger
}

func NewEnrollmentEventProducer(brokers []string, topic string, logger *zap.Logger) *EnrollmentEventProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 5 * time.Second,
	}
	logger.Info("Kafka producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &EnrollmentEventProducer{writer: w, topic: topic, logger: logger}
}

// NewEnrollmentEventProducerWithWriter is used by tests.
func NewEnrollmentEventProducerWithWriter(w MessageWriter, topic string, logger *zap.Logger) *EnrollmentEventProducer {
	return &EnrollmentEventProducer{writer: w, topic: topic, logger: logger}
}

// PublishEnrollmentEvent writes the event keyed by enrollment id so all
// events for one enrollment land on the same partition.
func (p *EnrollmentEventProducer) PublishEnrollmentEvent(ctx context.Context, event models.EnrollmentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.EnrollmentID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to send enrollment event", zap.String("type", event.Type), zap.Error(err))
		return err
	}

	p.logger.Debug("Sent enrollment event",
		zap.String("type", event.Type),
		zap.String("enrollment_id", event.EnrollmentID),
	)
	return nil
}

func (p *EnrollmentEventProducer) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Warn("Kafka producer close failed", zap.Error(err))
		return
	}
	p.logger.Info("Kafka producer closed")
}
