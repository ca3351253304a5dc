package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/davidleathers/transaction-monitor/internal/infrastructure/config"
)

// MessageWriter is the subset of kafka-go's Writer used for publishing
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes events to per-type topics, keyed by aggregate id.
type KafkaPublisher struct {
	writer       MessageWriter
	topics       map[Type]string
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewKafkaWriter builds a writer that routes by message topic.
func NewKafkaWriter(cfg config.KafkaConfig) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafkago.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaPublisher maps event types onto the configured topics.
func NewKafkaPublisher(writer MessageWriter, cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{
		writer: writer,
		topics: map[Type]string{
			TypeTransactionScored: cfg.TopicScored,
			TypeAlertCreated:      cfg.TopicAlertCreated,
			TypeAlertUpdated:      cfg.TopicAlertUpdated,
		},
		writeTimeout: cfg.WriteTimeout,
		logger:       logger,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	topic, ok := p.topics[event.Type]
	if !ok || topic == "" {
		return fmt.Errorf("no kafka topic for event type %s", event.Type)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	if p.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.writeTimeout)
		defer cancel()
	}

	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(event.AggregateID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "event-id", Value: []byte(event.ID.String())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}

	p.logger.Debug("event published",
		zap.String("topic", topic),
		zap.String("event_id", event.ID.String()),
		zap.String("aggregate_id", event.AggregateID))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
