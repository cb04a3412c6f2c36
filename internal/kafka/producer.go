package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
)

// Publisher is what the services depend on. Publishing is best-effort: callers log failures
// and carry on.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, e OrderEvent) error
	PublishOrderStatusChanged(ctx context.Context, e OrderEvent) error
	PublishTicketCreated(ctx context.Context, e TicketEvent) error
	PublishTicketStatusChanged(ctx context.Context, e TicketEvent) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	topics config.TopicConfig
	logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &Producer{Writer: writer, topics: topics, logger: log}
}

// NewProducerWithWriter is used by tests to capture messages.
func NewProducerWithWriter(w MessageWriter, topics config.TopicConfig, log *logger.Logger) *Producer {
	return &Producer{Writer: w, topics: topics, logger: log}
}

func (p *Producer) PublishOrderCreated(ctx context.Context, e OrderEvent) error {
	return p.publish(ctx, p.topics.OrderCreated, e.OrderID, e)
}

func (p *Producer) PublishOrderStatusChanged(ctx context.Context, e OrderEvent) error {
	return p.publish(ctx, p.topics.OrderStatusChanged, e.OrderID, e)
}

func (p *Producer) PublishTicketCreated(ctx context.Context, e TicketEvent) error {
	return p.publish(ctx, p.topics.TicketCreated, e.TicketID, e)
}

func (p *Producer) PublishTicketStatusChanged(ctx context.Context, e TicketEvent) error {
	return p.publish(ctx, p.topics.TicketStatus, e.TicketID, e)
}

func (p *Producer) publish(ctx context.Context, topic, key string, v interface{}) error {
	msgBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	p.logger.LogKafka("PUBLISH", topic, key)

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// Nop drops every event. Used when Kafka is disabled.
type Nop struct{}

func (Nop) PublishOrderCreated(context.Context, OrderEvent) error { return nil }
func (Nop) PublishOrderStatusChanged(context.Context, OrderEvent) error { return nil }
func (Nop) PublishTicketCreated(context.Context, TicketEvent) error { return nil }
func (Nop) PublishTicketStatusChanged(context.Context, TicketEvent) error { return nil }
