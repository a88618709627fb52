package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ms-reservation/internal/config"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

func (p *Producer) publish(ctx context.Context, topic, key string, payload interface{}) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", topic, err)
	}

	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s %d bytes", key, len(msgBytes)))

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
}

// PublishOrderCreated streams the order creation event to Kafka
func (p *Producer) PublishOrderCreated(ctx context.Context, evt models.OrderEvent) error {
	return p.publish(ctx, p.Topics.OrderCreated, strconv.FormatInt(evt.OrderID, 10), evt)
}

// PublishOrderCancelled streams the order cancellation event to Kafka
func (p *Producer) PublishOrderCancelled(ctx context.Context, evt models.OrderEvent) error {
	return p.publish(ctx, p.Topics.OrderCancelled, strconv.FormatInt(evt.OrderID, 10), evt)
}

// PublishSeatStatus is keyed by event id so that changes of one event stay ordered.
func (p *Producer) PublishSeatStatus(ctx context.Context, evt models.SeatStatusChangeEvent) error {
	return p.publish(ctx, p.Topics.SeatStatus, strconv.FormatInt(evt.EventID, 10), evt)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
