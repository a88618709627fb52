package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type SeatStatusHandler func(ctx context.Context, evt models.SeatStatusChangeEvent) error

type Consumer struct {
	reader MessageReader
	topic  string
	logger *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group.
// Each instance uses its own group so that every instance sees every change.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, topic: topic, logger: log}
}

func NewConsumerWithReader(reader MessageReader, topic string, log *logger.Logger) *Consumer {
	return &Consumer{reader: reader, topic: topic, logger: log}
}

// Start consumes seat status messages until ctx is done. Undecodable
// messages and handler failures are logged and committed; the cache TTL
// covers whatever they would have changed.
func (c *Consumer) Start(ctx context.Context, handler SeatStatusHandler) error {
	c.logger.LogKafka("CONSUME", c.topic, "consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.LogKafka("CONSUME", c.topic, "consumer stopped")
				return nil
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		var evt models.SeatStatusChangeEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message at offset %d: %v", msg.Offset, err))
		} else if err := handler(ctx, evt); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Seat status %s not applied: %v", evt.MessageID, err))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("KAFKA", fmt.Sprintf("Failed to commit offset %d: %v", msg.Offset, err))
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
