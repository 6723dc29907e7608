package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"calendarinvitation/internal/domain"
)

// Handler processes one decoded event-created message.
type Handler func(ctx context.Context, msg *domain.NewEventMessage) error

// Consumer reads event-created messages from Kafka and feeds them to a
// handler. Handler failures are logged and the offset advances anyway;
// redelivery is not attempted here.
type Consumer struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

func NewConsumer(brokers []string, groupID, topic string, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:     brokers,
			GroupID:     groupID,
			Topic:       topic,
			StartOffset: kafkago.FirstOffset,
		}),
		logger: logger,
	}
}

// Run blocks consuming messages until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	c.logger.Info("consuming new event messages", "topic", c.reader.Config().Topic)
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		var msg domain.NewEventMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			c.logger.Error("skipping undecodable message", "offset", m.Offset, "error", err)
			continue
		}
		c.logger.Info("new event message received", "event_id", msg.EventID, "invitee", msg.InviteeEmail)
		if err := handle(ctx, &msg); err != nil {
			c.logger.Error("handle new event message failed", "event_id", msg.EventID, "invitee", msg.InviteeEmail, "error", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
