package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"calendarinvitation/internal/domain"
)

// Producer publishes event-created messages to Kafka. One message is written
// per call; fan-out across invitees happens in the service layer.
type Producer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

func NewProducer(brokers []string, logger *slog.Logger) *Producer {
	return &Producer{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Balancer:               &kafkago.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}
}

func (p *Producer) Publish(ctx context.Context, msg *domain.NewEventMessage, topic string) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode new event message: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(msg.EventID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("write message to topic %s: %w", topic, err)
	}
	p.logger.Debug("new event message published", "topic", topic, "event_id", msg.EventID, "invitee", msg.InviteeEmail)
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops messages; used when no broker is configured.
type NoopPublisher struct {
	Logger *slog.Logger
}

func (n *NoopPublisher) Publish(_ context.Context, msg *domain.NewEventMessage, topic string) error {
	n.Logger.Info("message would be published (noop)", "topic", topic, "event_id", msg.EventID, "invitee", msg.InviteeEmail)
	return nil
}
