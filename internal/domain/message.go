package domain

import (
	"context"
	"time"
)

// NewEventTopic is the queue topic for event-created notifications.
const NewEventTopic = "new-calendar-event"

// NewEventMessage is published once per invitee when an event is created.
// The downstream notifier turns each message into an invitation email.
type NewEventMessage struct {
	EventID      string    `json:"event_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Timezone     string    `json:"timezone"`
	InviteeEmail string    `json:"invitee_email"`
}

// NotificationPublisher enqueues event-created messages for delivery.
// Delivery retries and ordering are the transport's concern.
type NotificationPublisher interface {
	Publish(ctx context.Context, msg *NewEventMessage, topic string) error
}
