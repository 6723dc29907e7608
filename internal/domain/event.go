package domain

import (
	"context"
	"time"
)

// EventStatus tracks the lifecycle state of a calendar event.
type EventStatus int

const (
	StatusScheduled EventStatus = iota
	StatusCancelled
	StatusCompleted
)

// Event is the aggregate root for a calendar event. StartDate, EndDate and
// the child notification dates are stored in UTC; Timezone holds the IANA
// zone name used for display conversion. ID is the storage surrogate key,
// EventID the external identifier assigned at creation and never changed.
type Event struct {
	ID               int64           `json:"id"`
	EventID          string          `json:"event_id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Location         string          `json:"location"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	Timezone         string          `json:"timezone"`
	Status           EventStatus     `json:"status"`
	IsDeleted        bool            `json:"is_deleted"`
	CreatedBy        string          `json:"created_by"`
	CreatedDate      time.Time       `json:"created_date"`
	LastModifiedBy   string          `json:"last_modified_by"`
	LastModifiedDate time.Time       `json:"last_modified_date"`
	Invitees         []*Invitation   `json:"invitees"`
	Notifications    []*Notification `json:"notifications"`
}

// Invitation is a child row of Event. InviteeEmail is the business key:
// at most one invitation per email exists within a single event.
type Invitation struct {
	ID           int64     `json:"id"`
	EventID      int64     `json:"event_id"`
	InviteeEmail string    `json:"invitee_email"`
	CreatedBy    string    `json:"created_by"`
	CreatedDate  time.Time `json:"created_date"`
}

// Notification is a reminder child row of Event. NotificationDate (UTC) is
// the business key within a single event's notification set.
type Notification struct {
	ID               int64     `json:"id"`
	EventID          int64     `json:"event_id"`
	NotificationDate time.Time `json:"notification_date"`
	CreatedBy        string    `json:"created_by"`
	CreatedDate      time.Time `json:"created_date"`
}

// UpdatePlan is the outcome of reconciling an incoming event against its
// persisted version: the root with scalar fields overwritten plus the
// child-row insert and delete sets, keyed by business key. The repository
// applies the whole plan in one transaction.
type UpdatePlan struct {
	Event               *Event
	AddInvitees         []*Invitation
	RemoveInvitees      []*Invitation
	AddNotifications    []*Notification
	RemoveNotifications []*Notification
}

// EventRepository defines the interface for event storage.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	// GetByEventID loads the event and both child collections, or ErrNotFound.
	GetByEventID(ctx context.Context, eventID string) (*Event, error)
	// ListByUser returns raw rows for the user; when filterByWeek is true the
	// result is restricted to events starting no earlier than three days ago
	// and ending no later than three days from now. Soft-deleted rows are
	// included; filtering them is the caller's concern.
	ListByUser(ctx context.Context, userID string, filterByWeek bool) ([]*Event, error)
	// ApplyUpdate persists an UpdatePlan atomically: child inserts and
	// deletes plus the root scalar update commit together or not at all.
	ApplyUpdate(ctx context.Context, plan *UpdatePlan) (*Event, error)
	SoftDelete(ctx context.Context, event *Event) error
}

// EventCache keeps a per-user snapshot of the week-filtered event list.
// The cache is derived and expendable; the repository stays authoritative.
type EventCache interface {
	ReadOrPopulate(ctx context.Context, userID string) ([]*Event, error)
	OnCreate(ctx context.Context, event *Event) error
	OnUpdate(ctx context.Context, event *Event) error
	OnDelete(ctx context.Context, event *Event) error
}

// EventService defines the lifecycle operations exposed to the delivery layer.
type EventService interface {
	CreateEvent(ctx context.Context, event *Event) (string, error)
	UpdateEvent(ctx context.Context, event *Event, modifiedBy string) error
	DeleteEvent(ctx context.Context, eventID, requesterID string) error
	GetEventByID(ctx context.Context, eventID, requesterID string) (*Event, error)
	ListEvents(ctx context.Context, userID string, filterByWeek bool) ([]*Event, error)
}
