package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"calendarinvitation/internal/domain"
)

type eventService struct {
	eventRepo      domain.EventRepository
	cache          domain.EventCache
	reconciler     *Reconciler
	publisher      domain.NotificationPublisher
	tz             domain.TimezoneConverter
	logger         *slog.Logger
	contextTimeout time.Duration
}

func NewEventService(eventRepo domain.EventRepository,
	cache domain.EventCache,
	reconciler *Reconciler,
	publisher domain.NotificationPublisher,
	tz domain.TimezoneConverter,
	logger *slog.Logger,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		eventRepo:      eventRepo,
		cache:          cache,
		reconciler:     reconciler,
		publisher:      publisher,
		tz:             tz,
		logger:         logger,
		contextTimeout: timeout,
	}
}

// CreateEvent persists a new event aggregate and fans out one created-event
// message per invitee. The external event id is assigned here and the date
// fields are converted from the event's timezone to UTC before storage.
func (s *eventService) CreateEvent(ctx context.Context, event *domain.Event) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if event.CreatedBy == "" {
		return "", fmt.Errorf("%w: event owner is required", domain.ErrInvalidInput)
	}
	if !event.EndDate.After(event.StartDate) {
		return "", fmt.Errorf("%w: end date must be after start date", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	event.EventID = uuid.NewString()
	event.CreatedDate = now

	startDate, err := s.tz.ToUTC(event.StartDate, event.Timezone)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	endDate, err := s.tz.ToUTC(event.EndDate, event.Timezone)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	event.StartDate = startDate
	event.EndDate = endDate

	event.Invitees = DeduplicateInvitees(event.Invitees)
	for _, inv := range event.Invitees {
		inv.CreatedBy = event.CreatedBy
		inv.CreatedDate = now
	}
	event.Notifications = DeduplicateNotifications(event.Notifications)
	for _, n := range event.Notifications {
		utc, err := s.tz.ToUTC(n.NotificationDate, event.Timezone)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		n.NotificationDate = utc
		n.CreatedBy = event.CreatedBy
		n.CreatedDate = now
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.logger.Error("create event failed", "user", event.CreatedBy, "error", err)
		return "", domain.ErrInternal
	}
	s.logger.Info("event created", "event_id", event.EventID, "user", event.CreatedBy)

	s.publishNewEvent(ctx, event)

	if err := s.cache.OnCreate(ctx, event); err != nil {
		s.logger.Error("event cache create maintenance failed", "event_id", event.EventID, "error", err)
	}

	return event.EventID, nil
}

// publishNewEvent sends one message per invitee so each one can receive a
// personalized invitation. Publishing is best-effort: a failed enqueue is
// logged and does not undo the committed create.
func (s *eventService) publishNewEvent(ctx context.Context, event *domain.Event) {
	for _, inv := range event.Invitees {
		msg := &domain.NewEventMessage{
			EventID:      event.EventID,
			Name:         event.Name,
			Description:  event.Description,
			StartDate:    event.StartDate,
			EndDate:      event.EndDate,
			Timezone:     event.Timezone,
			InviteeEmail: inv.InviteeEmail,
		}
		if err := s.publisher.Publish(ctx, msg, domain.NewEventTopic); err != nil {
			s.logger.Error("publish new event message failed",
				"event_id", event.EventID, "invitee", inv.InviteeEmail, "error", err)
		}
	}
}

// UpdateEvent reconciles the incoming version against the persisted one and
// applies the resulting plan transactionally, then repairs the cache entry.
func (s *eventService) UpdateEvent(ctx context.Context, incoming *domain.Event, modifiedBy string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	dbEvent, err := s.eventRepo.GetByEventID(ctx, incoming.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("event with id %s was not found: %w", incoming.EventID, domain.ErrNotFound)
		}
		s.logger.Error("fetch event for update failed", "event_id", incoming.EventID, "error", err)
		return domain.ErrInternal
	}
	if dbEvent.IsDeleted {
		return fmt.Errorf("event with id %s was not found: %w", incoming.EventID, domain.ErrNotFound)
	}

	plan, err := s.reconciler.Plan(dbEvent, incoming, modifiedBy)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return domain.ErrForbidden
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	updated, err := s.eventRepo.ApplyUpdate(ctx, plan)
	if err != nil {
		s.logger.Error("event update transaction failed", "event_id", incoming.EventID, "error", err)
		return domain.ErrInternal
	}
	s.logger.Info("event updated", "event_id", updated.EventID, "user", modifiedBy)

	if err := s.cache.OnUpdate(ctx, updated); err != nil {
		s.logger.Error("event cache update maintenance failed", "event_id", updated.EventID, "error", err)
	}
	return nil
}

// DeleteEvent flags the event deleted. Children are retained; list and get
// operations hide the event from here on.
func (s *eventService) DeleteEvent(ctx context.Context, eventID, requesterID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByEventID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("event with id %s was not found: %w", eventID, domain.ErrNotFound)
		}
		s.logger.Error("fetch event for delete failed", "event_id", eventID, "error", err)
		return domain.ErrInternal
	}
	if event.IsDeleted {
		return fmt.Errorf("event with id %s was not found: %w", eventID, domain.ErrNotFound)
	}
	if err := s.reconciler.Authorize(event, requesterID); err != nil {
		return err
	}

	event.LastModifiedBy = requesterID
	event.LastModifiedDate = time.Now().UTC()
	if err := s.eventRepo.SoftDelete(ctx, event); err != nil {
		s.logger.Error("event delete failed", "event_id", eventID, "error", err)
		return domain.ErrInternal
	}
	s.logger.Info("event deleted", "event_id", eventID, "user", requesterID)

	if err := s.cache.OnDelete(ctx, event); err != nil {
		s.logger.Error("event cache delete maintenance failed", "event_id", eventID, "error", err)
	}
	return nil
}

// GetEventByID returns the owner's view of the event with dates converted
// back to the event's timezone.
func (s *eventService) GetEventByID(ctx context.Context, eventID, requesterID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByEventID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("event with id %s was not found: %w", eventID, domain.ErrNotFound)
		}
		s.logger.Error("fetch event failed", "event_id", eventID, "error", err)
		return nil, domain.ErrInternal
	}
	if event.IsDeleted {
		return nil, fmt.Errorf("event with id %s was not found: %w", eventID, domain.ErrNotFound)
	}
	if event.CreatedBy != requesterID {
		s.logger.Warn("forbidden event access", "user", requesterID, "event_id", eventID)
		return nil, domain.ErrForbidden
	}

	if err := s.localizeEvent(event, true); err != nil {
		s.logger.Error("localize event dates failed", "event_id", eventID, "error", err)
		return nil, domain.ErrInternal
	}
	return event, nil
}

// ListEvents returns the user's events with dates in local display time.
// Week-filtered listing reads through the cache; a cache failure falls back
// to the repository so the caller never sees it.
func (s *eventService) ListEvents(ctx context.Context, userID string, filterByWeek bool) ([]*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var events []*domain.Event
	var err error
	if filterByWeek {
		events, err = s.cache.ReadOrPopulate(ctx, userID)
		if err != nil {
			s.logger.Error("event cache read failed, falling back to store", "user", userID, "error", err)
			events, err = s.eventRepo.ListByUser(ctx, userID, true)
		}
	} else {
		events, err = s.eventRepo.ListByUser(ctx, userID, false)
	}
	if err != nil {
		s.logger.Error("list events failed", "user", userID, "error", err)
		return nil, domain.ErrInternal
	}

	visible := make([]*domain.Event, 0, len(events))
	for _, event := range events {
		if event.IsDeleted {
			continue
		}
		if err := s.localizeEvent(event, false); err != nil {
			s.logger.Error("localize event dates failed", "event_id", event.EventID, "error", err)
			return nil, domain.ErrInternal
		}
		visible = append(visible, event)
	}
	return visible, nil
}

// localizeEvent converts the stored UTC dates to the event's timezone for
// display. Notifications are converted only for the detail view.
func (s *eventService) localizeEvent(event *domain.Event, withNotifications bool) error {
	startDate, err := s.tz.ToLocal(event.StartDate, event.Timezone)
	if err != nil {
		return err
	}
	endDate, err := s.tz.ToLocal(event.EndDate, event.Timezone)
	if err != nil {
		return err
	}
	event.StartDate = startDate
	event.EndDate = endDate

	if !withNotifications {
		return nil
	}
	for _, n := range event.Notifications {
		local, err := s.tz.ToLocal(n.NotificationDate, event.Timezone)
		if err != nil {
			return err
		}
		n.NotificationDate = local
	}
	return nil
}
