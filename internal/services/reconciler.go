package services

import (
	"fmt"
	"log/slog"
	"time"

	"calendarinvitation/internal/domain"
)

// Reconciler computes the update plan for an event: it authorizes the
// modifier, collapses duplicate children, normalizes timezone-aware dates to
// UTC and diffs the incoming child collections against the persisted ones by
// business key. All steps after authorization are pure transformations.
type Reconciler struct {
	tz     domain.TimezoneConverter
	now    func() time.Time
	logger *slog.Logger
}

func NewReconciler(tz domain.TimezoneConverter, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		tz:     tz,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Authorize fails with ErrForbidden unless the requester created the event.
// It must run before any mutation is computed or applied.
func (r *Reconciler) Authorize(dbEvent *domain.Event, requesterID string) error {
	if requesterID != dbEvent.CreatedBy {
		r.logger.Warn("forbidden event access", "user", requesterID, "event_id", dbEvent.EventID)
		return domain.ErrForbidden
	}
	return nil
}

// Plan reconciles the incoming event against its persisted version. The
// returned plan carries dbEvent with scalar fields overwritten plus the
// child add/remove sets; to-add children are stamped with the parent link,
// the modifier identity and the current UTC time. dbEvent is mutated.
func (r *Reconciler) Plan(dbEvent, incoming *domain.Event, modifiedBy string) (*domain.UpdatePlan, error) {
	if err := r.Authorize(dbEvent, modifiedBy); err != nil {
		return nil, err
	}

	invitees := DeduplicateInvitees(incoming.Invitees)
	notifications := DeduplicateNotifications(incoming.Notifications)

	startDate, err := r.normalizeDate(incoming.StartDate, dbEvent.StartDate, incoming.Timezone)
	if err != nil {
		return nil, fmt.Errorf("normalize start date: %w", err)
	}
	endDate, err := r.normalizeDate(incoming.EndDate, dbEvent.EndDate, incoming.Timezone)
	if err != nil {
		return nil, fmt.Errorf("normalize end date: %w", err)
	}

	notifications, err = r.normalizeNotificationDates(notifications, dbEvent.Notifications, incoming.Timezone)
	if err != nil {
		return nil, fmt.Errorf("normalize notification dates: %w", err)
	}

	dbEvent.Name = incoming.Name
	dbEvent.Description = incoming.Description
	dbEvent.Location = incoming.Location
	dbEvent.Timezone = incoming.Timezone
	dbEvent.Status = incoming.Status
	dbEvent.StartDate = startDate
	dbEvent.EndDate = endDate
	dbEvent.LastModifiedBy = modifiedBy
	dbEvent.LastModifiedDate = r.now()

	plan := &domain.UpdatePlan{
		Event:               dbEvent,
		AddNotifications:    exceptByKey(notifications, dbEvent.Notifications, notificationKey),
		RemoveNotifications: exceptByKey(dbEvent.Notifications, notifications, notificationKey),
		AddInvitees:         exceptByKey(invitees, dbEvent.Invitees, inviteeKey),
		RemoveInvitees:      exceptByKey(dbEvent.Invitees, invitees, inviteeKey),
	}

	for _, n := range plan.AddNotifications {
		n.EventID = dbEvent.ID
		n.CreatedBy = modifiedBy
		n.CreatedDate = r.now()
	}
	for _, inv := range plan.AddInvitees {
		inv.EventID = dbEvent.ID
		inv.CreatedBy = modifiedBy
		inv.CreatedDate = r.now()
	}

	return plan, nil
}

// normalizeDate converts incoming to UTC only when its wall-clock value
// differs from the persisted one. Resubmitting a stored value unchanged must
// not convert it again as if it were local.
func (r *Reconciler) normalizeDate(incoming, persisted time.Time, zone string) (time.Time, error) {
	if incoming.Equal(persisted) {
		return persisted, nil
	}
	return r.tz.ToUTC(incoming, zone)
}

// normalizeNotificationDates applies the same no-reconversion rule per
// notification: a date matching a persisted UTC value is kept as is, any
// other date is treated as local and converted.
func (r *Reconciler) normalizeNotificationDates(incoming, persisted []*domain.Notification, zone string) ([]*domain.Notification, error) {
	existing := make(map[int64]struct{}, len(persisted))
	for _, n := range persisted {
		existing[notificationKey(n)] = struct{}{}
	}
	out := make([]*domain.Notification, 0, len(incoming))
	for _, n := range incoming {
		normalized := *n
		if _, ok := existing[notificationKey(n)]; !ok {
			utc, err := r.tz.ToUTC(n.NotificationDate, zone)
			if err != nil {
				return nil, err
			}
			normalized.NotificationDate = utc
		}
		out = append(out, &normalized)
	}
	return out, nil
}

// DeduplicateInvitees collapses the list to one invitation per email,
// keeping the first occurrence in caller order.
func DeduplicateInvitees(invitees []*domain.Invitation) []*domain.Invitation {
	return dedupeByKey(invitees, inviteeKey)
}

// DeduplicateNotifications collapses the list to one notification per date,
// keeping the first occurrence in caller order.
func DeduplicateNotifications(notifications []*domain.Notification) []*domain.Notification {
	return dedupeByKey(notifications, notificationKey)
}

func inviteeKey(i *domain.Invitation) string { return i.InviteeEmail }

func notificationKey(n *domain.Notification) int64 { return n.NotificationDate.UnixNano() }

func dedupeByKey[T any, K comparable](items []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

// exceptByKey returns the items whose key does not appear in others.
func exceptByKey[T any, K comparable](items, others []T, key func(T) K) []T {
	present := make(map[K]struct{}, len(others))
	for _, o := range others {
		present[key(o)] = struct{}{}
	}
	out := make([]T, 0)
	for _, item := range items {
		if _, ok := present[key(item)]; !ok {
			out = append(out, item)
		}
	}
	return out
}
