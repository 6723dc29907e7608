package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"calendarinvitation/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

const eventColumns = `id, event_id, name, description, location, start_date, end_date, timezone, status, is_deleted, created_by, created_date, last_modified_by, last_modified_date`

func scanEvent(s interface{ Scan(...any) error }) (*domain.Event, error) {
	e := &domain.Event{}
	var modifiedBy sql.NullString
	var modifiedDate sql.NullTime
	err := s.Scan(
		&e.ID, &e.EventID, &e.Name, &e.Description, &e.Location,
		&e.StartDate, &e.EndDate, &e.Timezone, &e.Status, &e.IsDeleted,
		&e.CreatedBy, &e.CreatedDate, &modifiedBy, &modifiedDate,
	)
	if err != nil {
		return nil, err
	}
	if modifiedBy.Valid {
		e.LastModifiedBy = modifiedBy.String
	}
	if modifiedDate.Valid {
		e.LastModifiedDate = modifiedDate.Time
	}
	return e, nil
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin create: %v", domain.ErrDatabase, err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO events (event_id, name, description, location, start_date, end_date, timezone, status, is_deleted, created_by, created_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		e.EventID, e.Name, e.Description, e.Location, e.StartDate, e.EndDate,
		e.Timezone, e.Status, e.IsDeleted, e.CreatedBy, e.CreatedDate,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("%w: insert event: %v", domain.ErrDatabase, err)
	}

	for _, inv := range e.Invitees {
		inv.EventID = e.ID
		if err := insertInvitation(ctx, tx, inv); err != nil {
			return err
		}
	}
	for _, n := range e.Notifications {
		n.EventID = e.ID
		if err := insertNotification(ctx, tx, n); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit create: %v", domain.ErrDatabase, err)
	}
	return nil
}

func (r *eventRepository) GetByEventID(ctx context.Context, eventID string) (*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE event_id = $1
	`
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	invitees, err := r.listInvitations(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	e.Invitees = invitees

	notifications, err := r.listNotifications(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	e.Notifications = notifications

	return e, nil
}

func (r *eventRepository) listInvitations(ctx context.Context, eventID int64) ([]*domain.Invitation, error) {
	query := `
		SELECT id, event_id, invitee_email, created_by, created_date
		FROM event_invitations
		WHERE event_id = $1
		ORDER BY id
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invitees := make([]*domain.Invitation, 0)
	for rows.Next() {
		inv := &domain.Invitation{}
		if err := rows.Scan(&inv.ID, &inv.EventID, &inv.InviteeEmail, &inv.CreatedBy, &inv.CreatedDate); err != nil {
			return nil, err
		}
		invitees = append(invitees, inv)
	}
	return invitees, rows.Err()
}

func (r *eventRepository) listNotifications(ctx context.Context, eventID int64) ([]*domain.Notification, error) {
	query := `
		SELECT id, event_id, notification_date, created_by, created_date
		FROM event_notifications
		WHERE event_id = $1
		ORDER BY id
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]*domain.Notification, 0)
	for rows.Next() {
		n := &domain.Notification{}
		if err := rows.Scan(&n.ID, &n.EventID, &n.NotificationDate, &n.CreatedBy, &n.CreatedDate); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *eventRepository) ListByUser(ctx context.Context, userID string, filterByWeek bool) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE created_by = $1
	`
	args := []any{userID}
	if filterByWeek {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		query += ` AND start_date >= $2 AND end_date <= $3`
		args = append(args, today.AddDate(0, 0, -3), today.AddDate(0, 0, 3))
	}
	query += ` ORDER BY start_date`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ApplyUpdate commits a reconciliation plan in a single transaction: child
// inserts and deletes first, the root scalar update last. Deletes key child
// rows by business key (email / notification date) rather than surrogate id.
func (r *eventRepository) ApplyUpdate(ctx context.Context, plan *domain.UpdatePlan) (*domain.Event, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin update: %v", domain.ErrDatabase, err)
	}
	defer tx.Rollback()

	e := plan.Event

	for _, n := range plan.AddNotifications {
		if err := insertNotification(ctx, tx, n); err != nil {
			return nil, err
		}
	}
	if len(plan.RemoveNotifications) > 0 {
		dates := make([]time.Time, 0, len(plan.RemoveNotifications))
		for _, n := range plan.RemoveNotifications {
			dates = append(dates, n.NotificationDate)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM event_notifications WHERE event_id = $1 AND notification_date = ANY($2)`,
			e.ID, pq.Array(dates),
		); err != nil {
			return nil, fmt.Errorf("%w: delete notifications: %v", domain.ErrDatabase, err)
		}
	}
	for _, inv := range plan.AddInvitees {
		if err := insertInvitation(ctx, tx, inv); err != nil {
			return nil, err
		}
	}
	if len(plan.RemoveInvitees) > 0 {
		emails := make([]string, 0, len(plan.RemoveInvitees))
		for _, inv := range plan.RemoveInvitees {
			emails = append(emails, inv.InviteeEmail)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM event_invitations WHERE event_id = $1 AND invitee_email = ANY($2)`,
			e.ID, pq.Array(emails),
		); err != nil {
			return nil, fmt.Errorf("%w: delete invitations: %v", domain.ErrDatabase, err)
		}
	}

	// The root row write is sequenced after every child operation.
	query := `
		UPDATE events
		SET name = $1, description = $2, location = $3, start_date = $4, end_date = $5,
			timezone = $6, status = $7, last_modified_by = $8, last_modified_date = $9
		WHERE id = $10
	`
	if _, err := tx.ExecContext(ctx, query,
		e.Name, e.Description, e.Location, e.StartDate, e.EndDate,
		e.Timezone, e.Status, e.LastModifiedBy, e.LastModifiedDate, e.ID,
	); err != nil {
		return nil, fmt.Errorf("%w: update event: %v", domain.ErrDatabase, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit update: %v", domain.ErrDatabase, err)
	}

	// Rebuild the in-memory child collections to mirror the committed state.
	e.Notifications = applyChildDiff(e.Notifications, plan.AddNotifications, plan.RemoveNotifications,
		func(n *domain.Notification) int64 { return n.NotificationDate.UnixNano() })
	e.Invitees = applyChildDiff(e.Invitees, plan.AddInvitees, plan.RemoveInvitees,
		func(inv *domain.Invitation) string { return inv.InviteeEmail })

	return e, nil
}

func (r *eventRepository) SoftDelete(ctx context.Context, e *domain.Event) error {
	query := `
		UPDATE events
		SET is_deleted = TRUE, last_modified_by = $1, last_modified_date = $2
		WHERE id = $3
	`
	result, err := r.DB.ExecContext(ctx, query, e.LastModifiedBy, e.LastModifiedDate, e.ID)
	if err != nil {
		return fmt.Errorf("%w: soft delete event: %v", domain.ErrDatabase, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	e.IsDeleted = true
	return nil
}

func insertInvitation(ctx context.Context, tx *sql.Tx, inv *domain.Invitation) error {
	query := `
		INSERT INTO event_invitations (event_id, invitee_email, created_by, created_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := tx.QueryRowContext(ctx, query, inv.EventID, inv.InviteeEmail, inv.CreatedBy, inv.CreatedDate).Scan(&inv.ID)
	if err != nil {
		return fmt.Errorf("%w: insert invitation: %v", domain.ErrDatabase, err)
	}
	return nil
}

func insertNotification(ctx context.Context, tx *sql.Tx, n *domain.Notification) error {
	query := `
		INSERT INTO event_notifications (event_id, notification_date, created_by, created_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := tx.QueryRowContext(ctx, query, n.EventID, n.NotificationDate, n.CreatedBy, n.CreatedDate).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("%w: insert notification: %v", domain.ErrDatabase, err)
	}
	return nil
}

func applyChildDiff[T any, K comparable](current, added, removed []T, key func(T) K) []T {
	gone := make(map[K]struct{}, len(removed))
	for _, item := range removed {
		gone[key(item)] = struct{}{}
	}
	out := make([]T, 0, len(current)+len(added))
	for _, item := range current {
		if _, ok := gone[key(item)]; !ok {
			out = append(out, item)
		}
	}
	return append(out, added...)
}
