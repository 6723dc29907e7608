package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"calendarinvitation/internal/domain"
)

// emptySnapshot is what an empty cached list serializes to; it is treated the
// same as a missing entry so a user with no events still reads through.
const emptySnapshot = "[]"

// EventCache keeps one JSON snapshot of the week-filtered event list per
// user, keyed by the user id. The snapshot is derived data: every write path
// failure leaves the repository authoritative and the entry self-heals on
// the next read-through after expiry.
type EventCache struct {
	client *redis.Client
	store  domain.EventRepository
	expiry time.Duration
}

// New returns an EventCache reading through to store on misses. expiry is the
// snapshot TTL; every rewrite refreshes it.
func New(client *redis.Client, store domain.EventRepository, expiry time.Duration) *EventCache {
	return &EventCache{
		client: client,
		store:  store,
		expiry: expiry,
	}
}

// ReadOrPopulate returns the cached snapshot for the user, querying the
// store and rewriting the entry when the snapshot is missing or empty.
func (c *EventCache) ReadOrPopulate(ctx context.Context, userID string) ([]*domain.Event, error) {
	snapshot, err := c.client.Get(ctx, userID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read event cache: %w", err)
	}
	if snapshot == "" || snapshot == emptySnapshot {
		events, err := c.store.ListByUser(ctx, userID, true)
		if err != nil {
			return nil, err
		}
		if err := c.write(ctx, userID, events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var events []*domain.Event
	if err := json.Unmarshal([]byte(snapshot), &events); err != nil {
		return nil, fmt.Errorf("decode event cache for user %s: %w", userID, err)
	}
	return events, nil
}

// OnCreate appends the new event to an existing snapshot. A user without a
// cache entry gets none; populating is left to the next read-through.
func (c *EventCache) OnCreate(ctx context.Context, event *domain.Event) error {
	events, ok, err := c.read(ctx, event.CreatedBy)
	if err != nil || !ok {
		return err
	}
	return c.write(ctx, event.CreatedBy, append(events, event))
}

// OnUpdate replaces the snapshot item matching the event's external id.
func (c *EventCache) OnUpdate(ctx context.Context, event *domain.Event) error {
	events, ok, err := c.read(ctx, event.CreatedBy)
	if err != nil || !ok {
		return err
	}
	replaced := false
	for i, cached := range events {
		if cached.EventID == event.EventID {
			events = append(events[:i], events[i+1:]...)
			replaced = true
			break
		}
	}
	if !replaced {
		return nil
	}
	return c.write(ctx, event.CreatedBy, append(events, event))
}

// OnDelete removes the snapshot item matching the event's external id and
// rewrites the entry, even when the remaining list is empty.
func (c *EventCache) OnDelete(ctx context.Context, event *domain.Event) error {
	events, ok, err := c.read(ctx, event.CreatedBy)
	if err != nil || !ok {
		return err
	}
	kept := make([]*domain.Event, 0, len(events))
	for _, cached := range events {
		if cached.EventID != event.EventID {
			kept = append(kept, cached)
		}
	}
	return c.write(ctx, event.CreatedBy, kept)
}

func (c *EventCache) read(ctx context.Context, userID string) ([]*domain.Event, bool, error) {
	snapshot, err := c.client.Get(ctx, userID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read event cache: %w", err)
	}
	if snapshot == "" {
		return nil, false, nil
	}
	var events []*domain.Event
	if err := json.Unmarshal([]byte(snapshot), &events); err != nil {
		return nil, false, fmt.Errorf("decode event cache for user %s: %w", userID, err)
	}
	return events, true, nil
}

func (c *EventCache) write(ctx context.Context, userID string, events []*domain.Event) error {
	if events == nil {
		events = []*domain.Event{}
	}
	snapshot, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode event cache for user %s: %w", userID, err)
	}
	if err := c.client.Set(ctx, userID, snapshot, c.expiry).Err(); err != nil {
		return fmt.Errorf("write event cache: %w", err)
	}
	return nil
}
