package rediscache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calendarinvitation/internal/domain"
)

// fakeStore implements the repository read side used by the cache.
type fakeStore struct {
	events    []*domain.Event
	listCalls int
}

func (f *fakeStore) ListByUser(ctx context.Context, userID string, filterByWeek bool) ([]*domain.Event, error) {
	f.listCalls++
	return f.events, nil
}

func (f *fakeStore) Create(ctx context.Context, e *domain.Event) error { return nil }

func (f *fakeStore) GetByEventID(ctx context.Context, eventID string) (*domain.Event, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeStore) ApplyUpdate(ctx context.Context, plan *domain.UpdatePlan) (*domain.Event, error) {
	return plan.Event, nil
}

func (f *fakeStore) SoftDelete(ctx context.Context, e *domain.Event) error { return nil }

const cacheTTL = 10 * time.Minute

func newCacheFixture(t *testing.T) (*EventCache, *miniredis.Miniredis, *fakeStore) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	store := &fakeStore{}
	return New(client, store, cacheTTL), srv, store
}

func cachedEvent(eventID, owner string) *domain.Event {
	return &domain.Event{
		EventID:   eventID,
		Name:      "Event " + eventID,
		Timezone:  "UTC",
		StartDate: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
		CreatedBy: owner,
	}
}

func snapshotOf(t *testing.T, srv *miniredis.Miniredis, userID string) []*domain.Event {
	t.Helper()
	raw, err := srv.Get(userID)
	require.NoError(t, err)
	var events []*domain.Event
	require.NoError(t, json.Unmarshal([]byte(raw), &events))
	return events
}

func seedSnapshot(t *testing.T, srv *miniredis.Miniredis, userID string, events ...*domain.Event) {
	t.Helper()
	raw, err := json.Marshal(events)
	require.NoError(t, err)
	require.NoError(t, srv.Set(userID, string(raw)))
}

func TestReadOrPopulate_MissQueriesStoreAndWritesSnapshot(t *testing.T) {
	cache, srv, store := newCacheFixture(t)
	store.events = []*domain.Event{cachedEvent("ev-1", "user-1")}

	got, err := cache.ReadOrPopulate(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, store.listCalls)

	snapshot := snapshotOf(t, srv, "user-1")
	require.Len(t, snapshot, 1)
	assert.Equal(t, "ev-1", snapshot[0].EventID)
	assert.Greater(t, srv.TTL("user-1"), time.Duration(0))
}

func TestReadOrPopulate_EmptySnapshotTreatedAsMiss(t *testing.T) {
	cache, srv, store := newCacheFixture(t)
	require.NoError(t, srv.Set("user-1", "[]"))
	store.events = []*domain.Event{cachedEvent("ev-1", "user-1")}

	got, err := cache.ReadOrPopulate(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, store.listCalls, "store queried exactly once to repopulate")
	require.Len(t, snapshotOf(t, srv, "user-1"), 1)
}

func TestReadOrPopulate_HitSkipsStore(t *testing.T) {
	cache, srv, store := newCacheFixture(t)
	seedSnapshot(t, srv, "user-1", cachedEvent("ev-1", "user-1"))

	got, err := cache.ReadOrPopulate(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-1", got[0].EventID)
	assert.Zero(t, store.listCalls)
}

func TestReadOrPopulate_ExpiredSnapshotSelfHeals(t *testing.T) {
	cache, srv, store := newCacheFixture(t)
	store.events = []*domain.Event{cachedEvent("ev-1", "user-1")}

	_, err := cache.ReadOrPopulate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)

	srv.FastForward(cacheTTL + time.Minute)

	_, err = cache.ReadOrPopulate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.listCalls, "expiry falls back to the store")
}

func TestOnCreate_NoEntryIsNoOp(t *testing.T) {
	cache, srv, _ := newCacheFixture(t)

	require.NoError(t, cache.OnCreate(context.Background(), cachedEvent("ev-1", "user-1")))
	assert.False(t, srv.Exists("user-1"), "no snapshot is created for a user with no read pattern")
}

func TestOnCreate_AppendsToExistingSnapshot(t *testing.T) {
	cache, srv, _ := newCacheFixture(t)
	seedSnapshot(t, srv, "user-1", cachedEvent("ev-1", "user-1"))

	require.NoError(t, cache.OnCreate(context.Background(), cachedEvent("ev-2", "user-1")))

	snapshot := snapshotOf(t, srv, "user-1")
	require.Len(t, snapshot, 2)
	assert.Equal(t, "ev-2", snapshot[1].EventID)
	assert.Greater(t, srv.TTL("user-1"), time.Duration(0), "rewrite refreshes the TTL")
}

func TestOnUpdate_ReplacesExactlyOneItem(t *testing.T) {
	cache, srv, _ := newCacheFixture(t)
	stale := cachedEvent("ev-1", "user-1")
	seedSnapshot(t, srv, "user-1", stale, cachedEvent("ev-2", "user-1"))

	updated := cachedEvent("ev-1", "user-1")
	updated.Name = "Renamed"
	require.NoError(t, cache.OnUpdate(context.Background(), updated))

	snapshot := snapshotOf(t, srv, "user-1")
	require.Len(t, snapshot, 2)
	matches := 0
	for _, e := range snapshot {
		if e.EventID == "ev-1" {
			matches++
			assert.Equal(t, "Renamed", e.Name)
		}
	}
	assert.Equal(t, 1, matches)
}

func TestOnUpdate_UnknownEventLeavesSnapshotAlone(t *testing.T) {
	cache, srv, _ := newCacheFixture(t)
	seedSnapshot(t, srv, "user-1", cachedEvent("ev-1", "user-1"))

	require.NoError(t, cache.OnUpdate(context.Background(), cachedEvent("ev-other", "user-1")))

	snapshot := snapshotOf(t, srv, "user-1")
	require.Len(t, snapshot, 1)
	assert.Equal(t, "ev-1", snapshot[0].EventID)
}

func TestOnDelete_RewritesEvenWhenEmpty(t *testing.T) {
	cache, srv, _ := newCacheFixture(t)
	seedSnapshot(t, srv, "user-1", cachedEvent("ev-1", "user-1"))

	require.NoError(t, cache.OnDelete(context.Background(), cachedEvent("ev-1", "user-1")))

	raw, err := srv.Get("user-1")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestOnDelete_NoEntryIsNoOp(t *testing.T) {
	cache, srv, _ := newCacheFixture(t)

	require.NoError(t, cache.OnDelete(context.Background(), cachedEvent("ev-1", "user-1")))
	assert.False(t, srv.Exists("user-1"))
}
