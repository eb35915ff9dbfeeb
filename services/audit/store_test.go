package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/condoaccess/testutils"
)

func strPtr(s string) *string { return &s }

func seedEvent(t *testing.T, store *GormStore, eventType string, success bool, email, ip string, at time.Time) *Event {
	t.Helper()
	e := &Event{
		ID:        uuid.NewString(),
		EventType: eventType,
		Success:   success,
		CreatedAt: at,
	}
	if email != "" {
		e.UserEmail = strPtr(email)
	}
	if ip != "" {
		e.IPAddress = strPtr(ip)
	}
	require.NoError(t, store.Append(context.Background(), e))
	return e
}

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	return NewGormStore(testutils.SetupTestDB(t, &Event{}))
}

func TestGormStore_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := testutils.BaseTime

	seedEvent(t, store, EventLogin, true, "ana@condo.test", "10.0.0.1", base.Add(-3*time.Hour))
	seedEvent(t, store, EventLogin, false, "bruno@condo.test", "10.0.0.2", base.Add(-2*time.Hour))
	seedEvent(t, store, EventRefresh, true, "ANA.silva@condo.test", "192.168.1.5", base.Add(-time.Hour))
	seedEvent(t, store, EventLogout, true, "", "", base)

	t.Run("email substring is case insensitive", func(t *testing.T) {
		n, err := store.Count(ctx, Filter{UserEmail: "Ana"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("like wildcards are literal", func(t *testing.T) {
		n, err := store.Count(ctx, Filter{UserEmail: "%"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("event type is exact", func(t *testing.T) {
		n, err := store.Count(ctx, Filter{EventType: "log"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		n, err = store.Count(ctx, Filter{EventType: EventLogin})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("success", func(t *testing.T) {
		f := false
		n, err := store.Count(ctx, Filter{Success: &f})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("ip substring", func(t *testing.T) {
		n, err := store.Count(ctx, Filter{IPAddress: "10.0.0"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("time range is inclusive", func(t *testing.T) {
		start := base.Add(-2 * time.Hour)
		end := base.Add(-time.Hour)
		n, err := store.Count(ctx, Filter{StartTime: &start, EndTime: &end})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("sort and page", func(t *testing.T) {
		events, err := store.Find(ctx, Query{SortColumn: "created_at", SortDesc: false, Offset: 1, Limit: 2})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, EventLogin, events[0].EventType)
		assert.False(t, events[0].Success)
		assert.Equal(t, EventRefresh, events[1].EventType)
	})
}

func TestGormStore_Summarize(t *testing.T) {
	store := newTestStore(t)
	base := testutils.BaseTime

	seedEvent(t, store, EventLogin, true, "a@x.test", "1.1.1.1", base)
	seedEvent(t, store, EventLogin, false, "a@x.test", "1.1.1.1", base)
	seedEvent(t, store, EventLogin, false, "b@x.test", "1.1.1.1", base)
	seedEvent(t, store, EventRefresh, false, "a@x.test", "1.1.1.1", base)

	summary, err := store.Summarize(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 4, Success: 1, Failure: 3, LoginFailures: 2}, summary)

	summary, err = store.Summarize(context.Background(), Filter{UserEmail: "b@"})
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Success: 0, Failure: 1, LoginFailures: 1}, summary)

	summary, err = store.Summarize(context.Background(), Filter{EventType: "nothing"})
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
}

func TestGormStore_LoginAggregation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := testutils.BaseTime
	start := now.Add(-24 * time.Hour)

	for i := 0; i < 3; i++ {
		seedEvent(t, store, EventLogin, false, "x@condo.test", "10.0.0.1", now.Add(-time.Duration(i)*time.Minute))
	}
	seedEvent(t, store, EventLogin, true, "y@condo.test", "10.0.0.2", now)
	seedEvent(t, store, EventLogin, true, "", "", now)
	seedEvent(t, store, EventRefresh, false, "x@condo.test", "10.0.0.1", now)
	seedEvent(t, store, EventLogin, false, "old@condo.test", "10.9.9.9", start.Add(-time.Second))

	total, failed, err := store.CountLogins(ctx, start, now)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, int64(3), failed)

	byIP, err := store.GroupLogins(ctx, ByIPAddress, start, now, false)
	require.NoError(t, err)
	assert.Equal(t, []GroupCount{{Key: "10.0.0.1", Attempts: 3}, {Key: "10.0.0.2", Attempts: 1}}, byIP)

	failedByUser, err := store.GroupLogins(ctx, ByUserEmail, start, now, true)
	require.NoError(t, err)
	assert.Equal(t, []GroupCount{{Key: "x@condo.test", Attempts: 3}}, failedByUser)

	_, err = store.GroupLogins(ctx, GroupDimension("details"), start, now, false)
	assert.Error(t, err)
}

func TestGormStore_DeleteBefore(t *testing.T) {
	store := newTestStore(t)
	now := testutils.BaseTime

	seedEvent(t, store, EventLogin, true, "", "", now.Add(-time.Nanosecond*1000))
	seedEvent(t, store, EventLogin, true, "", "", now)
	seedEvent(t, store, EventLogin, true, "", "", now.Add(time.Second))

	deleted, err := store.DeleteBefore(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = store.DeleteBefore(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	remaining, err := store.Count(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining)
}

func TestGormStore_Each(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		seedEvent(t, store, EventLogin, true, "", "", testutils.BaseTime.Add(time.Duration(i)*time.Second))
	}

	var seen []time.Time
	err := store.Each(context.Background(), Query{SortColumn: "created_at", SortDesc: true, Limit: 3}, func(e *Event) error {
		seen = append(seen, e.CreatedAt)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.True(t, seen[0].After(seen[1]))
	assert.True(t, seen[1].After(seen[2]))
}
