package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func reminderPayload(id string) Payload {
	return Payload{
		Title: "Netflix",
		Body:  "Payment due soon",
		Data:  map[string]any{"subscriptionId": id, "type": "subscription_reminder"},
	}
}

func TestRequestPermission(t *testing.T) {
	ctx := context.Background()

	f := NewLocalFacility(testLogger())
	p, err := f.RequestPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, p)

	denied := NewLocalFacility(testLogger(), WithPermission(PermissionDenied))
	p, err = denied.RequestPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, PermissionDenied, p)

	_, err = denied.ScheduleOneShot(ctx, reminderPayload("1"), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestScheduleOneShotRejectsPastTriggers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)

	f := NewLocalFacility(testLogger(), WithClock(func() time.Time { return now }))
	_, err := f.RequestPermission(ctx)
	require.NoError(t, err)

	_, err = f.ScheduleOneShot(ctx, reminderPayload("1"), now)
	assert.ErrorIs(t, err, ErrPastTrigger)

	_, err = f.ScheduleOneShot(ctx, reminderPayload("1"), now.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrPastTrigger)
}

func TestListAndCancel(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)

	f := NewLocalFacility(testLogger(), WithClock(func() time.Time { return now }))
	_, err := f.RequestPermission(ctx)
	require.NoError(t, err)

	later, err := f.ScheduleOneShot(ctx, reminderPayload("a"), now.Add(48*time.Hour))
	require.NoError(t, err)
	sooner, err := f.ScheduleOneShot(ctx, reminderPayload("b"), now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, later, sooner)

	list, err := f.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, sooner, list[0].Handle)
	assert.Equal(t, "b", list[0].Payload.String("subscriptionId"))

	require.NoError(t, f.Cancel(ctx, sooner))
	assert.ErrorIs(t, f.Cancel(ctx, sooner), ErrHandleNotFound)

	list, err = f.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, later, list[0].Handle)
}

func TestOneShotFiresOnceAndTap(t *testing.T) {
	ctx := context.Background()

	f := NewLocalFacility(testLogger())
	_, err := f.RequestPermission(ctx)
	require.NoError(t, err)

	var (
		mu        sync.Mutex
		delivered []Notification
		tapped    []Notification
	)
	f.OnDelivered(func(n Notification) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, n)
	})
	f.OnTapped(func(n Notification) {
		mu.Lock()
		defer mu.Unlock()
		tapped = append(tapped, n)
	})

	f.Start()
	defer f.Stop()

	handle, err := f.ScheduleOneShot(ctx, reminderPayload("sub-1"), time.Now().Add(100*time.Millisecond))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 1
	}, 3*time.Second, 20*time.Millisecond)

	list, err := f.ListScheduled(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "fired one-shot must leave the pending set")

	require.NoError(t, f.Tap(handle))
	mu.Lock()
	require.Len(t, tapped, 1)
	assert.Equal(t, "sub-1", tapped[0].Payload.String("subscriptionId"))
	assert.Len(t, delivered, 1)
	mu.Unlock()

	assert.ErrorIs(t, f.Tap("unknown"), ErrHandleNotFound)
}

func TestScheduleRecurring(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)

	f := NewLocalFacility(testLogger(),
		WithLocation(time.UTC),
		WithClock(func() time.Time { return now }),
	)
	_, err := f.RequestPermission(ctx)
	require.NoError(t, err)

	_, err = f.ScheduleRecurring(ctx, "not a spec", Payload{Title: "x"})
	assert.Error(t, err)

	handle, err := f.ScheduleRecurring(ctx, "0 9 1 * *", Payload{Title: "Monthly summary"})
	require.NoError(t, err)

	list, err := f.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, handle, list[0].Handle)
	assert.True(t, list[0].Recurring)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), list[0].Trigger)
}

func TestOneShotSchedule(t *testing.T) {
	at := time.Date(2024, 2, 8, 9, 0, 0, 0, time.UTC)
	s := oneShot{at: at}

	assert.Equal(t, at, s.Next(at.Add(-time.Hour)))
	assert.True(t, s.Next(at).IsZero())
	assert.True(t, s.Next(at.Add(time.Second)).IsZero())
}
