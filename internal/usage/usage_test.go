package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackwatch-systems/stackwatch/internal/counters"
)

type stubPlans struct {
	limits map[string]PlanLimits
}

func (s stubPlans) GetPlanLimits(_ context.Context, orgID string) (PlanLimits, error) {
	limits, ok := s.limits[orgID]
	if !ok {
		return PlanLimits{}, errors.New("unknown organization")
	}
	return limits, nil
}

func newTestTracker(t *testing.T, limits map[string]PlanLimits) (*Tracker, *counters.MemoryStore) {
	t.Helper()

	store := counters.NewMemoryStore()
	tracker := NewTracker(store, stubPlans{limits: limits})
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return at }
	tracker.SetClock(func() time.Time { return at })
	return tracker, store
}

func TestTracker_Remaining(t *testing.T) {
	tracker, _ := newTestTracker(t, map[string]PlanLimits{
		"org-1": {MonthlyEventLimit: 100},
	})
	ctx := context.Background()

	remaining, err := tracker.Remaining(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), remaining)

	require.NoError(t, tracker.IncrementTotal(ctx, "org-1", 30))

	remaining, err = tracker.Remaining(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(70), remaining)

	require.NoError(t, tracker.IncrementTotal(ctx, "org-1", 80))

	remaining, err = tracker.Remaining(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(-10), remaining, "overage shows as negative remaining")
}

func TestTracker_RemainingUnlimitedPlan(t *testing.T) {
	tracker, _ := newTestTracker(t, map[string]PlanLimits{
		"org-1": {MonthlyEventLimit: -1},
	})

	remaining, err := tracker.Remaining(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<62-1), remaining)
}

func TestTracker_RemainingUnknownOrg(t *testing.T) {
	tracker, _ := newTestTracker(t, nil)

	_, err := tracker.Remaining(context.Background(), "org-x")
	assert.Error(t, err)
}

func TestTracker_GetSnapshot(t *testing.T) {
	tracker, _ := newTestTracker(t, map[string]PlanLimits{
		"org-1": {MonthlyEventLimit: 1000},
	})
	ctx := context.Background()

	require.NoError(t, tracker.IncrementTotal(ctx, "org-1", 5))
	require.NoError(t, tracker.IncrementBlocked(ctx, "org-1"))
	require.NoError(t, tracker.IncrementDiscarded(ctx, "org-1"))
	require.NoError(t, tracker.IncrementTooBig(ctx, "org-1"))
	require.NoError(t, tracker.IncrementTooBig(ctx, "org-1"))

	snap, err := tracker.GetSnapshot(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", snap.OrganizationID)
	assert.Equal(t, "2026-03-10", snap.Day)
	assert.Equal(t, int64(5), snap.Total)
	assert.Equal(t, int64(1), snap.Blocked)
	assert.Equal(t, int64(1), snap.Discarded)
	assert.Equal(t, int64(2), snap.TooBig)
	assert.Equal(t, int64(5), snap.MonthTotal)
	assert.Equal(t, int64(995), snap.Remaining)
}

func TestTracker_DailyCounterExpires(t *testing.T) {
	store := counters.NewMemoryStore()
	tracker := NewTracker(store, stubPlans{limits: map[string]PlanLimits{
		"org-1": {MonthlyEventLimit: 1000},
	}})
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return at }
	tracker.SetClock(func() time.Time { return at })
	ctx := context.Background()

	require.NoError(t, tracker.IncrementTotal(ctx, "org-1", 10))
	firstDay := dayKey("org-1", CounterTotal, at)
	month := monthKey("org-1", CounterTotal, at)

	// Past the daily TTL the day counter is gone but the month survives.
	at = at.Add(49 * time.Hour)
	v, err := store.GetInt64(ctx, firstDay)
	require.NoError(t, err)
	assert.Zero(t, v)

	v, err = store.GetInt64(ctx, month)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
}

func TestTracker_MaxRequestsPerWindow(t *testing.T) {
	tracker, _ := newTestTracker(t, map[string]PlanLimits{
		"org-1": {MonthlyEventLimit: 1000, MaxRequestsPerWindow: 250},
	})

	assert.Equal(t, int64(250), tracker.MaxRequestsPerWindow(context.Background(), "org-1"))
	assert.Zero(t, tracker.MaxRequestsPerWindow(context.Background(), "org-x"))
}
