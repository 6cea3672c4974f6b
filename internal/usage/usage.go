// Package usage tracks per-organization event volume against plan quotas.
// Counters live in the shared counter store and are recreated by the next
// increment after expiry.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/stackwatch-systems/stackwatch/internal/counters"
)

// Counter names kept per organization, per day and per month.
const (
	CounterTotal     = "total"
	CounterBlocked   = "blocked"
	CounterDiscarded = "discarded"
	CounterTooBig    = "toobig"
)

const (
	dailyTTL   = 48 * time.Hour
	monthlyTTL = 35 * 24 * time.Hour
)

// PlanLimits are the quota-relevant limits of an organization's plan.
type PlanLimits struct {
	// MonthlyEventLimit is the plan's event allowance per billing month.
	// Negative means unlimited.
	MonthlyEventLimit int64

	// MaxRequestsPerWindow is the plan's request rate limit.
	MaxRequestsPerWindow int64
}

// PlanSource supplies plan limits from the persistent store.
type PlanSource interface {
	GetPlanLimits(ctx context.Context, orgID string) (PlanLimits, error)
}

// Snapshot is a point-in-time view of an organization's usage counters,
// exposed for operational dashboards.
type Snapshot struct {
	OrganizationID string `json:"organization_id"`
	Day            string `json:"day"`
	Total          int64  `json:"total"`
	Blocked        int64  `json:"blocked"`
	Discarded      int64  `json:"discarded"`
	TooBig         int64  `json:"too_big"`
	MonthTotal     int64  `json:"month_total"`
	Remaining      int64  `json:"remaining"`
}

// Tracker accounts event volume per organization.
type Tracker struct {
	store counters.Store
	plans PlanSource

	now func() time.Time
}

// NewTracker creates a usage tracker over the shared counter store.
func NewTracker(store counters.Store, plans PlanSource) *Tracker {
	return &Tracker{store: store, plans: plans, now: time.Now}
}

// SetClock overrides the tracker's clock. Tests only.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

func dayKey(orgID, name string, at time.Time) string {
	return fmt.Sprintf("usage:%s:%s:%s", orgID, at.UTC().Format("20060102"), name)
}

func monthKey(orgID, name string, at time.Time) string {
	return fmt.Sprintf("usage:%s:%s:%s", orgID, at.UTC().Format("200601"), name)
}

func (t *Tracker) increment(ctx context.Context, orgID, name string, amount int64) error {
	at := t.now()

	dk := dayKey(orgID, name, at)
	n, err := t.store.IncrementBy(ctx, dk, amount)
	if err != nil {
		return fmt.Errorf("increment daily %s counter: %w", name, err)
	}
	if n == amount {
		_ = t.store.SetExpiration(ctx, dk, at.Add(dailyTTL))
	}

	mk := monthKey(orgID, name, at)
	n, err = t.store.IncrementBy(ctx, mk, amount)
	if err != nil {
		return fmt.Errorf("increment monthly %s counter: %w", name, err)
	}
	if n == amount {
		_ = t.store.SetExpiration(ctx, mk, at.Add(monthlyTTL))
	}
	return nil
}

// IncrementTotal records amount accepted events for the organization.
func (t *Tracker) IncrementTotal(ctx context.Context, orgID string, amount int64) error {
	return t.increment(ctx, orgID, CounterTotal, amount)
}

// IncrementBlocked records a submission blocked by the admission gate.
func (t *Tracker) IncrementBlocked(ctx context.Context, orgID string) error {
	return t.increment(ctx, orgID, CounterBlocked, 1)
}

// IncrementDiscarded records a submission discarded for plan overage.
func (t *Tracker) IncrementDiscarded(ctx context.Context, orgID string) error {
	return t.increment(ctx, orgID, CounterDiscarded, 1)
}

// IncrementTooBig records a submission rejected for exceeding the maximum
// payload size.
func (t *Tracker) IncrementTooBig(ctx context.Context, orgID string) error {
	return t.increment(ctx, orgID, CounterTooBig, 1)
}

// Remaining returns how many events the organization may still submit in
// the current billing month. Negative plan limits mean unlimited.
func (t *Tracker) Remaining(ctx context.Context, orgID string) (int64, error) {
	limits, err := t.plans.GetPlanLimits(ctx, orgID)
	if err != nil {
		return 0, fmt.Errorf("plan limits for %s: %w", orgID, err)
	}
	if limits.MonthlyEventLimit < 0 {
		return 1<<62 - 1, nil
	}

	used, err := t.store.GetInt64(ctx, monthKey(orgID, CounterTotal, t.now()))
	if err != nil {
		return 0, fmt.Errorf("monthly total for %s: %w", orgID, err)
	}
	return limits.MonthlyEventLimit - used, nil
}

// MaxRequestsPerWindow returns the plan's request rate limit for the
// organization, or zero if the plan cannot be resolved.
func (t *Tracker) MaxRequestsPerWindow(ctx context.Context, orgID string) int64 {
	limits, err := t.plans.GetPlanLimits(ctx, orgID)
	if err != nil {
		return 0
	}
	return limits.MaxRequestsPerWindow
}

// GetSnapshot returns today's usage counters for the organization.
func (t *Tracker) GetSnapshot(ctx context.Context, orgID string) (*Snapshot, error) {
	at := t.now()
	snap := &Snapshot{
		OrganizationID: orgID,
		Day:            at.UTC().Format("2006-01-02"),
	}

	var err error
	if snap.Total, err = t.store.GetInt64(ctx, dayKey(orgID, CounterTotal, at)); err != nil {
		return nil, err
	}
	if snap.Blocked, err = t.store.GetInt64(ctx, dayKey(orgID, CounterBlocked, at)); err != nil {
		return nil, err
	}
	if snap.Discarded, err = t.store.GetInt64(ctx, dayKey(orgID, CounterDiscarded, at)); err != nil {
		return nil, err
	}
	if snap.TooBig, err = t.store.GetInt64(ctx, dayKey(orgID, CounterTooBig, at)); err != nil {
		return nil, err
	}
	if snap.MonthTotal, err = t.store.GetInt64(ctx, monthKey(orgID, CounterTotal, at)); err != nil {
		return nil, err
	}
	if snap.Remaining, err = t.Remaining(ctx, orgID); err != nil {
		return nil, err
	}
	return snap, nil
}
