// Package pipeline orchestrates event enrichment, stack resolution,
// classification, and persistence handoff.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/stackwatch-systems/stackwatch/internal/logging"
	"github.com/stackwatch-systems/stackwatch/internal/metrics"
	"github.com/stackwatch-systems/stackwatch/internal/models"
	"github.com/stackwatch-systems/stackwatch/internal/notify"
	"github.com/stackwatch-systems/stackwatch/internal/stacks"
	"github.com/stackwatch-systems/stackwatch/internal/usage"
)

// EventStore is the persistence handoff for processed events.
type EventStore interface {
	SaveEvent(ctx context.Context, event *models.Event) error
}

// Pipeline runs a batch of event contexts through enrichment, stack
// resolution, classification, and persistence. Failures are per-event:
// no error from a single event propagates out of a batch run.
type Pipeline struct {
	plugins  []Plugin
	resolver *stacks.Resolver
	events   EventStore
	tracker  *usage.Tracker
	notifier notify.Publisher
	logger   *logging.Logger
}

// New creates a pipeline. Enrichment plugins are sorted by priority at
// construction.
func New(plugins []Plugin, resolver *stacks.Resolver, events EventStore, tracker *usage.Tracker, notifier notify.Publisher, logger *logging.Logger) *Pipeline {
	sorted := make([]Plugin, len(plugins))
	copy(sorted, plugins)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	if notifier == nil {
		notifier = notify.NoOpPublisher{}
	}
	return &Pipeline{
		plugins:  sorted,
		resolver: resolver,
		events:   events,
		tracker:  tracker,
		notifier: notifier,
		logger:   logger,
	}
}

// DefaultPlugins returns the standard enrichment chain.
func DefaultPlugins() []Plugin {
	return []Plugin{
		ProjectValidationPlugin{},
		FutureDatePlugin{},
		DerivedFieldsPlugin{},
	}
}

// Run processes a batch of event contexts. Events sharing a signature are
// serialized relative to each other so concurrent creation within the
// batch converges on one stack; only the first event for a signature is
// flagged new. Run always returns a classification per context, even if
// that classification is Failed.
func (p *Pipeline) Run(ctx context.Context, ecs []*EventContext) {
	for _, ec := range ecs {
		p.enrich(ctx, ec)
	}

	// Group by (project, signature) so same-signature events inside the
	// batch resolve in order against one stack row.
	groups := make(map[string][]*EventContext)
	var order []string
	for _, ec := range ecs {
		if ec.Failed() {
			continue
		}
		_, hash := stacks.ComputeSignature(ec.Event)
		key := ec.Event.ProjectID + ":" + hash
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], ec)
	}

	for _, key := range order {
		for _, ec := range groups[key] {
			p.process(ctx, ec)
		}
	}
}

func (p *Pipeline) enrich(ctx context.Context, ec *EventContext) {
	for _, plugin := range p.plugins {
		if ec.Failed() {
			return
		}
		if err := runPlugin(ctx, plugin, ec); err != nil {
			ec.Fail(err)
			metrics.PipelineErrors.Inc()
			p.logger.WarnContext(ctx, "event enrichment failed",
				logging.EventID(ec.Event.ID), logging.Error(err))
			return
		}
	}
	ec.State = StateEnriched
}

func (p *Pipeline) process(ctx context.Context, ec *EventContext) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	// A cancelled request must not apply stack mutations that have not
	// yet been committed.
	if err := ctx.Err(); err != nil {
		ec.Fail(err)
		return
	}

	resolution, err := p.resolver.Resolve(ctx, ec.Event)
	if err != nil {
		// Stack resolution fails closed.
		ec.Fail(fmt.Errorf("resolve stack: %w", err))
		metrics.PipelineErrors.Inc()
		metrics.EventsTotal.WithLabelValues("failed").Inc()
		p.logger.ErrorContext(ctx, "stack resolution failed",
			logging.EventID(ec.Event.ID), logging.Error(err))
		return
	}
	ec.State = StateStackResolved

	ec.Stack = resolution.Stack
	ec.IsNew = resolution.IsNew
	ec.IsRegression = resolution.IsRegression
	ec.State = StateClassified

	storageStart := time.Now()
	err = p.events.SaveEvent(ctx, ec.Event)
	metrics.StorageDuration.Observe(time.Since(storageStart).Seconds())
	if err != nil {
		ec.Fail(fmt.Errorf("persist event: %w", err))
		metrics.StorageErrors.Inc()
		metrics.EventsTotal.WithLabelValues("failed").Inc()
		p.logger.ErrorContext(ctx, "event persistence failed",
			logging.EventID(ec.Event.ID), logging.Error(err))
		return
	}
	ec.State = StatePersisted

	if p.tracker != nil {
		if err := p.tracker.IncrementTotal(ctx, ec.Event.OrganizationID, 1); err != nil {
			p.logger.WarnContext(ctx, "usage increment failed",
				logging.OrgID(ec.Event.OrganizationID), logging.Error(err))
		}
	}

	if (ec.IsNew || ec.IsRegression) && !ec.Stack.DisableNotifications {
		msg := &notify.Message{
			OrganizationID: ec.Event.OrganizationID,
			ProjectID:      ec.Event.ProjectID,
			StackID:        ec.Stack.ID,
			EventID:        ec.Event.ID,
			Type:           ec.Event.Type,
			IsNew:          ec.IsNew,
			IsRegression:   ec.IsRegression,
			OccurredAt:     ec.Event.Date,
		}
		if err := p.notifier.Publish(ctx, msg); err != nil {
			p.logger.WarnContext(ctx, "notification publish failed",
				logging.StackID(ec.Stack.ID), logging.Error(err))
		}
	}

	ec.IsProcessed = true
	ec.State = StateProcessed
	metrics.EventsTotal.WithLabelValues("processed").Inc()
}
