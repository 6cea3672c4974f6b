package stacks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/stackwatch-systems/stackwatch/internal/metrics"
	"github.com/stackwatch-systems/stackwatch/internal/models"
)

// Resolution is the outcome of assigning an event to its stack.
type Resolution struct {
	Stack        *models.Stack
	IsNew        bool
	IsRegression bool
}

// Resolver finds or creates the owning stack for an event and classifies
// the occurrence. Stack resolution fails closed: an event whose stack
// cannot be resolved is an error, never silently dropped.
type Resolver struct {
	store Store
}

// NewResolver creates a resolver over the given stack store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve tags the event with its stack identity and returns the
// classification. Creation is idempotent under concurrency: an insert
// conflict falls back to the found path.
func (r *Resolver) Resolve(ctx context.Context, event *models.Event) (*Resolution, error) {
	info, hash := ComputeSignature(event)

	stack, err := r.store.FindBySignature(ctx, event.ProjectID, hash)
	if err != nil {
		return nil, fmt.Errorf("find stack by signature: %w", err)
	}

	if stack == nil {
		created := &models.Stack{
			ID:               uuid.New().String(),
			OrganizationID:   event.OrganizationID,
			ProjectID:        event.ProjectID,
			Type:             event.Type,
			Title:            Title(event),
			SignatureHash:    hash,
			SignatureInfo:    info,
			Tags:             append(models.TagSet(nil), event.Tags...),
			FirstOccurrence:  event.Date,
			LastOccurrence:   event.Date,
			TotalOccurrences: 1,
		}

		err := r.store.Insert(ctx, created)
		if err == nil {
			metrics.StacksCreated.Inc()
			event.StackID = created.ID
			event.IsFirstOccurrence = true
			return &Resolution{Stack: created, IsNew: true}, nil
		}
		if !errors.Is(err, ErrStackExists) {
			return nil, fmt.Errorf("insert stack: %w", err)
		}

		// Another submitter created the stack first; converge on its row.
		stack, err = r.store.FindBySignature(ctx, event.ProjectID, hash)
		if err != nil {
			return nil, fmt.Errorf("find stack after insert conflict: %w", err)
		}
		if stack == nil {
			return nil, fmt.Errorf("stack for signature %s vanished after insert conflict", hash)
		}
	}

	regressed := stack.IsFixed() && event.Date.After(*stack.DateFixed)

	updated, err := r.store.AddOccurrence(ctx, stack.ID, event.Date, event.Tags)
	if err != nil {
		return nil, fmt.Errorf("record occurrence: %w", err)
	}

	if regressed {
		if err := r.store.MarkRegressed(ctx, stack.ID); err != nil {
			return nil, fmt.Errorf("mark stack regressed: %w", err)
		}
		metrics.StackRegressions.Inc()
		updated.DateFixed = nil
		updated.IsRegressed = true
	}

	event.StackID = updated.ID
	return &Resolution{Stack: updated, IsRegression: regressed}, nil
}
