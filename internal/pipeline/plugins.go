package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Plugin is a single enrichment step. The chain runs in ascending
// priority order; a plugin error halts enrichment for that event only.
type Plugin interface {
	Priority() int
	Run(ctx context.Context, ec *EventContext) error
}

// maxClockSkew is how far in the future an event date may be before it is
// clamped to receipt time.
const maxClockSkew = 5 * time.Minute

// ProjectValidationPlugin rejects events whose organization or project
// cannot be resolved.
type ProjectValidationPlugin struct{}

func (ProjectValidationPlugin) Priority() int { return 10 }

func (ProjectValidationPlugin) Run(_ context.Context, ec *EventContext) error {
	if ec.Event.OrganizationID == "" {
		return errors.New("event has no organization")
	}
	if ec.Event.ProjectID == "" {
		return errors.New("event has no project")
	}
	return nil
}

// FutureDatePlugin clamps future-dated events to receipt time. Future
// dates are never a reason to reject an event.
type FutureDatePlugin struct {
	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

func (FutureDatePlugin) Priority() int { return 20 }

func (p FutureDatePlugin) Run(_ context.Context, ec *EventContext) error {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	current := now().UTC()

	if ec.Event.Date.IsZero() {
		ec.Event.Date = current
		return nil
	}
	if ec.Event.Date.After(current.Add(maxClockSkew)) {
		ec.Event.Date = current
	}
	return nil
}

// DerivedFieldsPlugin computes typed index fields from the free-form data
// bag. Each derived key carries a suffix per value type: -s string,
// -n number, -b bool, -d date. Nested objects flatten with a dotted
// prefix.
type DerivedFieldsPlugin struct{}

func (DerivedFieldsPlugin) Priority() int { return 30 }

func (p DerivedFieldsPlugin) Run(_ context.Context, ec *EventContext) error {
	if len(ec.Event.Data) == 0 {
		return nil
	}
	idx := make(map[string]interface{})
	p.derive(idx, "", ec.Event.Data)
	if len(idx) > 0 {
		ec.Event.Idx = idx
	}
	return nil
}

func (p DerivedFieldsPlugin) derive(idx map[string]interface{}, prefix string, data map[string]interface{}) {
	for key, value := range data {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		switch v := value.(type) {
		case bool:
			idx[name+"-b"] = v
		case float64:
			idx[name+"-n"] = v
		case int:
			idx[name+"-n"] = float64(v)
		case int64:
			idx[name+"-n"] = float64(v)
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				idx[name+"-d"] = t.UTC()
			} else {
				idx[name+"-s"] = v
			}
		case map[string]interface{}:
			p.derive(idx, name, v)
		}
	}
}

// runPlugin executes one enrichment step with panic isolation: a plugin
// that panics fails this event, not the batch.
func runPlugin(ctx context.Context, plugin Plugin, ec *EventContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrichment plugin panic: %v", r)
		}
	}()
	return plugin.Run(ctx, ec)
}
