// Package parser turns opaque request bodies into canonical events via a
// prioritized chain of format plugins. The first plugin that recognizes
// and successfully parses a payload wins; results are never aggregated
// across plugins.
package parser

import (
	"context"
	"errors"
	"sort"

	"github.com/stackwatch-systems/stackwatch/internal/models"
)

// ErrNoMatchingPlugin is returned when every plugin declines a payload.
// Callers must reject the submission as malformed input.
var ErrNoMatchingPlugin = errors.New("payload matched no format plugin")

// Plugin is a single wire-format parser. Parse returns (nil, nil) when the
// plugin does not recognize the payload; a deserialization failure is "not
// applicable", never an error to the caller.
type Plugin interface {
	// Priority orders the chain; lower numbers run first.
	Priority() int

	Parse(ctx context.Context, payload []byte, apiVersion int, userAgent string) ([]*models.Event, error)
}

// Manager invokes plugins in ascending priority order and returns the
// result of the first plugin producing a non-empty event list.
type Manager struct {
	plugins []Plugin
}

// NewManager builds a manager from a statically registered plugin set.
// Plugins are sorted by priority at construction.
func NewManager(plugins ...Plugin) *Manager {
	sorted := make([]Plugin, len(plugins))
	copy(sorted, plugins)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Manager{plugins: sorted}
}

// Parse runs the plugin chain over the payload.
func (m *Manager) Parse(ctx context.Context, payload []byte, apiVersion int, userAgent string) ([]*models.Event, error) {
	for _, p := range m.plugins {
		events, err := p.Parse(ctx, payload, apiVersion, userAgent)
		if err != nil {
			// A plugin that recognized the payload but failed still
			// terminates the chain; the submission is malformed.
			return nil, err
		}
		if len(events) > 0 {
			return events, nil
		}
	}
	return nil, ErrNoMatchingPlugin
}
