package pipeline

import "github.com/stackwatch-systems/stackwatch/internal/models"

// State is the lifecycle position of an event inside the pipeline.
type State string

const (
	StateReceived      State = "received"
	StateParsed        State = "parsed"
	StateEnriched      State = "enriched"
	StateStackResolved State = "stack_resolved"
	StateClassified    State = "classified"
	StatePersisted     State = "persisted"
	StateProcessed     State = "processed"
	StateFailed        State = "failed"
)

// EventContext is the mutable per-event working state threaded through a
// pipeline run. It is never persisted.
type EventContext struct {
	Event *models.Event
	Stack *models.Stack

	IsNew        bool
	IsRegression bool
	IsProcessed  bool

	State State
	Err   error
}

// NewContext wraps a parsed event for a pipeline run.
func NewContext(event *models.Event) *EventContext {
	return &EventContext{Event: event, State: StateParsed}
}

// Fail records an unrecoverable error and moves the context to the
// terminal Failed state. Only the first error is kept.
func (c *EventContext) Fail(err error) {
	if c.Err == nil {
		c.Err = err
	}
	c.State = StateFailed
}

// Failed reports whether the context reached the terminal Failed state.
func (c *EventContext) Failed() bool {
	return c.State == StateFailed
}
