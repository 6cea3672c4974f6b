// Package notify enqueues downstream notification messages for new and
// regressed stacks. Delivery itself happens outside the collector.
package notify

import (
	"context"
	"time"
)

// Message describes a stack-level occurrence worth notifying about.
type Message struct {
	OrganizationID string    `json:"organization_id"`
	ProjectID      string    `json:"project_id"`
	StackID        string    `json:"stack_id"`
	EventID        string    `json:"event_id"`
	Type           string    `json:"type"`
	IsNew          bool      `json:"is_new"`
	IsRegression   bool      `json:"is_regression"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher enqueues notification messages.
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
	Close()
}

// NoOpPublisher discards all messages. Used when NATS is disabled and in
// tests.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, *Message) error { return nil }
func (NoOpPublisher) Close()                                  {}
