package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for downstream consumers (webhook delivery, digests).
const (
	SubjectNewStack   = "stackwatch.stacks.new"
	SubjectRegression = "stackwatch.stacks.regression"
)

// NATSPublisher publishes notification messages to NATS.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("stackwatch-collector"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, msg *Message) error {
	subject := SubjectNewStack
	if msg.IsRegression {
		subject = SubjectRegression
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	p.conn.Close()
}
