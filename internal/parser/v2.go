package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/stackwatch-systems/stackwatch/internal/models"
)

// v2Known lists envelope fields mapped to canonical event slots; anything
// else folds into the data bag.
var v2Known = map[string]bool{
	"type": true, "date": true, "message": true, "source": true,
	"tags": true, "data": true, "error": true, "request": true,
	"environment": true, "user": true,
}

// V2Plugin parses the canonical JSON envelope: a single event object or an
// array of them. Current client SDKs submit this format.
type V2Plugin struct {
	Mapper
}

func (p *V2Plugin) Priority() int { return 10 }

func (p *V2Plugin) Parse(ctx context.Context, payload []byte, apiVersion int, userAgent string) ([]*models.Event, error) {
	if apiVersion < 2 {
		return nil, nil
	}

	body := bytes.TrimSpace(payload)
	if len(body) == 0 {
		return nil, nil
	}

	var raws []json.RawMessage
	if body[0] == '[' {
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, nil
		}
	} else if body[0] == '{' {
		raws = []json.RawMessage{body}
	} else {
		return nil, nil
	}

	received := time.Now().UTC()
	events := make([]*models.Event, 0, len(raws))
	for _, raw := range raws {
		event, ok := p.mapEvent(raw, received)
		if !ok {
			return nil, nil
		}
		events = append(events, event)
	}
	return events, nil
}

func (p *V2Plugin) mapEvent(raw json.RawMessage, received time.Time) (*models.Event, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}

	var envelope struct {
		Type        string                 `json:"type"`
		Date        json.RawMessage        `json:"date"`
		Message     string                 `json:"message"`
		Source      string                 `json:"source"`
		Tags        []string               `json:"tags"`
		Data        map[string]interface{} `json:"data"`
		Error       *wireError             `json:"error"`
		Request     *wireRequest           `json:"request"`
		Environment *wireEnvironment       `json:"environment"`
		User        *wireUser              `json:"user"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, false
	}

	event := &models.Event{
		ID:          uuid.New().String(),
		Type:        p.MapType(envelope.Type),
		Date:        p.MapDate(envelope.Date, received),
		Message:     envelope.Message,
		Source:      envelope.Source,
		Data:        envelope.Data,
		Error:       p.MapError(envelope.Error),
		Request:     p.MapRequest(envelope.Request),
		Environment: p.MapEnvironment(envelope.Environment),
		User:        p.MapUser(envelope.User),
	}
	event.Tags.Add(envelope.Tags...)

	p.FoldCustomFields(event, fields, v2Known)
	return event, true
}
