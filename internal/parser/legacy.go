package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stackwatch-systems/stackwatch/internal/models"
)

var legacyKnown = map[string]bool{
	"occurrence_date": true, "message": true, "tags": true,
	"error": true, "environment_info": true, "request_info": true,
	"user_info": true,
}

// LegacyPlugin parses the v1 error report envelope still submitted by old
// agents. v1 agents report memory sizes in megabytes; the mapper converts
// them to bytes.
type LegacyPlugin struct{}

func (p *LegacyPlugin) Priority() int { return 20 }

func (p *LegacyPlugin) Parse(ctx context.Context, payload []byte, apiVersion int, userAgent string) ([]*models.Event, error) {
	if apiVersion > 1 {
		return nil, nil
	}

	body := bytes.TrimSpace(payload)
	if len(body) == 0 || body[0] != '{' {
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, nil
	}

	var envelope struct {
		OccurrenceDate json.RawMessage  `json:"occurrence_date"`
		Message        string           `json:"message"`
		Tags           []string         `json:"tags"`
		Error          *wireError       `json:"error"`
		Environment    *wireEnvironment `json:"environment_info"`
		Request        *wireRequest     `json:"request_info"`
		User           *wireUser        `json:"user_info"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil
	}
	if envelope.Error == nil {
		// v1 envelopes are always error reports.
		return nil, nil
	}

	// v1 agents identify themselves as stackwatch-client/1.x and report
	// memory in megabytes; anything else already submits bytes.
	mapper := Mapper{MemoryInMegabytes: strings.HasPrefix(userAgent, "stackwatch-client/1.")}

	event := &models.Event{
		ID:          uuid.New().String(),
		Type:        models.TypeError,
		Date:        mapper.MapDate(envelope.OccurrenceDate, time.Now().UTC()),
		Message:     envelope.Message,
		Error:       mapper.MapError(envelope.Error),
		Environment: mapper.MapEnvironment(envelope.Environment),
		Request:     mapper.MapRequest(envelope.Request),
		User:        mapper.MapUser(envelope.User),
	}
	event.Tags.Add(envelope.Tags...)

	mapper.FoldCustomFields(event, fields, legacyKnown)
	return []*models.Event{event}, nil
}
