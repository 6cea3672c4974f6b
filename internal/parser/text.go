package parser

import (
	"bytes"
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/stackwatch-systems/stackwatch/internal/models"
)

// TextPlugin is the lowest-priority fallback: a plain text body becomes a
// single log event. JSON-looking payloads are left to the JSON plugins so
// malformed JSON is still reported as malformed rather than logged as text.
type TextPlugin struct{}

func (p *TextPlugin) Priority() int { return 100 }

func (p *TextPlugin) Parse(ctx context.Context, payload []byte, apiVersion int, userAgent string) ([]*models.Event, error) {
	body := bytes.TrimSpace(payload)
	if len(body) == 0 || !utf8.Valid(body) {
		return nil, nil
	}
	if body[0] == '{' || body[0] == '[' {
		return nil, nil
	}

	return []*models.Event{{
		ID:      uuid.New().String(),
		Type:    models.TypeLog,
		Date:    time.Now().UTC(),
		Message: string(body),
		Source:  userAgent,
	}}, nil
}
