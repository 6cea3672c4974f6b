package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackwatch-systems/stackwatch/internal/models"
)

type fakePlugin struct {
	priority int
	events   []*models.Event
	err      error
	called   bool
}

func (p *fakePlugin) Priority() int { return p.priority }

func (p *fakePlugin) Parse(context.Context, []byte, int, string) ([]*models.Event, error) {
	p.called = true
	return p.events, p.err
}

func TestManager_FirstMatchingPluginWins(t *testing.T) {
	first := &fakePlugin{priority: 10, events: []*models.Event{{ID: "from-first"}}}
	second := &fakePlugin{priority: 20, events: []*models.Event{{ID: "from-second"}}}

	// Registration order must not matter, only priority.
	m := NewManager(second, first)

	events, err := m.Parse(context.Background(), []byte("x"), 2, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "from-first", events[0].ID)
	assert.False(t, second.called, "chain must stop at the first match")
}

func TestManager_NotApplicablePluginIsSkipped(t *testing.T) {
	declining := &fakePlugin{priority: 10}
	matching := &fakePlugin{priority: 20, events: []*models.Event{{ID: "matched"}}}

	m := NewManager(declining, matching)

	events, err := m.Parse(context.Background(), []byte("x"), 2, "")
	require.NoError(t, err)
	assert.Equal(t, "matched", events[0].ID)
	assert.True(t, declining.called)
}

func TestManager_PluginErrorTerminatesChain(t *testing.T) {
	failing := &fakePlugin{priority: 10, err: errors.New("bad payload")}
	fallback := &fakePlugin{priority: 20, events: []*models.Event{{ID: "fallback"}}}

	m := NewManager(failing, fallback)

	_, err := m.Parse(context.Background(), []byte("x"), 2, "")
	assert.Error(t, err)
	assert.False(t, fallback.called)
}

func TestManager_NoMatch(t *testing.T) {
	m := NewManager(&fakePlugin{priority: 10})

	_, err := m.Parse(context.Background(), []byte("x"), 2, "")
	assert.ErrorIs(t, err, ErrNoMatchingPlugin)
}

func defaultManager() *Manager {
	return NewManager(&V2Plugin{}, &LegacyPlugin{}, &TextPlugin{})
}

func TestChain_V2SingleObject(t *testing.T) {
	payload := []byte(`{
		"type": "error",
		"message": "boom",
		"source": "checkout",
		"tags": ["Production", "production"],
		"date": "2026-03-01T10:00:00Z",
		"build": "1.2.3",
		"error": {"type": "TimeoutError", "message": "boom"}
	}`)

	events, err := defaultManager().Parse(context.Background(), payload, 2, "stackwatch-client/2.1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, models.TypeError, event.Type)
	assert.Equal(t, "boom", event.Message)
	assert.Equal(t, "checkout", event.Source)
	assert.Equal(t, models.TagSet{"Production"}, event.Tags)
	assert.Equal(t, "2026-03-01T10:00:00Z", event.Date.Format("2006-01-02T15:04:05Z"))
	require.NotNil(t, event.Error)
	assert.Equal(t, "TimeoutError", event.Error.Type)
	assert.Equal(t, "1.2.3", event.Data["build"], "unmapped fields fold into the data bag")
}

func TestChain_V2Array(t *testing.T) {
	payload := []byte(`[{"type":"log","message":"a"},{"type":"log","message":"b"}]`)

	events, err := defaultManager().Parse(context.Background(), payload, 2, "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Message)
	assert.Equal(t, "b", events[1].Message)
}

func TestChain_MalformedJSONIsRejected(t *testing.T) {
	_, err := defaultManager().Parse(context.Background(), []byte(`{"type": "log",`), 2, "")
	assert.ErrorIs(t, err, ErrNoMatchingPlugin)
}

func TestChain_PlainTextFallsBackToLogEvent(t *testing.T) {
	events, err := defaultManager().Parse(context.Background(), []byte("something went wrong"), 2, "curl/8.0")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.TypeLog, events[0].Type)
	assert.Equal(t, "something went wrong", events[0].Message)
	assert.Equal(t, "curl/8.0", events[0].Source)
}

func TestChain_LegacyErrorReport(t *testing.T) {
	payload := []byte(`{
		"occurrence_date": "2026-03-01T10:00:00Z",
		"message": "null reference",
		"tags": ["legacy"],
		"custom_field": 42,
		"error": {
			"type": "NullReferenceException",
			"stack_trace": [{"declaring_type": "App.Checkout", "name": "Submit"}]
		},
		"environment_info": {"total_memory": 2048}
	}`)

	events, err := defaultManager().Parse(context.Background(), payload, 1, "stackwatch-client/1.4")
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, models.TypeError, event.Type)
	assert.Equal(t, "null reference", event.Message)
	require.NotNil(t, event.Error)
	assert.Equal(t, "NullReferenceException", event.Error.Type)
	assert.Equal(t, float64(42), event.Data["custom_field"])
	require.NotNil(t, event.Environment)
	assert.Equal(t, int64(2048*1024*1024), event.Environment.TotalMemory,
		"v1 agents report megabytes")
}

func TestChain_LegacyNonErrorDeclined(t *testing.T) {
	// v1 envelopes without an error object are not valid v1 reports and
	// the body looks like JSON, so the text fallback declines it too.
	_, err := defaultManager().Parse(context.Background(), []byte(`{"message":"hi"}`), 1, "")
	assert.ErrorIs(t, err, ErrNoMatchingPlugin)
}

func TestChain_V2DeclinesOldAPIVersion(t *testing.T) {
	payload := []byte(`{"type":"log","message":"hello","error":{"type":"E"}}`)

	events, err := defaultManager().Parse(context.Background(), payload, 1, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	// The legacy plugin handled it, so the v1 field names apply and the
	// unmatched v2 fields fold into the data bag.
	assert.Equal(t, models.TypeError, events[0].Type)
}

func TestChain_EmptyPayload(t *testing.T) {
	_, err := defaultManager().Parse(context.Background(), []byte("  \n "), 2, "")
	assert.ErrorIs(t, err, ErrNoMatchingPlugin)
}
