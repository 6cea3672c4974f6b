package parser

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackwatch-systems/stackwatch/internal/models"
)

func TestMapper_MapType(t *testing.T) {
	m := Mapper{}

	assert.Equal(t, models.TypeError, m.MapType("error"))
	assert.Equal(t, models.TypeSession, m.MapType("session"))
	assert.Equal(t, models.TypeError, m.MapType(""), "legacy agents omit the field")
	assert.Equal(t, models.TypeLog, m.MapType("something-new"))
}

func TestMapper_MapDate(t *testing.T) {
	m := Mapper{}
	received := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		raw      string
		expected time.Time
	}{
		{"rfc3339", `"2026-02-28T08:30:00Z"`, time.Date(2026, 2, 28, 8, 30, 0, 0, time.UTC)},
		{"rfc3339 with offset", `"2026-02-28T10:30:00+02:00"`, time.Date(2026, 2, 28, 8, 30, 0, 0, time.UTC)},
		{"unix seconds", `1772272800`, time.Unix(1772272800, 0).UTC()},
		{"unparseable string", `"yesterday"`, received},
		{"missing", ``, received},
		{"zero number", `0`, received},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.MapDate(json.RawMessage(tt.raw), received)
			assert.True(t, got.Equal(tt.expected), "got %s want %s", got, tt.expected)
		})
	}
}

func TestMapper_MapErrorPreservesNesting(t *testing.T) {
	m := Mapper{}
	mapped := m.MapError(&wireError{
		Type: "WrapError",
		Inner: &wireError{
			Type: "TimeoutError",
			StackTrace: []wireFrame{
				{DeclaringType: "db.Conn", Name: "Query", FileName: "conn.go", LineNumber: 42},
			},
		},
	})

	require.NotNil(t, mapped)
	assert.Equal(t, "WrapError", mapped.Type)
	require.NotNil(t, mapped.Inner)
	assert.Equal(t, "TimeoutError", mapped.Inner.Type)
	require.Len(t, mapped.Inner.StackTrace, 1)
	assert.Equal(t, 42, mapped.Inner.StackTrace[0].LineNumber)
}

func TestMapper_MapErrorDiscardsPlaceholderTrace(t *testing.T) {
	m := Mapper{}

	tests := []struct {
		name   string
		frames []wireFrame
		kept   int
	}{
		{"null marker", []wireFrame{{Name: "<null>"}}, 0},
		{"all empty single frame", []wireFrame{{}}, 0},
		{"real single frame", []wireFrame{{Name: "Submit"}}, 1},
		{"two empty frames", []wireFrame{{}, {}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := m.MapError(&wireError{Type: "E", StackTrace: tt.frames})
			require.NotNil(t, mapped)
			assert.Len(t, mapped.StackTrace, tt.kept)
		})
	}
}

func TestMapper_MapEnvironmentMemoryUnits(t *testing.T) {
	we := &wireEnvironment{TotalMemory: 2048, AvailableMemory: 512}

	bytes := Mapper{}.MapEnvironment(we)
	assert.Equal(t, int64(2048), bytes.TotalMemory)

	megabytes := Mapper{MemoryInMegabytes: true}.MapEnvironment(we)
	assert.Equal(t, int64(2048*1024*1024), megabytes.TotalMemory)
	assert.Equal(t, int64(512*1024*1024), megabytes.AvailableMemory)
}

func TestMapper_FoldCustomFields(t *testing.T) {
	m := Mapper{}
	event := &models.Event{Data: map[string]interface{}{"existing": "keep"}}
	raw := map[string]json.RawMessage{
		"type":     json.RawMessage(`"error"`),
		"build":    json.RawMessage(`"1.2.3"`),
		"count":    json.RawMessage(`7`),
		"existing": json.RawMessage(`"overwrite"`),
		"broken":   json.RawMessage(`{not json`),
	}

	m.FoldCustomFields(event, raw, map[string]bool{"type": true})

	assert.Equal(t, "1.2.3", event.Data["build"])
	assert.Equal(t, float64(7), event.Data["count"])
	assert.Equal(t, "keep", event.Data["existing"], "explicit data wins over folded fields")
	assert.NotContains(t, event.Data, "type")
	assert.NotContains(t, event.Data, "broken")
}
