package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackwatch-systems/stackwatch/internal/counters"
	"github.com/stackwatch-systems/stackwatch/internal/identity"
	"github.com/stackwatch-systems/stackwatch/internal/logging"
	"github.com/stackwatch-systems/stackwatch/internal/parser"
	"github.com/stackwatch-systems/stackwatch/internal/pipeline"
	"github.com/stackwatch-systems/stackwatch/internal/stacks"
	"github.com/stackwatch-systems/stackwatch/internal/usage"
)

type submitResponse struct {
	Results []EventResult `json:"results"`
}

type noPlans struct{}

func (noPlans) GetPlanLimits(_ context.Context, _ string) (usage.PlanLimits, error) {
	return usage.PlanLimits{MonthlyEventLimit: -1}, nil
}

func newTestHandler(t *testing.T) *EventsHandler {
	t.Helper()

	p := parser.NewManager(&parser.V2Plugin{}, &parser.LegacyPlugin{}, &parser.TextPlugin{})
	resolver := stacks.NewResolver(stacks.NewMemoryStore())
	tracker := usage.NewTracker(counters.NewMemoryStore(), noPlans{})
	pl := pipeline.New(pipeline.DefaultPlugins(), resolver, pipeline.DiscardEventStore{}, tracker, nil, logging.Default())
	return NewEventsHandler(p, pl, tracker, logging.Default())
}

func submitRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v2/events", strings.NewReader(body))
	ctx := identity.WithIdentity(req.Context(), identity.Identity{
		Kind:           identity.KindToken,
		OrganizationID: "org-1",
		ProjectID:      "proj-1",
	})
	return req.WithContext(ctx)
}

func TestHandleSubmit_SingleEvent(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleSubmit(2)(rec, submitRequest(`{"type":"log","message":"hello","source":"worker"}`))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)

	result := resp.Results[0]
	assert.NotEmpty(t, result.ID)
	assert.NotEmpty(t, result.StackID)
	assert.True(t, result.IsNew)
	assert.True(t, result.IsProcessed)
	assert.Empty(t, result.Error)
}

func TestHandleSubmit_BatchClassification(t *testing.T) {
	h := newTestHandler(t)

	body := `[
		{"type":"log","message":"a","source":"worker"},
		{"type":"log","message":"b","source":"worker"}
	]`
	rec := httptest.NewRecorder()
	h.HandleSubmit(2)(rec, submitRequest(body))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.True(t, resp.Results[0].IsNew)
	assert.False(t, resp.Results[1].IsNew)
	assert.Equal(t, resp.Results[0].StackID, resp.Results[1].StackID)
}

func TestHandleSubmit_MalformedPayload(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleSubmit(2)(rec, submitRequest(`{"type":"log",`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmit_EmptyBody(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleSubmit(2)(rec, submitRequest(""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmit_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v2/events", nil)
	h.HandleSubmit(2)(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSubmit_PlainTextBecomesLogEvent(t *testing.T) {
	h := newTestHandler(t)

	req := submitRequest("something broke")
	req.Header.Set("User-Agent", "curl/8.0")

	rec := httptest.NewRecorder()
	h.HandleSubmit(2)(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].IsProcessed)
}

func TestHandleUsage(t *testing.T) {
	h := newTestHandler(t)

	// Submit an event so today's counters are non-zero.
	rec := httptest.NewRecorder()
	h.HandleSubmit(2)(rec, submitRequest(`{"type":"log","message":"hello","source":"worker"}`))
	require.Equal(t, http.StatusAccepted, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/usage/org-1", nil)
	req.SetPathValue("org", "org-1")

	rec = httptest.NewRecorder()
	h.HandleUsage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snap usage.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "org-1", snap.OrganizationID)
	assert.Equal(t, int64(1), snap.Total)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), snap.Day)
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
