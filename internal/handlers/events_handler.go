package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/stackwatch-systems/stackwatch/internal/httputil"
	"github.com/stackwatch-systems/stackwatch/internal/identity"
	"github.com/stackwatch-systems/stackwatch/internal/logging"
	"github.com/stackwatch-systems/stackwatch/internal/metrics"
	"github.com/stackwatch-systems/stackwatch/internal/parser"
	"github.com/stackwatch-systems/stackwatch/internal/pipeline"
	"github.com/stackwatch-systems/stackwatch/internal/usage"
)

// EventsHandler accepts event submissions and runs them through the
// processing pipeline. Admission has already happened by the time a
// request reaches this handler.
type EventsHandler struct {
	parser   *parser.Manager
	pipeline *pipeline.Pipeline
	tracker  *usage.Tracker
	logger   *logging.Logger
}

// NewEventsHandler creates the submission handler.
func NewEventsHandler(p *parser.Manager, pl *pipeline.Pipeline, tracker *usage.Tracker, logger *logging.Logger) *EventsHandler {
	return &EventsHandler{parser: p, pipeline: pl, tracker: tracker, logger: logger}
}

// EventResult is the per-event classification returned to the client.
type EventResult struct {
	ID           string `json:"id"`
	StackID      string `json:"stack_id,omitempty"`
	IsNew        bool   `json:"is_new"`
	IsRegression bool   `json:"is_regression"`
	IsProcessed  bool   `json:"is_processed"`
	Error        string `json:"error,omitempty"`
}

// HandleSubmit processes POST /api/v{1,2}/events.
func (h *EventsHandler) HandleSubmit(apiVersion int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		defer r.Body.Close()

		if len(body) == 0 {
			httputil.WriteError(w, http.StatusBadRequest, "empty request body")
			return
		}
		metrics.EventBytesTotal.Add(float64(len(body)))

		events, err := h.parser.Parse(r.Context(), body, apiVersion, r.Header.Get("User-Agent"))
		if err != nil {
			metrics.ParseErrors.Inc()
			if !errors.Is(err, parser.ErrNoMatchingPlugin) {
				h.logger.WarnContext(r.Context(), "payload parse failed", logging.Error(err))
			}
			httputil.WriteError(w, http.StatusBadRequest, "malformed event payload")
			return
		}

		id, _ := identity.FromContext(r.Context())
		contexts := make([]*pipeline.EventContext, 0, len(events))
		for _, event := range events {
			event.OrganizationID = id.OrganizationID
			event.ProjectID = id.ProjectID
			contexts = append(contexts, pipeline.NewContext(event))
		}

		h.pipeline.Run(r.Context(), contexts)

		results := make([]EventResult, 0, len(contexts))
		for _, ec := range contexts {
			result := EventResult{
				ID:           ec.Event.ID,
				StackID:      ec.Event.StackID,
				IsNew:        ec.IsNew,
				IsRegression: ec.IsRegression,
				IsProcessed:  ec.IsProcessed,
			}
			if ec.Err != nil {
				result.Error = ec.Err.Error()
			}
			results = append(results, result)
		}

		httputil.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
			"results": results,
		})
	}
}

// HandleUsage serves GET /api/v2/usage/{org} for operational dashboards.
func (h *EventsHandler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org")
	if orgID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "organization id required")
		return
	}

	snap, err := h.tracker.GetSnapshot(r.Context(), orgID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "usage snapshot failed",
			logging.OrgID(orgID), logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load usage")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// Health reports liveness.
func (h *EventsHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready reports readiness.
func (h *EventsHandler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
