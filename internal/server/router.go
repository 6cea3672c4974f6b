package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stackwatch-systems/stackwatch/internal/admission"
	"github.com/stackwatch-systems/stackwatch/internal/handlers"
	"github.com/stackwatch-systems/stackwatch/internal/identity"
	"github.com/stackwatch-systems/stackwatch/internal/middleware"
)

// NewRouter assembles the collector routes. The middleware chain is
// RequestID -> Identity -> RateLimit, with the Overage gate wrapped
// around the event-submission routes only.
func NewRouter(h *handlers.EventsHandler, gate *admission.Gate, resolver *identity.Resolver) http.Handler {
	mux := http.NewServeMux()

	// Event submission, gated by the overage check.
	mux.Handle("/api/v2/events", gate.Overage(h.HandleSubmit(2)))
	mux.Handle("/api/v1/events", gate.Overage(h.HandleSubmit(1)))

	// Operational dashboards.
	mux.HandleFunc("GET /api/v2/usage/{org}", h.HandleUsage)

	// Health endpoints.
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics.
	mux.Handle("/metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = gate.RateLimit(handler)
	handler = identity.Middleware(resolver)(handler)
	return middleware.RequestID(handler)
}
