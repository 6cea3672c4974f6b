// Package admission is the request-level accept/reject gate applied to
// event submissions before any payload parsing: rate limiting, plan quota
// enforcement, and oversize rejection.
package admission

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/stackwatch-systems/stackwatch/internal/httputil"
	"github.com/stackwatch-systems/stackwatch/internal/identity"
	"github.com/stackwatch-systems/stackwatch/internal/metrics"
	"github.com/stackwatch-systems/stackwatch/internal/ratelimit"
	"github.com/stackwatch-systems/stackwatch/internal/usage"
)

// ErrUnknownOrganization is returned by OrganizationResolver when the
// caller's credentials map to no organization.
var ErrUnknownOrganization = errors.New("unknown organization")

// OrganizationResolver maps caller identity to the owning organization and
// its default project.
type OrganizationResolver interface {
	ResolveOrganization(ctx context.Context, id identity.Identity) (orgID, projectID string, err error)
}

// Gate composes the rate limiter and the usage tracker into the admission
// decision. It is installed as HTTP middleware ahead of the event handlers.
type Gate struct {
	limiter *ratelimit.Limiter
	tracker *usage.Tracker
	orgs    OrganizationResolver

	// disabled rejects every event submission with service-unavailable.
	disabled       bool
	maxPayloadSize int64
}

// New creates an admission gate.
func New(limiter *ratelimit.Limiter, tracker *usage.Tracker, orgs OrganizationResolver, disabled bool, maxPayloadSize int64) *Gate {
	return &Gate{
		limiter:        limiter,
		tracker:        tracker,
		orgs:           orgs,
		disabled:       disabled,
		maxPayloadSize: maxPayloadSize,
	}
}

// exempt routes are never rate limited: config polling, session
// heartbeats, and push/streaming endpoints.
func exempt(path string) bool {
	switch {
	case strings.HasSuffix(path, "/config"),
		strings.HasSuffix(path, "/heartbeat"),
		strings.HasPrefix(path, "/push"),
		path == "/healthz", path == "/readyz", path == "/metrics":
		return true
	}
	return false
}

// RateLimit is the sliding-window request limiter middleware. Counter
// store failures fail open: the request is forwarded.
func (g *Gate) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.limiter == nil || exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		id, ok := identity.FromContext(r.Context())
		if !ok {
			id = identity.Identity{Kind: identity.KindIP, IP: httputil.GetClientIP(r)}
		}

		decision := g.limiter.Check(r.Context(), id)
		w.Header().Set("RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		w.Header().Set("RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))

		if !decision.Allowed {
			metrics.RateLimitHits.WithLabelValues(string(id.Kind)).Inc()
			if id.OrganizationID != "" {
				_ = g.tracker.IncrementBlocked(r.Context(), id.OrganizationID)
			}
			httputil.WriteError(w, http.StatusTooManyRequests, "request limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Overage enforces plan quota and payload size on event-submission routes.
// The check ordering is client-visible contract: disabled, length-required,
// too-big, then quota. Do not reorder.
func (g *Gate) Overage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.disabled {
			metrics.PostsBlockedTotal.Inc()
			httputil.WriteError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}

		if r.Method == http.MethodPost && r.ContentLength < 0 {
			httputil.WriteError(w, http.StatusLengthRequired, "content length required")
			return
		}

		tooBig := false
		if r.ContentLength > g.maxPayloadSize {
			tooBig = true
			metrics.PostsTooBigTotal.Inc()
		}

		id, ok := identity.FromContext(r.Context())
		if !ok {
			id = identity.Identity{Kind: identity.KindIP, IP: httputil.GetClientIP(r)}
		}

		orgID, projectID, err := g.orgs.ResolveOrganization(r.Context(), id)
		if err != nil || orgID == "" {
			metrics.PostsBlockedTotal.Inc()
			httputil.WriteError(w, http.StatusForbidden, "organization could not be resolved")
			return
		}

		// Oversize submissions never reach the quota check; the status a
		// client sees must not depend on its remaining quota.
		if tooBig {
			_ = g.tracker.IncrementTooBig(r.Context(), orgID)
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "event submission exceeds maximum size")
			return
		}

		remaining, err := g.tracker.Remaining(r.Context(), orgID)
		if err == nil && remaining <= 0 {
			metrics.PostsDiscardedTotal.Inc()
			_ = g.tracker.IncrementDiscarded(r.Context(), orgID)
			httputil.WriteError(w, http.StatusPaymentRequired, "event quota exceeded for the current billing period")
			return
		}
		// A quota lookup failure fails open: the request proceeds.

		ctx := identity.WithIdentity(r.Context(), withOrg(id, orgID, projectID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func withOrg(id identity.Identity, orgID, projectID string) identity.Identity {
	id.OrganizationID = orgID
	if id.ProjectID == "" {
		id.ProjectID = projectID
	}
	return id
}
