// Package identity resolves who is calling the collector. Callers are
// identified by their client token's organization, by an authenticated
// user, or by client IP, in that priority order.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stackwatch-systems/stackwatch/internal/httputil"
)

// Kind is how the caller was identified.
type Kind string

const (
	KindToken Kind = "token"
	KindUser  Kind = "user"
	KindIP    Kind = "ip"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity describes the caller of an inbound request.
type Identity struct {
	Kind           Kind
	OrganizationID string
	ProjectID      string
	UserID         string
	IP             string
}

// Key returns the highest-priority identifier available for this caller,
// used as the rate limit counter key.
func (i Identity) Key() string {
	switch {
	case i.OrganizationID != "":
		return "org:" + i.OrganizationID
	case i.UserID != "":
		return "user:" + i.UserID
	case i.IP != "":
		return "ip:" + i.IP
	default:
		return "ip:127.0.0.1"
	}
}

// IsLoopback reports whether the caller resolved to a loopback address.
func (i Identity) IsLoopback() bool {
	return i.Kind == KindIP && (i.IP == "127.0.0.1" || i.IP == "::1")
}

// Claims are the client token claims the collector understands.
type Claims struct {
	OrganizationID string `json:"org_id"`
	ProjectID      string `json:"project_id"`
	UserID         string `json:"user_id"`
	jwt.RegisteredClaims
}

// Resolver extracts caller identity from inbound requests.
type Resolver struct {
	tokenSecret []byte
}

// NewResolver creates a Resolver that validates client tokens with the
// given HMAC secret.
func NewResolver(tokenSecret string) *Resolver {
	return &Resolver{tokenSecret: []byte(tokenSecret)}
}

// Resolve determines the caller identity for r. Token parse failures
// degrade to a lower-priority identity rather than rejecting the request;
// admission decides later whether the request may proceed.
func (res *Resolver) Resolve(r *http.Request) Identity {
	id := Identity{Kind: KindIP, IP: httputil.GetClientIP(r)}
	if id.IP == "" {
		id.IP = "127.0.0.1"
	}

	token := extractBearer(r.Header.Get("Authorization"))
	if token == "" {
		return id
	}

	claims, err := res.parseToken(token)
	if err != nil {
		return id
	}

	id.OrganizationID = claims.OrganizationID
	id.ProjectID = claims.ProjectID
	id.UserID = claims.UserID

	switch {
	case claims.OrganizationID != "":
		id.Kind = KindToken
	case claims.UserID != "":
		id.Kind = KindUser
	}
	return id
}

func (res *Resolver) parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return res.tokenSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type contextKey struct{}

// WithIdentity stores the resolved identity in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Middleware resolves the caller identity once per request and stores it
// in the request context for the admission gate and handlers.
func Middleware(res *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := res.Resolve(r)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
