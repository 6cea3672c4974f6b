package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims Claims, secret string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestResolver_TokenIdentity(t *testing.T) {
	res := NewResolver(testSecret)
	token := signToken(t, Claims{
		OrganizationID: "org-1",
		ProjectID:      "proj-1",
	}, testSecret)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.RemoteAddr = "203.0.113.9:51000"

	id := res.Resolve(req)
	assert.Equal(t, KindToken, id.Kind)
	assert.Equal(t, "org-1", id.OrganizationID)
	assert.Equal(t, "proj-1", id.ProjectID)
	assert.Equal(t, "203.0.113.9", id.IP)
	assert.Equal(t, "org:org-1", id.Key())
}

func TestResolver_UserIdentity(t *testing.T) {
	res := NewResolver(testSecret)
	token := signToken(t, Claims{UserID: "user-7"}, testSecret)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	id := res.Resolve(req)
	assert.Equal(t, KindUser, id.Kind)
	assert.Equal(t, "user:user-7", id.Key())
}

func TestResolver_BadTokenDegradesToIP(t *testing.T) {
	res := NewResolver(testSecret)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, Claims{OrganizationID: "org-1"}, "other-secret")},
		{"garbage", "not.a.token"},
		{"expired", signToken(t, Claims{
			OrganizationID: "org-1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}, testSecret)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v2/events", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			req.RemoteAddr = "203.0.113.9:51000"

			id := res.Resolve(req)
			assert.Equal(t, KindIP, id.Kind)
			assert.Empty(t, id.OrganizationID)
			assert.Equal(t, "ip:203.0.113.9", id.Key())
		})
	}
}

func TestResolver_NoAuthorizationHeader(t *testing.T) {
	res := NewResolver(testSecret)
	req := httptest.NewRequest(http.MethodPost, "/api/v2/events", nil)
	req.RemoteAddr = "192.0.2.4:40000"

	id := res.Resolve(req)
	assert.Equal(t, KindIP, id.Kind)
	assert.Equal(t, "192.0.2.4", id.IP)
}

func TestIdentity_IsLoopback(t *testing.T) {
	assert.True(t, Identity{Kind: KindIP, IP: "127.0.0.1"}.IsLoopback())
	assert.True(t, Identity{Kind: KindIP, IP: "::1"}.IsLoopback())
	assert.False(t, Identity{Kind: KindIP, IP: "203.0.113.9"}.IsLoopback())
	assert.False(t, Identity{Kind: KindToken, OrganizationID: "org-1", IP: "127.0.0.1"}.IsLoopback())
}

func TestMiddleware_StoresIdentityInContext(t *testing.T) {
	res := NewResolver(testSecret)
	token := signToken(t, Claims{OrganizationID: "org-1"}, testSecret)

	var seen Identity
	var found bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, found = FromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v2/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	Middleware(res)(next).ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, found)
	assert.Equal(t, "org-1", seen.OrganizationID)
}
