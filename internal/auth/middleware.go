package auth

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/grocerly/auth-api/internal/httputil"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const identityContextKey ContextKey = "identity"

// Identity is the authenticated principal attached to the request
// context by the Authenticate middleware.
type Identity struct {
	Email string
	Name  string
}

// Middleware derives request identities from the session cookie.
type Middleware struct {
	tokens     TokenService
	adminToken string
}

func NewMiddleware(tokens TokenService, adminToken string) *Middleware {
	return &Middleware{tokens: tokens, adminToken: adminToken}
}

// Authenticate runs on every request. A valid session cookie attaches an
// Identity to the context; a missing, malformed or expired cookie lets
// the request through anonymously. The middleware never writes an error
// response itself: routes that need an identity reject its absence.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := SessionTokenFromRequest(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.tokens.VerifyToken(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, Identity{
			Email: claims.Email,
			Name:  claims.Name,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromContext extracts the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}

// RequireAdmin guards administrative routes with a shared secret passed
// in the X-Admin-Token header. When no secret is configured the routes
// are disabled outright.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.adminToken == "" {
			httputil.RespondErrorWithCode(w, "administrative access disabled", httputil.CodeAdminRequired, http.StatusForbidden)
			return
		}

		supplied := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(m.adminToken)) != 1 {
			httputil.RespondErrorWithCode(w, "administrative access required", httputil.CodeAdminRequired, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
