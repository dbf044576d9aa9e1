package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/DidNoDB/didnodb/internal/server/models"
)

type contextKey string

const identityContextKey contextKey = "identity"

// authMiddleware resolves the bearer credential into an identity and stores
// it in the request context. No state lookup happens here; the credential is
// self-contained.
func (rt *Router) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		authz := req.Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
			writeError(w, models.ErrInvalidToken)
			return
		}
		credential := strings.TrimPrefix(authz, "Bearer ")
		identity, err := rt.services.Auth.Authenticate(req.Context(), credential)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(req.Context(), identityContextKey, identity)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// requireRole is the authorization predicate for role-scoped routes. It runs
// after authMiddleware and rejects callers whose role does not match.
func (rt *Router) requireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if getIdentity(req.Context()).Role != role {
				writeError(w, models.ErrForbidden)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func getIdentity(ctx context.Context) models.Identity {
	if v, ok := ctx.Value(identityContextKey).(models.Identity); ok {
		return v
	}
	return models.Identity{}
}
