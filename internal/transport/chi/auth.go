package chi

import (
	"context"
	"net/http"
	"strings"
)

// DefaultOwner is the principal used when authentication is disabled.
const DefaultOwner = "admin"

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type ownerCtxKey struct{}

// ContextWithOwner stores the authenticated principal in the context.
func ContextWithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerCtxKey{}, owner)
}

// OwnerFromContext returns the authenticated principal, or DefaultOwner.
func OwnerFromContext(ctx context.Context) string {
	if o, ok := ctx.Value(ownerCtxKey{}).(string); ok && o != "" {
		return o
	}
	return DefaultOwner
}

// BearerAuthMiddleware returns a middleware that validates Bearer tokens and
// maps each key to the owner it authenticates. Searches, results and providers
// are scoped to that owner.
// If apiKeys is empty, authentication is disabled and every request acts as DefaultOwner.
func BearerAuthMiddleware(apiKeys map[string]string) func(http.Handler) http.Handler {
	owners := make(map[string]string, len(apiKeys))
	for k, owner := range apiKeys {
		if k == "" {
			continue
		}
		if owner == "" {
			owner = DefaultOwner
		}
		owners[k] = owner
	}

	return func(next http.Handler) http.Handler {
		if len(owners) == 0 {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(ContextWithOwner(r.Context(), DefaultOwner)))
			})
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, ErrorResponseCodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized,
					ErrorResponseCodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			owner, ok := owners[auth[len(bearerPrefix):]]
			if !ok {
				writeError(w, http.StatusUnauthorized, ErrorResponseCodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithOwner(r.Context(), owner)))
		})
	}
}
