package chi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/annosearch/internal/logger"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// UserHeader names the caller when authentication is disabled.
const UserHeader = "X-Annosearch-User"

type userKey struct{}

// WithUser returns a context carrying the authenticated username.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated username, or "" when unknown.
func UserFromContext(ctx context.Context) string {
	user, _ := ctx.Value(userKey{}).(string)
	return user
}

// BearerAuthMiddleware returns a middleware that maps Bearer tokens to usernames.
// If apiKeys is empty, authentication is disabled and the caller is named by UserHeader.
func BearerAuthMiddleware(apiKeys map[string]string) func(http.Handler) http.Handler {
	users := make(map[string]string, len(apiKeys))
	for k, u := range apiKeys {
		if k != "" && u != "" {
			users[k] = u
		}
	}

	return func(next http.Handler) http.Handler {
		if len(users) == 0 {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if user := r.Header.Get(UserHeader); user != "" {
					r = r.WithContext(logger.With(WithUser(r.Context(), user), zap.String("user", user)))
				}
				next.ServeHTTP(w, r)
			})
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			user, ok := users[auth[len(bearerPrefix):]]
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}

			ctx := logger.With(WithUser(r.Context(), user), zap.String("user", user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
