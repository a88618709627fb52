package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
	"ms-reservation/internal/utils"
)

type contextKey string

const principalCtxKey contextKey = "principal"

// Middleware resolves the caller of every request and stores the principal
// in the request context. Requests without a valid credential get 401.
func Middleware(resolver SessionResolver, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := ExtractTokenFromRequest(r)
			if err != nil {
				log.LogSecurity("UNAUTHENTICATED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteError(w, http.StatusUnauthorized, "Authentication required", models.ErrSessionInvalid)
				return
			}

			principal, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, models.ErrSessionInvalid) {
					log.LogSecurity("INVALID_SESSION", fmt.Sprintf("%s %s", r.Method, r.URL.Path))
					utils.WriteError(w, http.StatusUnauthorized, "Authentication required", models.ErrSessionInvalid)
					return
				}
				log.Error("AUTH", fmt.Sprintf("Session lookup failed: %v", err))
				utils.WriteError(w, http.StatusInternalServerError, "Authentication unavailable", errors.New("internal error"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdmin rejects non-admin principals with 403. It must run after Middleware.
func RequireAdmin(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok || !p.IsAdmin {
				log.LogSecurity("FORBIDDEN", fmt.Sprintf("user %d on %s %s", p.UserID, r.Method, r.URL.Path))
				utils.WriteError(w, http.StatusForbidden, "Admin access required", models.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// Helper to extract the caller in handlers
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalCtxKey).(models.Principal)
	return p, ok
}
