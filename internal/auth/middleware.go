package auth

import (
	"context"
	"fmt"
	"net/http"

	"quarterdeck-booking/internal/logger"
	"quarterdeck-booking/internal/models"
	"quarterdeck-booking/internal/utils"
)

type contextKey string

const principalKey contextKey = "principal"

// Middleware rejects requests without a valid bearer token and stores the
// caller in the request context.
func Middleware(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
				return
			}

			p, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("TOKEN_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), *p)))
		})
	}
}

// RequireRole must run after Middleware.
func RequireRole(role string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
				return
			}
			if !p.HasRole(role) {
				log.LogSecurity("FORBIDDEN", fmt.Sprintf("user %s lacks role %s for %s", p.Subject, role, r.URL.Path))
				utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("Forbidden", "requires role "+role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

// UserID returns the authenticated subject, or "" outside an authenticated request.
func UserID(ctx context.Context) string {
	p, _ := PrincipalFrom(ctx)
	return p.Subject
}
