package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/utils"
)

type contextKey string

const principalKey contextKey = "principal"

// Middleware admits requests carrying a valid bearer token with the admin role. A nil
// verifier means admin auth is not configured and every admin request gets 503.
func Middleware(v Verifier, adminRole string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				utils.WriteError(w, &apperr.ConfigurationError{Component: "admin auth"})
				return
			}

			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				log.LogSecurity("AUTH_MISSING", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Authentication required", http.StatusText(http.StatusUnauthorized)))
				return
			}

			p, err := v.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("AUTH_INVALID", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Authentication required", http.StatusText(http.StatusUnauthorized)))
				return
			}
			if adminRole != "" && !p.HasRole(adminRole) {
				log.LogSecurity("AUTH_FORBIDDEN", fmt.Sprintf("%s lacks role %s for %s %s", p.Name(), adminRole, r.Method, r.URL.Path))
				utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("You do not have access to this resource", http.StatusText(http.StatusForbidden)))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Actor names the admin behind ctx, or "admin" when there is none.
func Actor(ctx context.Context) string {
	if p, ok := ctx.Value(principalKey).(*Principal); ok && p != nil {
		return p.Name()
	}
	return "admin"
}
