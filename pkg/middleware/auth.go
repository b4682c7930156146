package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/vfg2006/ozon-performance-sync/internal/domain"
	"github.com/vfg2006/ozon-performance-sync/internal/usecases/authenticating"
	"github.com/vfg2006/ozon-performance-sync/pkg/apiErrors"
	"github.com/vfg2006/ozon-performance-sync/pkg/log"
)

type contextKey string

// ContextKeyClaims stores the validated token claims in the request context.
const ContextKeyClaims contextKey = "claims"

// Paths served without a token.
var skipAuthPaths = []string{
	"/healthcheck",
}

func AuthMiddleware(authenticator authenticating.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range skipAuthPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				apiErrors.WriteError(w, apiErrors.ErrInvalidToken, "missing bearer token", nil)
				return
			}

			tokenString := strings.TrimPrefix(header, "Bearer ")

			claims, err := authenticator.ValidateToken(tokenString)
			if err != nil {
				log.ForContext(r.Context()).WithFields(log.Fields{
					"path": r.URL.Path,
				}).Warn("request rejected: invalid token")

				apiErrors.WriteError(w, apiErrors.ErrInvalidToken, "invalid or expired token", nil)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stored by AuthMiddleware, if any.
func ClaimsFromContext(ctx context.Context) (*domain.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*domain.Claims)
	return claims, ok
}
