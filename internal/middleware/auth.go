// Package middleware provides HTTP middleware for the gateway.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/laundryhub/gateway/internal/auth"
	"github.com/laundryhub/gateway/internal/errors"
	"github.com/laundryhub/gateway/internal/httputil"
	"github.com/laundryhub/gateway/internal/logging"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*auth.Claims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the authenticated caller's claims, or nil.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(claimsContextKey{}).(*auth.Claims); ok {
		return claims
	}
	return nil
}

// AuthMiddleware authenticates requests with the token verifier and
// prepares the identity headers forwarded to backend services.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *logging.Logger
}

// NewAuthMiddleware creates an authentication middleware.
func NewAuthMiddleware(verifier TokenVerifier, logger *logging.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// Require rejects requests without a valid bearer token.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The claims header is gateway-owned; never trust an inbound one.
		r.Header.Del(httputil.UserHeader)

		token, ok := bearerToken(r)
		if !ok {
			httputil.WriteError(w, errors.Unauthorized("No token provided"))
			return
		}

		claims, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("token verification failed")
			httputil.WriteError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(m.authenticate(r, claims)))
	})
}

// Optional verifies a bearer token when one is present but lets
// unauthenticated requests through without claims.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(httputil.UserHeader)

		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("optional token verification failed")
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(m.authenticate(r, claims)))
	})
}

// authenticate attaches claims to the context and sets the serialized
// claims header consumed by backend services.
func (m *AuthMiddleware) authenticate(r *http.Request, claims *auth.Claims) context.Context {
	ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
	ctx = logging.WithUserID(ctx, claims.ID)
	if claims.Role != "" {
		ctx = logging.WithRole(ctx, claims.Role)
	}
	ctx = httputil.WithForwardedAuthorization(ctx, r.Header.Get("Authorization"))

	if serialized, err := json.Marshal(claims); err == nil {
		r.Header.Set(httputil.UserHeader, string(serialized))
		ctx = httputil.WithForwardedUser(ctx, string(serialized))
	}

	return ctx
}

// bearerToken extracts the token from a "Bearer <token>" header value.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}
