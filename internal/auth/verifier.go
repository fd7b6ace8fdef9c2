// Package auth verifies marketplace bearer tokens at the gateway edge.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/laundryhub/gateway/internal/config"
	"github.com/laundryhub/gateway/internal/errors"
	"github.com/laundryhub/gateway/internal/logging"
)

// Verifier validates bearer tokens. RS256 against the user service's
// public key is the primary trust anchor. When enabled by configuration,
// a failed or unavailable RS256 verification falls back to HS256 with the
// shared development secret — the fallback accepts tokens anyone can
// mint, so it must stay disabled outside development stacks.
type Verifier struct {
	keys          KeySource
	devSecret     []byte
	allowFallback bool
	logger        *logging.Logger
}

// NewVerifier creates a token verifier backed by the given key source.
func NewVerifier(keys KeySource, cfg config.AuthConfig, logger *logging.Logger) *Verifier {
	return &Verifier{
		keys:          keys,
		devSecret:     []byte(cfg.DevSecret),
		allowFallback: cfg.AllowInsecureFallback,
		logger:        logger,
	}
}

// Verify validates tokenString and returns its claims. If no public key
// is loaded yet, a refresh is attempted first; the refresh is shared with
// any other request hitting the same miss.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	if v.keys.Key() == nil {
		if err := v.keys.Refresh(ctx); err != nil {
			v.logger.WithContext(ctx).WithError(err).Warn("public key refresh failed")
		}
	}

	var rsaErr error
	if key := v.keys.Key(); key != nil {
		claims, err := v.parse(tokenString, jwt.SigningMethodRS256.Name, key)
		if err == nil {
			return claims, nil
		}
		rsaErr = err
	} else {
		rsaErr = fmt.Errorf("no verification key loaded")
	}

	if v.allowFallback {
		claims, err := v.parse(tokenString, jwt.SigningMethodHS256.Name, v.devSecret)
		if err == nil {
			v.logger.LogSecurityEvent(ctx, "insecure_fallback_verification", map[string]interface{}{
				"user_id": claims.ID,
			})
			return claims, nil
		}
		return nil, errors.InvalidToken(err)
	}

	return nil, errors.InvalidToken(rsaErr)
}

func (v *Verifier) parse(tokenString, alg string, key interface{}) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != alg {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}, jwt.WithValidMethods([]string{alg}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	return claims, nil
}
