package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/laundryhub/gateway/internal/httputil"
	"github.com/laundryhub/gateway/internal/logging"
)

// publicKeyPath is the user-service endpoint that publishes the JWT
// verification key as {"publicKey": "<PEM>"}.
const publicKeyPath = "/api/public-key"

// KeySource provides the RSA public key used for token verification.
type KeySource interface {
	// Key returns the currently loaded key, or nil if none is loaded.
	Key() *rsa.PublicKey

	// Refresh fetches the key from the identity service. Concurrent
	// callers share a single fetch.
	Refresh(ctx context.Context) error
}

// KeyStore fetches and caches the verification key published by the user
// service. The key is fetched once at startup and re-fetched lazily when
// a verification is attempted without a loaded key. Refreshes are
// deduplicated so a burst of requests arriving before the first fetch
// completes triggers exactly one upstream call.
type KeyStore struct {
	endpoint string
	client   *http.Client
	logger   *logging.Logger

	group singleflight.Group

	mu  sync.RWMutex
	key *rsa.PublicKey
}

// NewKeyStore creates a key store targeting the given user-service base URL.
func NewKeyStore(userServiceURL string, logger *logging.Logger) *KeyStore {
	return &KeyStore{
		endpoint: userServiceURL + publicKeyPath,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Key returns the currently loaded public key, or nil.
func (s *KeyStore) Key() *rsa.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// Loaded reports whether a verification key is currently available.
func (s *KeyStore) Loaded() bool {
	return s.Key() != nil
}

// Refresh fetches the public key from the user service and installs it.
// Concurrent callers are collapsed into a single fetch; all of them
// observe the same result.
func (s *KeyStore) Refresh(ctx context.Context) error {
	_, err, _ := s.group.Do("public-key", func() (interface{}, error) {
		return nil, s.fetch(ctx)
	})
	return err
}

func (s *KeyStore) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create public key request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch public key: %w", err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllWithLimit(resp.Body, 64<<10)
	if err != nil {
		return fmt.Errorf("failed to read public key response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("public key endpoint returned status %d", resp.StatusCode)
	}

	pem := gjson.GetBytes(body, "publicKey").String()
	if pem == "" {
		return fmt.Errorf("public key missing from response")
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
	if err != nil {
		return fmt.Errorf("failed to parse public key PEM: %w", err)
	}

	s.mu.Lock()
	s.key = key
	s.mu.Unlock()

	s.logger.Info("public key fetched from user service")
	return nil
}
