package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/laundryhub/gateway/internal/config"
	"github.com/laundryhub/gateway/internal/errors"
	"github.com/laundryhub/gateway/internal/logging"
)

const testDevSecret = "dev-secret-key-123"

// fakeKeySource serves a fixed key and counts refresh attempts.
type fakeKeySource struct {
	key        *rsa.PublicKey
	keyAfter   *rsa.PublicKey
	refreshes  int
	refreshErr error
}

func (f *fakeKeySource) Key() *rsa.PublicKey {
	return f.key
}

func (f *fakeKeySource) Refresh(ctx context.Context) error {
	f.refreshes++
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.key = f.keyAfter
	return nil
}

func generateTestKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	return privateKey, &privateKey.PublicKey
}

func testClaims() *Claims {
	return &Claims{
		ID:    "user-123",
		Email: "seller@example.com",
		Name:  "Test Seller",
		Role:  "SELLER",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func signRS256(t *testing.T, privateKey *rsa.PrivateKey, claims *Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
	if err != nil {
		t.Fatalf("Failed to sign RS256 token: %v", err)
	}
	return token
}

func signHS256(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign HS256 token: %v", err)
	}
	return token
}

func newTestVerifier(keys KeySource, allowFallback bool) *Verifier {
	return NewVerifier(keys, config.AuthConfig{
		DevSecret:             testDevSecret,
		AllowInsecureFallback: allowFallback,
	}, logging.New("test", "error", "json"))
}

func TestVerifier_RS256RoundTrip(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)
	v := newTestVerifier(&fakeKeySource{key: publicKey}, false)

	token := signRS256(t, privateKey, testClaims())

	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if claims.ID != "user-123" {
		t.Errorf("ID = %v, want user-123", claims.ID)
	}
	if claims.Email != "seller@example.com" {
		t.Errorf("Email = %v, want seller@example.com", claims.Email)
	}
	if claims.Name != "Test Seller" {
		t.Errorf("Name = %v, want Test Seller", claims.Name)
	}
	if claims.Role != "SELLER" {
		t.Errorf("Role = %v, want SELLER", claims.Role)
	}
}

func TestVerifier_FallbackWhenKeyAbsent(t *testing.T) {
	v := newTestVerifier(&fakeKeySource{}, true)

	token := signHS256(t, testDevSecret, testClaims())

	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.ID != "user-123" {
		t.Errorf("ID = %v, want user-123", claims.ID)
	}
}

func TestVerifier_FallbackWhenKeyRejects(t *testing.T) {
	_, publicKey := generateTestKeys(t)
	v := newTestVerifier(&fakeKeySource{key: publicKey}, true)

	// HS256 token: RS256 verification rejects it, fallback accepts it.
	token := signHS256(t, testDevSecret, testClaims())

	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.ID != "user-123" {
		t.Errorf("ID = %v, want user-123", claims.ID)
	}
}

func TestVerifier_FailsClosedWithoutFallback(t *testing.T) {
	_, publicKey := generateTestKeys(t)

	tests := []struct {
		name string
		keys KeySource
	}{
		{"no key loaded", &fakeKeySource{}},
		{"key rejects token", &fakeKeySource{key: publicKey}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(tt.keys, false)
			token := signHS256(t, testDevSecret, testClaims())

			if _, err := v.Verify(context.Background(), token); err == nil {
				t.Fatal("Verify() accepted a dev-secret token with fallback disabled")
			}
		})
	}
}

func TestVerifier_RejectsWrongSecretOnFallback(t *testing.T) {
	v := newTestVerifier(&fakeKeySource{}, true)

	token := signHS256(t, "some-other-secret", testClaims())

	if _, err := v.Verify(context.Background(), token); err == nil {
		t.Fatal("Verify() accepted a token signed with the wrong secret")
	}
}

func TestVerifier_RejectsExpiredToken(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)
	v := newTestVerifier(&fakeKeySource{key: publicKey}, false)

	claims := testClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-1 * time.Hour))
	token := signRS256(t, privateKey, claims)

	_, err := v.Verify(context.Background(), token)
	if err == nil {
		t.Fatal("Verify() accepted an expired token")
	}

	se := errors.GetServiceError(err)
	if se == nil {
		t.Fatal("Verify() error is not a ServiceError")
	}
	if se.HTTPStatus != 401 {
		t.Errorf("HTTPStatus = %d, want 401", se.HTTPStatus)
	}
}

func TestVerifier_LazyRefreshOnMissingKey(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)
	keys := &fakeKeySource{keyAfter: publicKey}
	v := newTestVerifier(keys, false)

	token := signRS256(t, privateKey, testClaims())

	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.ID != "user-123" {
		t.Errorf("ID = %v, want user-123", claims.ID)
	}
	if keys.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", keys.refreshes)
	}
}

func TestVerifier_NoRefreshWhenKeyLoaded(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)
	keys := &fakeKeySource{key: publicKey}
	v := newTestVerifier(keys, false)

	token := signRS256(t, privateKey, testClaims())

	if _, err := v.Verify(context.Background(), token); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if keys.refreshes != 0 {
		t.Errorf("refreshes = %d, want 0", keys.refreshes)
	}
}
