package token

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signHS256(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return s
}

func TestJWTValidatorAcceptsValidToken(t *testing.T) {
	secret := []byte("test-secret-at-least-32-bytes-long!")
	v := NewJWTValidatorHMAC("HS256", secret, "svccore", "clients")

	claims := jwt.MapClaims{
		"sub":   "user:42",
		"email": "a@example.com",
		"roles": []interface{}{"admin"},
		"perms": []interface{}{"read"},
		"exp":   float64(time.Now().Add(time.Hour).Unix()),
		"iat":   float64(time.Now().Unix()),
		"iss":   "svccore",
		"aud":   "clients",
		"jti":   "tok-1",
	}
	tokStr := signHS256(t, secret, claims)

	got, err := v.Validate(context.Background(), tokStr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Subject != "user:42" || !got.HasRole("admin") || got.TokenID != "tok-1" {
		t.Fatalf("unexpected claims: %+v", got)
	}
}

func TestJWTValidatorRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret-at-least-32-bytes-long!")
	v := NewJWTValidatorHMAC("HS256", secret, "", "")

	claims := jwt.MapClaims{
		"sub": "user:42",
		"exp": float64(time.Now().Add(-time.Hour).Unix()),
	}
	tokStr := signHS256(t, secret, claims)

	if _, err := v.Validate(context.Background(), tokStr); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestJWTValidatorRejectsIssuerMismatch(t *testing.T) {
	secret := []byte("test-secret-at-least-32-bytes-long!")
	v := NewJWTValidatorHMAC("HS256", secret, "expected-issuer", "")

	claims := jwt.MapClaims{
		"sub": "user:1",
		"iss": "someone-else",
		"exp": float64(time.Now().Add(time.Hour).Unix()),
	}
	tokStr := signHS256(t, secret, claims)

	if _, err := v.Validate(context.Background(), tokStr); err == nil {
		t.Fatal("expected error for issuer mismatch")
	}
}

func TestJWTValidatorRejectsWrongAlgorithm(t *testing.T) {
	secret := []byte("test-secret-at-least-32-bytes-long!")
	v := NewJWTValidatorHMAC("HS384", secret, "", "")

	claims := jwt.MapClaims{"sub": "user:1", "exp": float64(time.Now().Add(time.Hour).Unix())}
	tokStr := signHS256(t, secret, claims)

	if _, err := v.Validate(context.Background(), tokStr); err == nil {
		t.Fatal("expected error for algorithm mismatch")
	}
}
