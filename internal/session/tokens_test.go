package session

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func newTestManager(t *testing.T, revoker TokenRevoker) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(Config{Secret: "test-secret"}, revoker)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	return m
}

func TestTokenRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)
	token, err := m.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	userID, ok, err := m.GetUserIDByToken(token)
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
	if userID != "user-1" {
		t.Fatalf("unexpected subject %q", userID)
	}
}

func TestTokenManagerRequiresSecret(t *testing.T) {
	if _, err := NewTokenManager(Config{Secret: "  "}, nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	m := newTestManager(t, nil)
	token, err := m.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	other, err := NewTokenManager(Config{Secret: "different-secret"}, nil)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	if _, _, err := other.GetUserIDByToken(token); err == nil {
		t.Fatal("expected verification to fail with wrong secret")
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	m := newTestManager(t, nil)
	now := time.Now().UTC().Add(-2 * time.Hour)
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    defaultIssuer,
		Audience:  jwt.ClaimStrings{defaultAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        "jti-1",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, _, err := m.GetUserIDByToken(token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestDeleteSessionRevokes(t *testing.T) {
	m := newTestManager(t, NewMemoryTokenRevoker())
	token, err := m.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, err := m.GetUserIDByToken(token); err != nil || !ok {
		t.Fatalf("token should verify before logout: ok=%v err=%v", ok, err)
	}
	if err := m.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, _, err := m.GetUserIDByToken(token); err == nil {
		t.Fatal("expected revoked token to fail verification")
	}
}
