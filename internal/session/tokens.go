// Package session issues and validates bearer tokens for API access.
package session

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"docguard/internal/util"
)

const (
	defaultIssuer   = "docguard-api"
	defaultAudience = "docguard-clients"
	defaultTTL      = 24 * time.Hour
	defaultLeeway   = 30 * time.Second
)

// Config configures the token manager.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
}

// TokenManager signs and verifies HS256 session tokens. Logout works by
// revoking the token id until the token would have expired anyway.
type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	leeway   time.Duration
	revoker  TokenRevoker
}

// NewTokenManager builds a token manager; the signing secret is required.
func NewTokenManager(cfg Config, revoker TokenRevoker) (*TokenManager, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("session secret required")
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = defaultAudience
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	return &TokenManager{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		leeway:   leeway,
		revoker:  revoker,
	}, nil
}

// NewSession creates a signed token for the user ID.
func (m *TokenManager) NewSession(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id required")
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    m.issuer,
		Audience:  jwt.ClaimStrings{m.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        util.NewID(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// GetUserIDByToken validates a token and returns the subject user ID.
func (m *TokenManager) GetUserIDByToken(token string) (string, bool, error) {
	claims, err := m.parseAndVerify(token)
	if err != nil {
		return "", false, err
	}
	if m.revoker != nil {
		revoked, err := m.revoker.IsRevoked(claims.ID)
		if err != nil {
			return "", false, err
		}
		if revoked {
			return "", false, errors.New("token revoked")
		}
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", false, errors.New("token subject missing")
	}
	return subject, true, nil
}

// DeleteSession revokes the token until it expires.
func (m *TokenManager) DeleteSession(token string) error {
	if m.revoker == nil {
		return nil
	}
	claims, err := m.parseAndVerify(token)
	if err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	return m.revoker.Revoke(claims.ID, time.Until(claims.ExpiresAt.Time))
}

func (m *TokenManager) parseAndVerify(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, errors.New("invalid token format")
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.leeway),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return claims, err
	}
	if strings.TrimSpace(claims.ID) == "" {
		return claims, errors.New("token jti missing")
	}
	return claims, nil
}
