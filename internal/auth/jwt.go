package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"pbx-engine/internal/config"
)

// Manager verifies the HS256 tokens the identity service issues. The engine
// only consumes access tokens; Mint exists for that service and for tests.
type Manager struct {
	secret   []byte
	issuer   string
	audience string
	ttls     map[TokenType]time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &Manager{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		ttls: map[TokenType]time.Duration{
			TokenTypeAccess:  cfg.AccessTokenTTL,
			TokenTypeRefresh: cfg.RefreshTokenTTL,
		},
	}, nil
}

// Mint signs a single token of the given type. Refresh tokens never carry a
// role.
func (m *Manager) Mint(now time.Time, typ TokenType, userID, tenantID, role string) (string, error) {
	ttl, ok := m.ttls[typ]
	if !ok || ttl <= 0 {
		return "", fmt.Errorf("no ttl configured for %q tokens", typ)
	}
	if typ == TokenTypeRefresh {
		role = ""
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UserID:    userID,
		TenantID:  tenantID,
		Role:      role,
		TokenType: typ,
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses a token and validates it as of the given instant. Parsing
// skips claim validation so the validator below can run against the injected
// clock; 30 seconds of skew are tolerated.
func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return Claims{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	if err := jwt.NewValidator(opts...).Validate(claims.RegisteredClaims); err != nil {
		return Claims{}, err
	}

	return claims, claims.check(expected)
}
