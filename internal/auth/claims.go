package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the only claims shape the engine accepts. TenantID is mandatory;
// every protected operation is scoped to it.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}

func (c Claims) check(expected TokenType) error {
	switch {
	case c.TokenType != expected:
		return errors.New("token_type mismatch")
	case c.UserID == "":
		return errors.New("user_id missing")
	case c.TenantID == "":
		return errors.New("tenant_id missing")
	case expected == TokenTypeAccess && c.Role == "":
		return errors.New("role missing in access token")
	}
	return nil
}
