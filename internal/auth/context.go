package auth

import (
	"context"
	"errors"
)

// Identity is the verified caller attached to a request context.
type Identity struct {
	UserID   string
	TenantID string
	Role     string
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, userID, tenantID, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, Identity{UserID: userID, TenantID: tenantID, Role: role})
}

func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

func UserID(ctx context.Context) (string, error) {
	if id, ok := identityFrom(ctx); ok && id.UserID != "" {
		return id.UserID, nil
	}
	return "", errors.New("user_id not in context")
}

func TenantID(ctx context.Context) (string, error) {
	if id, ok := identityFrom(ctx); ok && id.TenantID != "" {
		return id.TenantID, nil
	}
	return "", errors.New("tenant_id not in context")
}

func Role(ctx context.Context) (string, error) {
	if id, ok := identityFrom(ctx); ok && id.Role != "" {
		return id.Role, nil
	}
	return "", errors.New("role not in context")
}
