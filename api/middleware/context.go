package middleware

import (
	"context"
	"time"
)

type contextKey string

const (
	ctxUserID      contextKey = "user_id"
	ctxAccessToken contextKey = "access_token"
)

type accessToken struct {
	id        string
	expiresAt time.Time
}

// UserIDFromContext returns the verified user id set by Auth, or "".
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithAccessToken records the jti and expiry of the bearer token.
func WithAccessToken(ctx context.Context, accessID string, expiresAt time.Time) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccessToken, accessToken{id: accessID, expiresAt: expiresAt})
}

// AccessTokenFromContext returns the jti and expiry set by Auth.
func AccessTokenFromContext(ctx context.Context) (string, time.Time, bool) {
	if ctx == nil {
		return "", time.Time{}, false
	}
	v, ok := ctx.Value(ctxAccessToken).(accessToken)
	if !ok || v.id == "" {
		return "", time.Time{}, false
	}
	return v.id, v.expiresAt, true
}
