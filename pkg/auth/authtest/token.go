// Package authtest signs access tokens the way the identity service does so
// handlers behind middleware.Auth can be exercised in tests.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wiedu/wiedu-backend/pkg/auth"
	"github.com/wiedu/wiedu-backend/pkg/config"
)

// Mint signs an HS256 token for userID issued at now. A blank jti gets a
// random one.
func Mint(tb testing.TB, cfg config.JWTConfig, now time.Time, userID uuid.UUID, jti string) string {
	tb.Helper()
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := auth.AccessTokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		tb.Fatalf("sign access token: %v", err)
	}
	return signed
}
