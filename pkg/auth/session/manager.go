package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	redisclient "github.com/wiedu/wiedu-backend/pkg/redis"
)

type sessionStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type sessionKeyer interface {
	RevokedTokenKey(accessID string) string
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	IsRevoked(ctx context.Context, accessID string) (bool, error)
}

// AccessSessionRevoker is the write side used by sign-out.
type AccessSessionRevoker interface {
	Revoke(ctx context.Context, accessID string, expiresAt time.Time) error
}

// Manager keeps a denylist of revoked access token ids (jti). Tokens are
// valid until they expire unless their jti is on the list, so no session has
// to be registered by the identity service.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	now   func() time.Time
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Manager{store: client, keyer: client, now: time.Now}, nil
}

// IsRevoked reports whether the access ID was revoked before its expiry.
func (m *Manager) IsRevoked(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	return m.store.Exists(ctx, m.keyer.RevokedTokenKey(accessID))
}

// Revoke denylists accessID until expiresAt. An already expired token needs
// no entry.
func (m *Manager) Revoke(ctx context.Context, accessID string, expiresAt time.Time) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	ttl := expiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.store.Set(ctx, m.keyer.RevokedTokenKey(accessID), "revoked", ttl)
}
