package cache

import (
	"context"
	"time"
)

// TokenEntry is the cached validation state of a bearer token. Entries are
// keyed by the hash of the token value, never the value itself.
type TokenEntry struct {
	ID         string    `redis:"id"` // jti claim
	TokenValue string    `redis:"tokenValue"`
	UserID     string    `redis:"userId"`
	ClientID   string    `redis:"clientId"`
	ExpiresAt  time.Time `redis:"expiresAt"`
	IsRevoked  bool      `redis:"isRevoked"`
	CreatedAt  time.Time `redis:"createdAt"`
	LastUsedAt time.Time `redis:"lastUsedAt"`
}

// TokenStore caches bearer-token validation results, including revocations.
// A miss is not an error condition for callers: validation falls back to
// verifying the signature.
type TokenStore interface {
	Set(ctx context.Context, entry *TokenEntry) error
	Get(ctx context.Context, token string) (*TokenEntry, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) int
	Close() error
}
