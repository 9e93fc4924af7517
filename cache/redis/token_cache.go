package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"go.avinoo.ir/sso/cache"
)

// TokenStore implements cache.TokenStore on Redis. Keys carry a TTL matching
// the token expiry, so DeleteExpired is a no-op kept for interface parity.
type TokenStore struct {
	client *redis.Client
	prefix string
}

// NewTokenStore creates a Redis-backed token store. The prefix namespaces
// keys when the Redis instance is shared.
func NewTokenStore(client *redis.Client, prefix string) *TokenStore {
	return &TokenStore{client: client, prefix: prefix}
}

func (r *TokenStore) redisKey(token string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, cache.HashToken(token))
}

// Set stores a token entry as a Redis hash with expiry.
func (r *TokenStore) Set(ctx context.Context, entry *cache.TokenEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	key := r.redisKey(entry.TokenValue)
	fields := map[string]any{
		"id":           entry.ID,
		"user_id":      entry.UserID,
		"client_id":    entry.ClientID,
		"expires_at":   entry.ExpiresAt.Unix(),
		"is_revoked":   entry.IsRevoked,
		"created_at":   entry.CreatedAt.Unix(),
		"last_used_at": time.Now().Unix(),
	}

	if err := r.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to set token in redis: %w", err)
	}
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token expiry in redis: %w", err)
	}
	return nil
}

// Get retrieves a token entry.
func (r *TokenStore) Get(ctx context.Context, token string) (*cache.TokenEntry, error) {
	key := r.redisKey(token)

	res, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read token from redis: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("token not found")
	}

	entry := &cache.TokenEntry{
		ID:         res["id"],
		TokenValue: token,
		UserID:     res["user_id"],
		ClientID:   res["client_id"],
		IsRevoked:  res["is_revoked"] == "1" || res["is_revoked"] == "true",
	}
	if unix, err := parseUnix(res["expires_at"]); err == nil {
		entry.ExpiresAt = unix
	}
	if unix, err := parseUnix(res["created_at"]); err == nil {
		entry.CreatedAt = unix
	}
	if unix, err := parseUnix(res["last_used_at"]); err == nil {
		entry.LastUsedAt = unix
	}

	// Best-effort usage bookkeeping.
	_ = r.client.HSet(ctx, key, "last_used_at", time.Now().Unix()).Err()

	return entry, nil
}

// Delete removes a token.
func (r *TokenStore) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.redisKey(token)).Err()
}

// DeleteExpired is a no-op: Redis evicts keys via their TTL.
func (r *TokenStore) DeleteExpired(_ context.Context) error {
	return nil
}

// Clear removes every token under this store's prefix.
func (r *TokenStore) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("%s:token:*", r.prefix)
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan token keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete token keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Count returns the number of tokens under this store's prefix.
func (r *TokenStore) Count(ctx context.Context) int {
	pattern := fmt.Sprintf("%s:token:*", r.prefix)
	var count int
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return count
		}
		count += len(keys)
		if next == 0 {
			return count
		}
		cursor = next
	}
}

// Close is a no-op; the Redis client is owned by the caller.
func (r *TokenStore) Close() error {
	return nil
}

func parseUnix(s string) (time.Time, error) {
	unix, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0).UTC(), nil
}
