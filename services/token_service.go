package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.avinoo.ir/sso/cache"
	"go.avinoo.ir/sso/domain"
	serrors "go.avinoo.ir/sso/errors"
)

// IssuedToken is the result of minting a generic bearer token.
type IssuedToken struct {
	ID        string // jti claim
	Value     string
	TokenType string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// TokenInfo is the subset of claims exposed to validation callers.
type TokenInfo struct {
	ID        string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// TokenService mints and validates the generic bearer tokens used for this
// service's own APIs. Assertion issuance for clients lives in
// AssertionService.
type TokenService struct {
	users  domain.UserRepository
	cache  cache.TokenStore
	signer *TokenSigner
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The TTL is configuration-driven.
func NewTokenService(
	users domain.UserRepository,
	tokenCache cache.TokenStore,
	signer *TokenSigner,
	issuer string,
	ttl time.Duration,
) *TokenService {
	return &TokenService{
		users:  users,
		cache:  tokenCache,
		signer: signer,
		issuer: issuer,
		ttl:    ttl,
	}
}

// TTL returns the configured bearer-token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// IssueAccessToken mints a signed bearer token for the user in the context
// of a client.
func (s *TokenService) IssueAccessToken(ctx context.Context, user *domain.User, clientID string) (*IssuedToken, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)
	tokenID := uuid.NewString()

	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": user.ID,
		"aud": jwt.ClaimStrings{clientID},
		"exp": jwt.NewNumericDate(expiresAt).Unix(),
		"iat": jwt.NewNumericDate(now).Unix(),
		"nbf": jwt.NewNumericDate(now).Unix(),
		"jti": tokenID,
	}

	value, err := s.signer.Sign(claims, SigningKeyBearer)
	if err != nil {
		return nil, err
	}

	entry := &cache.TokenEntry{
		ID:         tokenID,
		TokenValue: value,
		UserID:     user.ID,
		ClientID:   clientID,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to cache access token")
	}

	return &IssuedToken{
		ID:        tokenID,
		Value:     value,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		IssuedAt:  now,
	}, nil
}

// ValidateAccessToken verifies signature and expiry, rejects revoked tokens,
// and resolves the subject to a user.
func (s *TokenService) ValidateAccessToken(ctx context.Context, tokenValue string) (*domain.User, *TokenInfo, error) {
	// Revocations only exist in the cache; consult it before the signature
	// check so a revoked-but-unexpired token is refused.
	if entry, err := s.cache.Get(ctx, tokenValue); err == nil {
		if entry.IsRevoked || !time.Now().Before(entry.ExpiresAt) {
			return nil, nil, serrors.ErrTokenExpiredOrRevoked
		}
	}

	claims, err := s.signer.Verify(tokenValue, SigningKeyBearer)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, nil, serrors.ErrTokenExpiredOrRevoked
		}
		return nil, nil, fmt.Errorf("token validation failed: %w", err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, nil, fmt.Errorf("token missing subject claim")
	}

	user, err := s.users.GetUserByID(ctx, subject)
	if err != nil {
		return nil, nil, fmt.Errorf("token subject cannot be resolved: %w", err)
	}
	if !user.IsActive {
		return nil, nil, serrors.ErrAccountDisabled
	}

	info := &TokenInfo{}
	if jti, ok := claims["jti"].(string); ok {
		info.ID = jti
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}

	return user, info, nil
}

// RevokeToken marks a token revoked. Revoking an unknown token is a no-op,
// which makes logout idempotent.
func (s *TokenService) RevokeToken(ctx context.Context, tokenValue string) error {
	entry, err := s.cache.Get(ctx, tokenValue)
	if err != nil {
		// Not cached: derive the expiry from the token itself so the
		// revocation outlives the cache miss.
		claims, verr := s.signer.Verify(tokenValue, SigningKeyBearer)
		if verr != nil {
			return nil
		}
		entry = &cache.TokenEntry{TokenValue: tokenValue, CreatedAt: time.Now().UTC()}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			entry.ExpiresAt = exp.Time
		}
		if sub, err := claims.GetSubject(); err == nil {
			entry.UserID = sub
		}
	}

	entry.IsRevoked = true
	return s.cache.Set(ctx, entry)
}
