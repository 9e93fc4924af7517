package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.avinoo.ir/sso/client"
	"go.avinoo.ir/sso/domain"
	serrors "go.avinoo.ir/sso/errors"
)

// stateTokenBytes is the entropy of a generated state token. Encoded
// URL-safe without padding this yields a 43-character token.
const stateTokenBytes = 32

// GenerateState returns a cryptographically random URL-safe state token.
func GenerateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SessionService manages single-use authorization sessions. The repository's
// atomic consume is the sole concurrency guard against double issuance.
type SessionService struct {
	sessions domain.SessionRepository
}

// NewSessionService creates a SessionService.
func NewSessionService(sessions domain.SessionRepository) *SessionService {
	return &SessionService{sessions: sessions}
}

// Create validates the redirect URI against the client policy and, only
// then, creates an unused session expiring in ten minutes. A rejected
// redirect aborts before any state exists. An empty state is replaced by a
// generated one.
func (s *SessionService) Create(
	ctx context.Context,
	user *domain.User,
	reg *client.Registration,
	redirectURI, state string,
) (*domain.AuthorizationSession, error) {
	if !reg.IsRedirectURIAllowed(redirectURI) {
		return nil, fmt.Errorf("%w: %s for client %s", serrors.ErrRedirectRejected, redirectURI, reg.ID)
	}

	if state == "" {
		var err error
		state, err = GenerateState()
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	session := &domain.AuthorizationSession{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		ClientID:    reg.ID,
		State:       state,
		RedirectURI: redirectURI,
		CreatedAt:   now,
		ExpiresAt:   now.Add(domain.SessionTTL),
	}

	if err := s.sessions.StoreSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store authorization session: %w", err)
	}
	return session, nil
}

// Consume atomically marks the session used. Reused, expired, and unknown
// sessions all surface as ErrSessionInvalid; of two racing calls exactly one
// succeeds.
func (s *SessionService) Consume(ctx context.Context, sessionID string) (*domain.AuthorizationSession, error) {
	session, err := s.sessions.ConsumeSession(ctx, sessionID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, serrors.ErrSessionNotFound) || errors.Is(err, serrors.ErrSessionInvalid) {
			return nil, fmt.Errorf("%w: %s", serrors.ErrSessionInvalid, sessionID)
		}
		return nil, fmt.Errorf("failed to consume authorization session: %w", err)
	}
	return session, nil
}

// SweepExpired deletes sessions past expiry. Storage reclamation only; it
// plays no part in the authorization decision.
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	count, err := s.sessions.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	if count > 0 {
		log.Ctx(ctx).Info().Int64("count", count).Msg("cleaned up expired authorization sessions")
	}
	return count, nil
}
