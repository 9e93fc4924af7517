package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.avinoo.ir/sso/client"
	"go.avinoo.ir/sso/domain"
	serrors "go.avinoo.ir/sso/errors"
	"go.avinoo.ir/sso/internal/audit"
	"go.avinoo.ir/sso/oracle"
)

const (
	// maxFailedLogins is the number of consecutive password failures that
	// locks an account.
	maxFailedLogins = 5
	// lockoutDuration is how long a locked account stays locked.
	lockoutDuration = 30 * time.Minute
)

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) error
}

// OracleClient answers meeting access questions for a user and room.
type OracleClient interface {
	CheckAccess(ctx context.Context, roomName, userGUID string) (*domain.AccessGrant, error)
}

// RequestMeta carries the request attributes recorded in the audit trail.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// LoginInput is a credential login request.
type LoginInput struct {
	Username    string
	Password    string
	ClientID    string
	RedirectURI string
	State       string
	Next        string
}

// LoginResult is a successful login: the authenticated user, their bearer
// token, the single-use session, and the callback URL the browser is sent to.
type LoginResult struct {
	User        *domain.User
	Token       *IssuedToken
	Session     *domain.AuthorizationSession
	RedirectURI string
}

// RegisterInput is a new user registration request.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// ValidationResult is the outcome of a token validation call. An invalid
// token is a result, not an error.
type ValidationResult struct {
	Valid bool
	User  *domain.User
	Token *TokenInfo
}

// AuthService orchestrates the SSO flows: credential login with single-use
// sessions, registration, token validation, meeting entry, and logout.
type AuthService struct {
	users      domain.UserRepository
	registry   client.Registry
	sessions   *SessionService
	tokens     *TokenService
	assertions *AssertionService
	oracle     OracleClient
	hasher     PasswordHasher
	audit      audit.Recorder
}

// NewAuthService creates an AuthService.
func NewAuthService(
	users domain.UserRepository,
	registry client.Registry,
	sessions *SessionService,
	tokens *TokenService,
	assertions *AssertionService,
	oracleClient OracleClient,
	hasher PasswordHasher,
	recorder audit.Recorder,
) *AuthService {
	return &AuthService{
		users:      users,
		registry:   registry,
		sessions:   sessions,
		tokens:     tokens,
		assertions: assertions,
		oracle:     oracleClient,
		hasher:     hasher,
		audit:      recorder,
	}
}

// Login authenticates the user, validates the redirect target against the
// client policy, issues a bearer token, and creates a single-use session. The
// returned RedirectURI already carries token and state query parameters.
//
// The redirect check runs before authentication and again inside session
// creation; no session exists for a rejected redirect.
func (s *AuthService) Login(ctx context.Context, input LoginInput, meta RequestMeta) (*LoginResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	if input.Username == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", serrors.ErrValidation)
	}
	if input.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", serrors.ErrValidation)
	}

	reg, err := s.registry.Lookup(ctx, input.ClientID)
	if err != nil {
		return nil, err
	}

	redirectURI := input.RedirectURI
	if redirectURI == "" {
		redirectURI = reg.RedirectURI
	}
	if !reg.IsRedirectURIAllowed(redirectURI) {
		s.recordEvent(ctx, &domain.AuditEvent{
			ClientID: reg.ID,
			Action:   domain.AuditError,
			Details:  map[string]any{"reason": "redirect_rejected", "redirect_uri": redirectURI},
		}, meta, false)
		return nil, fmt.Errorf("%w: %s for client %s", serrors.ErrRedirectRejected, redirectURI, reg.ID)
	}

	user, err := s.authenticate(ctx, input.Username, input.Password)
	if err != nil {
		s.recordEvent(ctx, &domain.AuditEvent{
			ClientID: reg.ID,
			Action:   domain.AuditLogin,
			Details:  map[string]any{"username": input.Username},
		}, meta, false)
		return nil, err
	}

	token, session, callback, err := s.completeAuthorization(ctx, user, reg, redirectURI, input.State, input.Next)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, &domain.AuditEvent{
		UserID:   user.ID,
		ClientID: reg.ID,
		Action:   domain.AuditLogin,
		Details:  map[string]any{"session_id": session.ID},
	}, meta, true)

	return &LoginResult{
		User:        user,
		Token:       token,
		Session:     session,
		RedirectURI: callback,
	}, nil
}

// Callback completes authorization for an already-authenticated user and
// returns the client callback URL carrying a fresh token. Used by the
// browser flow, where authentication happened on an earlier request.
func (s *AuthService) Callback(ctx context.Context, user *domain.User, clientID, redirectURI, state, next string, meta RequestMeta) (string, error) {
	reg, err := s.registry.Lookup(ctx, clientID)
	if err != nil {
		return "", err
	}

	if redirectURI == "" {
		redirectURI = reg.RedirectURI
	}
	if !reg.IsRedirectURIAllowed(redirectURI) {
		s.recordEvent(ctx, &domain.AuditEvent{
			UserID:   user.ID,
			ClientID: reg.ID,
			Action:   domain.AuditError,
			Details:  map[string]any{"reason": "redirect_rejected", "redirect_uri": redirectURI},
		}, meta, false)
		return "", fmt.Errorf("%w: %s for client %s", serrors.ErrRedirectRejected, redirectURI, reg.ID)
	}

	_, session, callback, err := s.completeAuthorization(ctx, user, reg, redirectURI, state, next)
	if err != nil {
		return "", err
	}

	s.recordEvent(ctx, &domain.AuditEvent{
		UserID:   user.ID,
		ClientID: reg.ID,
		Action:   domain.AuditRedirect,
		Details:  map[string]any{"session_id": session.ID},
	}, meta, true)

	return callback, nil
}

// completeAuthorization runs the tail of every authorization: create the
// session, consume it, mint the token, and assemble the callback URL. The
// session is marked used at the moment its token is computed.
func (s *AuthService) completeAuthorization(
	ctx context.Context,
	user *domain.User,
	reg *client.Registration,
	redirectURI, state, next string,
) (*IssuedToken, *domain.AuthorizationSession, string, error) {
	session, err := s.sessions.Create(ctx, user, reg, redirectURI, state)
	if err != nil {
		return nil, nil, "", err
	}
	session, err = s.sessions.Consume(ctx, session.ID)
	if err != nil {
		return nil, nil, "", err
	}

	token, err := s.tokens.IssueAccessToken(ctx, user, reg.ID)
	if err != nil {
		return nil, nil, "", err
	}

	callback, err := callbackURL(session.RedirectURI, token.Value, session.State, next)
	if err != nil {
		return nil, nil, "", fmt.Errorf("%w: %v", serrors.ErrRedirectRejected, err)
	}
	return token, session, callback, nil
}

// authenticate resolves and verifies credentials, applying the lockout
// policy. Unknown usernames and wrong passwords return the same error.
func (s *AuthService) authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	now := time.Now().UTC()

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, serrors.ErrAuthenticationFailed
	}
	if user.IsLocked(now) {
		return nil, serrors.ErrAccountLocked
	}
	if !user.IsActive {
		return nil, serrors.ErrAccountDisabled
	}

	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		user.FailedLoginAttempts++
		locked := false
		if user.FailedLoginAttempts >= maxFailedLogins {
			user.LockedUntil = now.Add(lockoutDuration)
			user.FailedLoginAttempts = 0
			locked = true
		}
		if uerr := s.users.UpdateUser(ctx, user); uerr != nil {
			log.Ctx(ctx).Error().Err(uerr).Str("user_id", user.ID).Msg("failed to record login failure")
		}
		if locked {
			return nil, serrors.ErrAccountLocked
		}
		return nil, serrors.ErrAuthenticationFailed
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = time.Time{}
	user.LastLoginAt = now
	if err := s.users.UpdateUser(ctx, user); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user_id", user.ID).Msg("failed to record login success")
	}

	return user, nil
}

// Register creates a new active user account.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	if input.Username == "" || input.Password == "" || input.Email == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", serrors.ErrValidation)
	}

	if _, err := s.users.GetUserByUsername(ctx, input.Username); err == nil {
		return nil, fmt.Errorf("%w: %s", serrors.ErrUserAlreadyExists, input.Username)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		GUID:         uuid.NewString(),
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PhoneNumber:  input.PhoneNumber,
		PasswordHash: hash,
		IsActive:     true,
		DateJoined:   now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// ValidateToken checks a bearer token and reports the outcome. A token that
// fails validation yields Valid=false, not an error.
func (s *AuthService) ValidateToken(ctx context.Context, tokenValue string, meta RequestMeta) (*ValidationResult, error) {
	if tokenValue == "" {
		return nil, fmt.Errorf("%w: token is required", serrors.ErrValidation)
	}

	user, info, err := s.tokens.ValidateAccessToken(ctx, tokenValue)
	if err != nil {
		s.recordEvent(ctx, &domain.AuditEvent{
			Action:  domain.AuditTokenValidated,
			Details: map[string]any{"reason": err.Error()},
		}, meta, false)
		return &ValidationResult{Valid: false}, nil
	}

	s.recordEvent(ctx, &domain.AuditEvent{
		UserID: user.ID,
		Action: domain.AuditTokenValidated,
	}, meta, true)

	return &ValidationResult{Valid: true, User: user, Token: info}, nil
}

// GetUserInfo resolves a bearer token to its user.
func (s *AuthService) GetUserInfo(ctx context.Context, tokenValue string) (*domain.User, error) {
	user, _, err := s.tokens.ValidateAccessToken(ctx, tokenValue)
	return user, err
}

// MeetingRedirect checks meeting access with the oracle, builds a signed
// assertion, and returns the URL that drops the user into the room.
//
// An explicit denial from the oracle propagates as-is. An unreachable oracle
// does not block entry: the assertion falls back to a one-hour window and
// account-level moderator status.
func (s *AuthService) MeetingRedirect(ctx context.Context, user *domain.User, clientID, room string, meta RequestMeta) (string, error) {
	if room == "" {
		return "", fmt.Errorf("%w: room name is required", serrors.ErrValidation)
	}

	reg, err := s.registry.Lookup(ctx, clientID)
	if err != nil {
		return "", err
	}

	grant, err := s.oracle.CheckAccess(ctx, room, user.OracleID())
	if err != nil {
		var denied *oracle.DeniedError
		switch {
		case errors.As(err, &denied):
			s.recordEvent(ctx, &domain.AuditEvent{
				UserID:   user.ID,
				ClientID: reg.ID,
				Action:   domain.AuditError,
				Details:  map[string]any{"room": room, "reason": denied.Reason},
			}, meta, false)
			return "", err
		case errors.Is(err, serrors.ErrOracleUnavailable):
			log.Ctx(ctx).Warn().Err(err).Str("room", room).Msg("access oracle unavailable, issuing fallback assertion")
			grant = nil
		default:
			return "", err
		}
	}

	assertion, claims, err := s.assertions.BuildAssertion(user, reg, room, grant)
	if err != nil {
		return "", err
	}

	s.recordEvent(ctx, &domain.AuditEvent{
		UserID:   user.ID,
		ClientID: reg.ID,
		Action:   domain.AuditTokenIssued,
		Details:  map[string]any{"room": room, "moderator": claims["moderator"]},
	}, meta, true)

	redirectURL := s.assertions.RedirectURL(reg, room, assertion)

	s.recordEvent(ctx, &domain.AuditEvent{
		UserID:   user.ID,
		ClientID: reg.ID,
		Action:   domain.AuditRedirect,
		Details:  map[string]any{"room": room},
	}, meta, true)

	return redirectURL, nil
}

// Logout revokes the bearer token. When a client is named, its registered
// redirect URI is returned so the browser can be sent back. Revoking an
// already-revoked or unknown token succeeds.
func (s *AuthService) Logout(ctx context.Context, tokenValue, clientID string, meta RequestMeta) (string, error) {
	var userID string
	if user, _, err := s.tokens.ValidateAccessToken(ctx, tokenValue); err == nil {
		userID = user.ID
	}

	if err := s.tokens.RevokeToken(ctx, tokenValue); err != nil {
		return "", fmt.Errorf("failed to revoke token: %w", err)
	}

	s.recordEvent(ctx, &domain.AuditEvent{
		UserID:   userID,
		ClientID: clientID,
		Action:   domain.AuditLogout,
	}, meta, true)

	if clientID == "" {
		return "", nil
	}
	reg, err := s.registry.Lookup(ctx, clientID)
	if err != nil {
		return "", nil
	}
	return reg.RedirectURI, nil
}

func (s *AuthService) recordEvent(ctx context.Context, event *domain.AuditEvent, meta RequestMeta, success bool) {
	event.IPAddress = meta.IPAddress
	event.UserAgent = meta.UserAgent
	event.Success = success
	s.audit.Record(ctx, event)
}

// callbackURL appends token, state, and optional next parameters to the
// redirect URI, preserving any query it already carries.
func callbackURL(redirectURI, token, state, next string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("state", state)
	if next != "" {
		q.Set("next", next)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
