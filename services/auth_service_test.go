package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.avinoo.ir/sso/cache"
	"go.avinoo.ir/sso/client"
	"go.avinoo.ir/sso/domain"
	serrors "go.avinoo.ir/sso/errors"
	"go.avinoo.ir/sso/internal/audit"
	"go.avinoo.ir/sso/internal/sessionstore"
	"go.avinoo.ir/sso/oracle"
)

type fakeRegistry struct {
	regs map[string]*client.Registration
}

func (r *fakeRegistry) Lookup(_ context.Context, clientID string) (*client.Registration, error) {
	reg, ok := r.regs[clientID]
	if !ok {
		return nil, serrors.ErrClientNotFound
	}
	if !reg.IsActive {
		return nil, serrors.ErrClientInactive
	}
	return reg, nil
}

type fakeOracle struct {
	grant *domain.AccessGrant
	err   error
}

func (o *fakeOracle) CheckAccess(context.Context, string, string) (*domain.AccessGrant, error) {
	return o.grant, o.err
}

// plainHasher avoids bcrypt cost in tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Verify(hash, password string) error {
	if hash != "plain:"+password {
		return fmt.Errorf("password mismatch")
	}
	return nil
}

type authFixture struct {
	svc      *AuthService
	users    *fakeUserRepo
	store    *sessionstore.MemoryStore
	oracle   *fakeOracle
	signer   *TokenSigner
	registry *fakeRegistry
}

func newAuthFixture(t *testing.T, users ...*domain.User) *authFixture {
	t.Helper()

	repo := newFakeUserRepo(users...)
	store := sessionstore.NewMemoryStore()
	orc := &fakeOracle{}

	signer := NewTokenSigner()
	signer.AddKey(SigningKeyBearer, "bearer-secret")
	signer.AddKey(string(client.ProfileMeeting), "meeting-secret")

	registry := &fakeRegistry{regs: map[string]*client.Registration{
		"meet_avinoo": testRegistration(),
	}}

	tokens := NewTokenService(repo, cache.NewMemoryTokenStore(), signer, "https://auth.example.com", time.Hour)
	sessions := NewSessionService(store)
	assertions := NewAssertionService(signer, testMeetingProfile())

	svc := NewAuthService(repo, registry, sessions, tokens, assertions,
		orc, plainHasher{}, audit.NewLogRecorder())

	return &authFixture{
		svc:      svc,
		users:    repo,
		store:    store,
		oracle:   orc,
		signer:   signer,
		registry: registry,
	}
}

func loginUser() *domain.User {
	return &domain.User{
		ID:           "u-1",
		GUID:         "guid-1",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "plain:s3cret",
		IsActive:     true,
	}
}

func TestLoginHappyPath(t *testing.T) {
	fx := newAuthFixture(t, loginUser())

	result, err := fx.svc.Login(context.Background(), LoginInput{
		Username: "alice",
		Password: "s3cret",
		ClientID: "meet_avinoo",
	}, RequestMeta{IPAddress: "10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, "u-1", result.User.ID)
	assert.True(t, result.Session.Used)

	parsed, err := url.Parse(result.RedirectURI)
	require.NoError(t, err)
	assert.Equal(t, "meet.example.com", parsed.Host)
	assert.Equal(t, result.Token.Value, parsed.Query().Get("token"))
	assert.Equal(t, result.Session.State, parsed.Query().Get("state"))

	// The issued token validates against the same service.
	user, _, err := fx.svc.tokens.ValidateAccessToken(context.Background(), result.Token.Value)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
}

func TestLoginGenericAuthFailure(t *testing.T) {
	fx := newAuthFixture(t, loginUser())
	ctx := context.Background()

	_, err := fx.svc.Login(ctx, LoginInput{
		Username: "alice", Password: "wrong", ClientID: "meet_avinoo",
	}, RequestMeta{})
	assert.ErrorIs(t, err, serrors.ErrAuthenticationFailed)

	// Unknown usernames fail identically.
	_, err = fx.svc.Login(ctx, LoginInput{
		Username: "nobody", Password: "s3cret", ClientID: "meet_avinoo",
	}, RequestMeta{})
	assert.ErrorIs(t, err, serrors.ErrAuthenticationFailed)
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	fx := newAuthFixture(t, loginUser())
	ctx := context.Background()

	for i := 0; i < maxFailedLogins-1; i++ {
		_, err := fx.svc.Login(ctx, LoginInput{
			Username: "alice", Password: "wrong", ClientID: "meet_avinoo",
		}, RequestMeta{})
		assert.ErrorIs(t, err, serrors.ErrAuthenticationFailed)
	}

	_, err := fx.svc.Login(ctx, LoginInput{
		Username: "alice", Password: "wrong", ClientID: "meet_avinoo",
	}, RequestMeta{})
	assert.ErrorIs(t, err, serrors.ErrAccountLocked)

	// The right password does not open a locked account.
	_, err = fx.svc.Login(ctx, LoginInput{
		Username: "alice", Password: "s3cret", ClientID: "meet_avinoo",
	}, RequestMeta{})
	assert.ErrorIs(t, err, serrors.ErrAccountLocked)
}

func TestLoginRejectsRedirectBeforeSessionExists(t *testing.T) {
	fx := newAuthFixture(t, loginUser())

	_, err := fx.svc.Login(context.Background(), LoginInput{
		Username:    "alice",
		Password:    "s3cret",
		ClientID:    "meet_avinoo",
		RedirectURI: "https://meet.example.com.evil.com/x",
	}, RequestMeta{})
	require.ErrorIs(t, err, serrors.ErrRedirectRejected)

	count, err := fx.store.DeleteExpired(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLoginUnknownClient(t *testing.T) {
	fx := newAuthFixture(t, loginUser())

	_, err := fx.svc.Login(context.Background(), LoginInput{
		Username: "alice", Password: "s3cret", ClientID: "nope",
	}, RequestMeta{})
	assert.ErrorIs(t, err, serrors.ErrClientNotFound)
}

func TestLoginDisabledAccount(t *testing.T) {
	user := loginUser()
	user.IsActive = false
	fx := newAuthFixture(t, user)

	_, err := fx.svc.Login(context.Background(), LoginInput{
		Username: "alice", Password: "s3cret", ClientID: "meet_avinoo",
	}, RequestMeta{})
	assert.ErrorIs(t, err, serrors.ErrAccountDisabled)
}

func TestCallbackCarriesNext(t *testing.T) {
	fx := newAuthFixture(t, loginUser())

	target, err := fx.svc.Callback(context.Background(), loginUser(), "meet_avinoo",
		"", "client-state", "/rooms/42", RequestMeta{})
	require.NoError(t, err)

	parsed, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, "client-state", parsed.Query().Get("state"))
	assert.Equal(t, "/rooms/42", parsed.Query().Get("next"))
	assert.NotEmpty(t, parsed.Query().Get("token"))
}

func TestRegisterThenDuplicate(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	user, err := fx.svc.Register(ctx, RegisterInput{
		Username: "bob", Email: "bob@example.com", Password: "pw",
	})
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.NotEmpty(t, user.GUID)

	_, err = fx.svc.Register(ctx, RegisterInput{
		Username: "bob", Email: "bob2@example.com", Password: "pw",
	})
	assert.ErrorIs(t, err, serrors.ErrUserAlreadyExists)
}

func TestValidateTokenReportsInvalid(t *testing.T) {
	fx := newAuthFixture(t, loginUser())

	result, err := fx.svc.ValidateToken(context.Background(), "garbage", RequestMeta{})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Nil(t, result.User)
}

func TestLogoutRevokesToken(t *testing.T) {
	fx := newAuthFixture(t, loginUser())
	ctx := context.Background()

	login, err := fx.svc.Login(ctx, LoginInput{
		Username: "alice", Password: "s3cret", ClientID: "meet_avinoo",
	}, RequestMeta{})
	require.NoError(t, err)

	redirectURI, err := fx.svc.Logout(ctx, login.Token.Value, "meet_avinoo", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "https://meet.example.com/callback", redirectURI)

	result, err := fx.svc.ValidateToken(ctx, login.Token.Value, RequestMeta{})
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestMeetingRedirectWithGrant(t *testing.T) {
	fx := newAuthFixture(t, loginUser())
	start := time.Now().UTC().Add(-5 * time.Minute)
	end := start.Add(time.Hour)
	fx.oracle.grant = &domain.AccessGrant{
		HasAccess:   true,
		Status:      domain.MeetingOngoing,
		StartTime:   &start,
		EndTime:     &end,
		IsOrganizer: true,
	}

	target, err := fx.svc.MeetingRedirect(context.Background(), loginUser(),
		"meet_avinoo", "standup", RequestMeta{})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(target, "https://meet.example.com/standup?jwt="))

	assertion := strings.TrimPrefix(target, "https://meet.example.com/standup?jwt=")
	claims, err := fx.signer.Verify(assertion, string(client.ProfileMeeting))
	require.NoError(t, err)
	assert.Equal(t, true, claims["moderator"])
	assert.Equal(t, "standup", claims["room"])
}

func TestMeetingRedirectDenied(t *testing.T) {
	fx := newAuthFixture(t, loginUser())
	fx.oracle.err = &oracle.DeniedError{Reason: "the meeting has ended"}

	_, err := fx.svc.MeetingRedirect(context.Background(), loginUser(),
		"meet_avinoo", "standup", RequestMeta{})
	var denied *oracle.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "the meeting has ended", denied.Reason)
}

func TestMeetingRedirectOracleUnavailableFallsBack(t *testing.T) {
	user := loginUser()
	user.IsStaff = true
	fx := newAuthFixture(t, user)
	fx.oracle.err = fmt.Errorf("%w: connection refused", serrors.ErrOracleUnavailable)

	target, err := fx.svc.MeetingRedirect(context.Background(), user,
		"meet_avinoo", "standup", RequestMeta{})
	require.NoError(t, err)

	assertion := strings.TrimPrefix(target, "https://meet.example.com/standup?jwt=")
	claims, err := fx.signer.Verify(assertion, string(client.ProfileMeeting))
	require.NoError(t, err)

	// Fallback: one-hour window, moderator from account privilege.
	assert.Equal(t, true, claims["moderator"])
	exp, ok := claims["exp"].(float64)
	require.True(t, ok)
	nbf, ok := claims["nbf"].(float64)
	require.True(t, ok)
	assert.InDelta(t, time.Hour.Seconds(), exp-nbf, 2)
}
