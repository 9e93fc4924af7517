package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.avinoo.ir/sso/client"
	"go.avinoo.ir/sso/domain"
	serrors "go.avinoo.ir/sso/errors"
	"go.avinoo.ir/sso/internal/sessionstore"
)

func testRegistration() *client.Registration {
	return &client.Registration{
		ID:           "meet_avinoo",
		Name:         "Avinoo Meet",
		Domain:       "meet.example.com",
		RedirectURI:  "https://meet.example.com/callback",
		AllowAnyPath: true,
		Profile:      client.ProfileMeeting,
		IsActive:     true,
	}
}

func testUser() *domain.User {
	return &domain.User{
		ID:       uuid.NewString(),
		Username: "alice",
		Email:    "alice@example.com",
		IsActive: true,
	}
}

func TestGenerateState(t *testing.T) {
	first, err := GenerateState()
	require.NoError(t, err)
	second, err := GenerateState()
	require.NoError(t, err)

	assert.Len(t, first, 43)
	assert.NotEqual(t, first, second)
}

func TestSessionCreateRejectsRedirectBeforeStoring(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	svc := NewSessionService(store)

	_, err := svc.Create(context.Background(), testUser(), testRegistration(),
		"https://evil.com/callback", "")
	require.ErrorIs(t, err, serrors.ErrRedirectRejected)

	// Nothing was persisted for the rejected request.
	count, err := store.DeleteExpired(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSessionCreateGeneratesState(t *testing.T) {
	svc := NewSessionService(sessionstore.NewMemoryStore())

	session, err := svc.Create(context.Background(), testUser(), testRegistration(),
		"https://meet.example.com/room/42", "")
	require.NoError(t, err)

	assert.Len(t, session.State, 43)
	assert.False(t, session.Used)
	assert.Equal(t, domain.SessionTTL, session.ExpiresAt.Sub(session.CreatedAt))
}

func TestSessionCreateKeepsSuppliedState(t *testing.T) {
	svc := NewSessionService(sessionstore.NewMemoryStore())

	session, err := svc.Create(context.Background(), testUser(), testRegistration(),
		"https://meet.example.com/room/42", "client-state")
	require.NoError(t, err)
	assert.Equal(t, "client-state", session.State)
}

func TestSessionConsumeIsSingleUse(t *testing.T) {
	svc := NewSessionService(sessionstore.NewMemoryStore())
	ctx := context.Background()

	session, err := svc.Create(ctx, testUser(), testRegistration(),
		"https://meet.example.com/room/42", "")
	require.NoError(t, err)

	consumed, err := svc.Consume(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, consumed.Used)
	assert.Equal(t, session.State, consumed.State)

	_, err = svc.Consume(ctx, session.ID)
	assert.ErrorIs(t, err, serrors.ErrSessionInvalid)
}

func TestSessionConsumeUnknownID(t *testing.T) {
	svc := NewSessionService(sessionstore.NewMemoryStore())

	_, err := svc.Consume(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, serrors.ErrSessionInvalid)
}

func TestSessionConsumeExpired(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	svc := NewSessionService(store)
	ctx := context.Background()

	now := time.Now().UTC()
	session := &domain.AuthorizationSession{
		ID:          uuid.NewString(),
		UserID:      "u1",
		ClientID:    "meet_avinoo",
		State:       "s",
		RedirectURI: "https://meet.example.com/cb",
		CreatedAt:   now.Add(-20 * time.Minute),
		ExpiresAt:   now.Add(-10 * time.Minute),
	}
	require.NoError(t, store.StoreSession(ctx, session))

	_, err := svc.Consume(ctx, session.ID)
	assert.ErrorIs(t, err, serrors.ErrSessionInvalid)
}

func TestSessionConcurrentConsume(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	svc := NewSessionService(store)
	ctx := context.Background()

	session, err := svc.Create(ctx, testUser(), testRegistration(),
		"https://meet.example.com/room/42", "")
	require.NoError(t, err)

	const racers = 16
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Consume(ctx, session.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, serrors.ErrSessionInvalid)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestSweepExpired(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	svc := NewSessionService(store)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		expiresAt := now.Add(-time.Minute)
		if i == 0 {
			expiresAt = now.Add(time.Minute)
		}
		require.NoError(t, store.StoreSession(ctx, &domain.AuthorizationSession{
			ID:        uuid.NewString(),
			UserID:    "u1",
			ClientID:  "meet_avinoo",
			CreatedAt: now.Add(-11 * time.Minute),
			ExpiresAt: expiresAt,
		}))
	}

	count, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
