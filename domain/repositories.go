package domain

import (
	"context"
	"time"
)

// UserRepository reads and updates user identity snapshots. The underlying
// directory is owned by an external collaborator.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error
}

// SessionRepository stores authorization sessions.
//
// ConsumeSession is the single concurrency guard of the SSO flow: it must
// atomically test-and-set the used flag from false to true, returning the
// consumed session, so that of two racing callback requests exactly one
// succeeds. A session that is already used, expired at now, or missing is an
// error.
type SessionRepository interface {
	StoreSession(ctx context.Context, session *AuthorizationSession) error
	GetSession(ctx context.Context, id string) (*AuthorizationSession, error)
	ConsumeSession(ctx context.Context, id string, now time.Time) (*AuthorizationSession, error)
	// DeleteExpired reclaims storage for sessions past expiry. Housekeeping
	// only; expiry is also enforced at consume time.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditLogRepository appends events to the audit trail.
type AuditLogRepository interface {
	StoreEvent(ctx context.Context, event *AuditEvent) error
}
