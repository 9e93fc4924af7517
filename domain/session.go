package domain

import "time"

// SessionTTL is the fixed lifetime of an authorization session.
const SessionTTL = 10 * time.Minute

// AuthorizationSession is the single-use record binding a login attempt to
// its eventual callback: (user, client, state, redirect target).
//
// Lifecycle: created(unused) -> consumed(used), or created(unused) -> expired.
// Both end states are terminal; a session never returns to unused. The
// used flag transitions false->true exactly once, enforced atomically by the
// session repository.
type AuthorizationSession struct {
	ID          string    `bson:"_id,omitempty"`
	UserID      string    `bson:"user_id"`
	ClientID    string    `bson:"client_id"`
	State       string    `bson:"state"`
	RedirectURI string    `bson:"redirect_uri"`
	CreatedAt   time.Time `bson:"created_at"`
	ExpiresAt   time.Time `bson:"expires_at"`
	Used        bool      `bson:"is_used"`
}

// IsExpired reports whether the session is past its expiry.
func (s *AuthorizationSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsValid reports whether the session can still be consumed.
func (s *AuthorizationSession) IsValid(now time.Time) bool {
	return !s.Used && now.Before(s.ExpiresAt)
}
