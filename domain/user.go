package domain

import (
	"strings"
	"time"
)

// User is the identity snapshot the SSO core works with. The authoritative
// directory is an external collaborator; repositories read the snapshot and
// update only the login-bookkeeping fields.
type User struct {
	ID           string `bson:"_id,omitempty"`
	Username     string `bson:"username"`
	Email        string `bson:"email"`
	FirstName    string `bson:"first_name,omitempty"`
	LastName     string `bson:"last_name,omitempty"`
	PhoneNumber  string `bson:"phone_number,omitempty"`
	PasswordHash string `bson:"password_hash"`
	AvatarURL    string `bson:"avatar_url,omitempty"`
	Region       string `bson:"region,omitempty"`
	// GUID is the identifier this user is known by on the meeting platform.
	// Falls back to ID when empty.
	GUID string `bson:"guid,omitempty"`

	IsActive    bool `bson:"is_active"`
	IsStaff     bool `bson:"is_staff,omitempty"`
	IsSuperuser bool `bson:"is_superuser,omitempty"`

	FailedLoginAttempts int       `bson:"failed_login_attempts,omitempty"`
	LockedUntil         time.Time `bson:"locked_until,omitempty"`

	DateJoined  time.Time `bson:"date_joined"`
	LastLoginAt time.Time `bson:"last_login_at,omitempty"`
}

// DisplayName returns the human-readable name, preferring first/last name
// over the login name.
func (u *User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full != "" {
		return full
	}
	return u.Username
}

// IsPrivileged reports whether the account carries elevated privilege
// (administrator or staff).
func (u *User) IsPrivileged() bool {
	return u.IsSuperuser || u.IsStaff
}

// IsLocked reports whether the account is inside a failed-login lock window.
func (u *User) IsLocked(now time.Time) bool {
	return now.Before(u.LockedUntil)
}

// OracleID returns the identifier used when querying the meeting access
// oracle for this user.
func (u *User) OracleID() string {
	if u.GUID != "" {
		return u.GUID
	}
	return u.ID
}
