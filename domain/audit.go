package domain

import "time"

// AuditAction enumerates the SSO activities recorded in the audit trail.
type AuditAction string

const (
	AuditLogin          AuditAction = "login"
	AuditLogout         AuditAction = "logout"
	AuditTokenIssued    AuditAction = "token_issued"
	AuditTokenValidated AuditAction = "token_validated"
	AuditRedirect       AuditAction = "redirect"
	AuditError          AuditAction = "error"
)

// AuditEvent is one append-only row in the SSO audit trail.
type AuditEvent struct {
	ID        string         `bson:"_id,omitempty"`
	UserID    string         `bson:"user_id,omitempty"`
	ClientID  string         `bson:"client_id,omitempty"`
	Action    AuditAction    `bson:"action"`
	IPAddress string         `bson:"ip_address,omitempty"`
	UserAgent string         `bson:"user_agent,omitempty"`
	Details   map[string]any `bson:"details,omitempty"`
	Success   bool           `bson:"success"`
	CreatedAt time.Time      `bson:"created_at"`
}
