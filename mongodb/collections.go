package mongodb

const (
	ClientsCollection  = "sso_clients"   // registered SSO clients
	SessionsCollection = "sso_sessions"  // single-use authorization sessions
	UsersCollection    = "sso_users"     // user identity snapshots
	AuditLogCollection = "sso_audit_log" // append-only audit trail
)
