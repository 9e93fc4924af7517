package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the SSO core. Callers select behavior with errors.Is;
// the API layer maps them onto HTTP statuses.
var (
	// ErrValidation marks bad or missing request fields. User-correctable.
	ErrValidation = errors.New("invalid request")
	// ErrAuthenticationFailed covers every credential failure. The message is
	// deliberately generic so account existence is never disclosed.
	ErrAuthenticationFailed = errors.New("invalid username or password")
	// ErrAccountLocked is returned while a failed-login lock window is open.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrAccountDisabled is returned for inactive accounts.
	ErrAccountDisabled = errors.New("account is disabled")
	// ErrRedirectRejected means the redirect URI failed the client's policy.
	// The request is aborted before any session state is created.
	ErrRedirectRejected = errors.New("redirect uri not allowed for client")
	// ErrSessionInvalid is returned when consuming a session that is already
	// used, expired, or unknown. Never retried automatically.
	ErrSessionInvalid = errors.New("authorization session is invalid")
	// ErrSessionNotFound is the storage-level miss underlying ErrSessionInvalid.
	ErrSessionNotFound = errors.New("authorization session not found")
	// ErrOracleUnavailable is a soft failure of the meeting access oracle:
	// timeout, transport error, or an unparseable response. It is distinct
	// from an explicit denial and the caller applies a documented fallback.
	ErrOracleUnavailable = errors.New("meeting access service unavailable")
	// ErrSigningFailure is fatal: the deployment has no usable signing key.
	ErrSigningFailure = errors.New("token signing failed")

	ErrClientNotFound        = errors.New("client not found")
	ErrClientInactive        = errors.New("client is not active")
	ErrUserNotFound          = errors.New("user not found")
	ErrUserAlreadyExists     = errors.New("user already exists")
	ErrTokenExpiredOrRevoked = errors.New("token expired or revoked")
)

// SSOError is the JSON error body returned to clients.
type SSOError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	State       string `json:"state,omitempty"`
}

func (e *SSOError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Standard error codes used in responses.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeAuthenticationFailed = "authentication_failed"
	CodeRedirectRejected     = "redirect_rejected"
	CodeSessionInvalid       = "session_invalid"
	CodeAccessDenied         = "access_denied"
	CodeInvalidClient        = "invalid_client"
	CodeServerError          = "server_error"
)

func NewInvalidRequest(description string) *SSOError {
	return &SSOError{Code: CodeInvalidRequest, Description: description}
}

func NewAuthenticationFailed() *SSOError {
	return &SSOError{Code: CodeAuthenticationFailed, Description: ErrAuthenticationFailed.Error()}
}

func NewRedirectRejected() *SSOError {
	return &SSOError{Code: CodeRedirectRejected, Description: ErrRedirectRejected.Error()}
}

func NewSessionInvalid() *SSOError {
	return &SSOError{Code: CodeSessionInvalid, Description: ErrSessionInvalid.Error()}
}

func NewAccessDenied(description string) *SSOError {
	return &SSOError{Code: CodeAccessDenied, Description: description}
}

func NewInvalidClient(description string) *SSOError {
	return &SSOError{Code: CodeInvalidClient, Description: description}
}

func NewServerError(description string) *SSOError {
	return &SSOError{Code: CodeServerError, Description: description}
}
