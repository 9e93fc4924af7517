// Package api defines the request and response shapes of the SSO HTTP
// surface.
package api

import "go.avinoo.ir/sso/domain"

// LoginRequest is a credential login submission.
type LoginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	State       string `json:"state,omitempty"`
	Next        string `json:"next,omitempty"`
}

// LoginResponse is returned on successful login. RedirectURI already carries
// the token and state query parameters.
type LoginResponse struct {
	Success     bool         `json:"success"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	RedirectURI string       `json:"redirect_uri"`
	User        *UserPayload `json:"user"`
}

// RegisterRequest creates a new user account.
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`

	// Set to complete a login in the same request.
	ClientID    string `json:"client_id,omitempty"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	State       string `json:"state,omitempty"`
}

// ValidateTokenRequest checks a bearer token.
type ValidateTokenRequest struct {
	Token    string `json:"token"`
	ClientID string `json:"client_id,omitempty"`
}

// ValidateTokenResponse reports the outcome of a token check. An invalid
// token is a 200 with Valid=false.
type ValidateTokenResponse struct {
	Valid     bool         `json:"valid"`
	User      *UserPayload `json:"user,omitempty"`
	ExpiresAt int64        `json:"expires_at,omitempty"`
}

// LogoutRequest revokes a bearer token.
type LogoutRequest struct {
	Token    string `json:"token,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// LogoutResponse acknowledges a logout.
type LogoutResponse struct {
	Success     bool   `json:"success"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// UserPayload is the identity snapshot exposed over the API. The password
// hash and lockout bookkeeping never leave the service.
type UserPayload struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Region      string `json:"region,omitempty"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

// NewUserPayload maps a domain user onto the API shape.
func NewUserPayload(user *domain.User) *UserPayload {
	return &UserPayload{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		DisplayName: user.DisplayName(),
		AvatarURL:   user.AvatarURL,
		Region:      user.Region,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	}
}
