package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go.avinoo.ir/sso/client"
	"go.avinoo.ir/sso/domain"
	serrors "go.avinoo.ir/sso/errors"
)

const (
	// assertionWindowPad widens a meeting window on both sides: tokens become
	// valid ten minutes before the start and stay valid ten minutes past the
	// end.
	assertionWindowPad = 10 * time.Minute
	// defaultAssertionTTL applies when no access grant carries a window.
	defaultAssertionTTL = time.Hour
)

// MeetingProfile is the deployment-fixed part of every meeting assertion:
// feature flags, theming, and defaults for user context fields. Modeled as
// configuration so it is attached identically to each assertion.
type MeetingProfile struct {
	Group              string
	DefaultRegion      string
	DefaultAffiliation string
	Features           map[string]bool
	Theme              string
	AllowKnocking      bool
	EnablePolls        bool
}

// AssertionService builds and signs client assertions. The claim shape and
// signing key are selected by the client registration's claim profile, never
// by comparing client IDs in code.
type AssertionService struct {
	signer  *TokenSigner
	profile MeetingProfile

	now func() time.Time
}

// NewAssertionService creates an AssertionService.
func NewAssertionService(signer *TokenSigner, profile MeetingProfile) *AssertionService {
	if profile.DefaultAffiliation == "" {
		profile.DefaultAffiliation = "member"
	}
	return &AssertionService{
		signer:  signer,
		profile: profile,
		now:     time.Now,
	}
}

// BuildAssertion constructs and signs the meeting assertion for a user
// entering a room.
//
// The validity window derives from the grant when it carries meeting times:
// nbf = start - 10min clamped to now, exp = end + 10min. Without a grant the
// token is valid from now for one hour. A missing grant never blocks
// issuance; a user snapshot that cannot fill the context block does.
func (s *AssertionService) BuildAssertion(
	user *domain.User,
	reg *client.Registration,
	room string,
	grant *domain.AccessGrant,
) (string, jwt.MapClaims, error) {
	if user == nil || user.ID == "" || user.Username == "" {
		return "", nil, fmt.Errorf("%w: user identity is incomplete, cannot build assertion context", serrors.ErrValidation)
	}

	now := s.now().UTC()

	var nbf, exp time.Time
	if grant != nil && grant.HasWindow() {
		nbf = grant.StartTime.Add(-assertionWindowPad)
		if nbf.Before(now) {
			nbf = now
		}
		exp = grant.EndTime.Add(assertionWindowPad)
	} else {
		nbf = now
		exp = now.Add(defaultAssertionTTL)
	}

	moderator := user.IsPrivileged()
	if grant != nil {
		moderator = grant.Moderator()
	}

	region := user.Region
	if region == "" {
		region = s.profile.DefaultRegion
	}

	claims := jwt.MapClaims{
		"aud":       reg.ID,
		"iss":       reg.ID,
		"sub":       reg.Domain,
		"room":      room,
		"exp":       exp.Unix(),
		"nbf":       nbf.Unix(),
		"moderator": moderator,
		"context": map[string]any{
			"user": map[string]any{
				"id":          user.ID,
				"name":        user.DisplayName(),
				"email":       user.Email,
				"avatar":      user.AvatarURL,
				"affiliation": s.profile.DefaultAffiliation,
				"moderator":   user.IsPrivileged(),
				"region":      region,
				"displayName": user.DisplayName(),
			},
			"group":    s.profile.Group,
			"features": s.profile.Features,
		},
		"identity": map[string]any{
			"type":       "user",
			"guest":      false,
			"externalId": "ext-" + user.ID,
		},
		"custom": map[string]any{
			"theme":         s.profile.Theme,
			"allowKnocking": s.profile.AllowKnocking,
			"enablePolls":   s.profile.EnablePolls,
		},
	}

	token, err := s.signer.Sign(claims, string(reg.Profile))
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// RedirectURL builds the browser redirect carrying the assertion into the
// meeting client: https://<domain>/<room>?jwt=<assertion>.
func (s *AssertionService) RedirectURL(reg *client.Registration, room, assertion string) string {
	return fmt.Sprintf("https://%s/%s?jwt=%s", reg.Domain, room, assertion)
}

// VerifyAssertion parses an assertion with the profile key. Intended for
// tests and diagnostic tooling; clients verify with their own copy of the
// secret.
func (s *AssertionService) VerifyAssertion(assertion string, profile client.ClaimProfile) (jwt.MapClaims, error) {
	return s.signer.Verify(assertion, string(profile))
}
