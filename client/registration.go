package client

import (
	"net/url"
	"strings"
	"time"
)

// ClaimProfile selects how assertions for a client are shaped. It is data on
// the registration so that onboarding a client never needs new code branches.
type ClaimProfile string

const (
	// ProfileStandard clients receive the generic bearer token.
	ProfileStandard ClaimProfile = "standard"
	// ProfileMeeting clients receive the meeting assertion with a dynamic
	// validity window and room context.
	ProfileMeeting ClaimProfile = "meeting"
)

// Registration describes a relying application allowed to use the SSO
// service. Registrations are owned by an external registry; the core only
// reads them.
//
// Domain is compared against the host of candidate redirect URIs exactly,
// port included (registrations like "127.0.0.1:8000" are valid). The default
// RedirectURI is expected to also appear in AllowedRedirectURIs; the
// allow-list is the single source of path policy.
type Registration struct {
	ID                  string       `bson:"client_id"`
	Secret              string       `bson:"client_secret"`
	Name                string       `bson:"client_name"`
	Domain              string       `bson:"domain"`
	RedirectURI         string       `bson:"redirect_uri"`
	AllowedRedirectURIs []string     `bson:"allowed_redirect_uris"`
	AllowAnyPath        bool         `bson:"allow_any_path"`
	Profile             ClaimProfile `bson:"claim_profile"`
	IsActive            bool         `bson:"is_active"`
	CreatedAt           time.Time    `bson:"created_at"`
	UpdatedAt           time.Time    `bson:"updated_at"`
}

// IsRedirectURIAllowed validates a candidate return URL against this
// client's domain and path policy. It never panics and treats any malformed
// URL as a deny.
//
// The host must equal the registered domain exactly (case-insensitive).
// There is no subdomain or suffix matching: "evil-domain.com" and
// "domain.com.evil.com" style hosts are rejected. When the host matches and
// AllowAnyPath is set, any path and query are accepted. Otherwise the full
// candidate must equal an allow-list entry, or have an entry ending in "/"
// as prefix.
func (r *Registration) IsRedirectURIAllowed(candidate string) bool {
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return false
	}
	if !strings.EqualFold(u.Host, r.Domain) {
		return false
	}
	if r.AllowAnyPath {
		return true
	}
	for _, allowed := range r.AllowedRedirectURIs {
		if candidate == allowed {
			return true
		}
		if strings.HasSuffix(allowed, "/") && strings.HasPrefix(candidate, allowed) {
			return true
		}
	}
	return false
}
