package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRedirectURIAllowed_AnyPath(t *testing.T) {
	reg := &Registration{
		Domain:       "meet.example.com",
		AllowAnyPath: true,
	}

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"room path", "https://meet.example.com/room/42", true},
		{"root", "https://meet.example.com/", true},
		{"query only", "https://meet.example.com/x?a=b", true},
		{"case-insensitive host", "https://MEET.Example.COM/room", true},
		{"different host", "https://evil.com/callback", false},
		{"suffix attack", "https://meet.example.com.evil.com/x", false},
		{"subdomain", "https://sub.meet.example.com/x", false},
		{"prefix attack", "https://evil-meet.example.com/x", false},
		{"host with port", "https://meet.example.com:8443/room", false},
		{"scheme relative garbage", "://meet.example.com/x", false},
		{"no host", "/relative/path", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.IsRedirectURIAllowed(tt.candidate))
		})
	}
}

func TestIsRedirectURIAllowed_AllowList(t *testing.T) {
	reg := &Registration{
		Domain:      "app.example.com",
		RedirectURI: "https://app.example.com/auth/callback/",
		AllowedRedirectURIs: []string{
			"https://app.example.com/auth/callback/",
			"https://app.example.com/login",
		},
	}

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"exact match", "https://app.example.com/login", true},
		{"prefix match on trailing slash entry", "https://app.example.com/auth/callback/next?x=1", true},
		{"trailing-slash entry itself", "https://app.example.com/auth/callback/", true},
		{"no prefix match on plain entry", "https://app.example.com/login2", false},
		{"unlisted path", "https://app.example.com/other", false},
		{"right path wrong host", "https://evil.com/login", false},
		{"host mismatch beats path rules", "https://app.example.com.evil.com/login", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.IsRedirectURIAllowed(tt.candidate))
		})
	}
}

func TestIsRedirectURIAllowed_DomainWithPort(t *testing.T) {
	reg := &Registration{
		Domain:       "127.0.0.1:8000",
		AllowAnyPath: true,
	}

	assert.True(t, reg.IsRedirectURIAllowed("http://127.0.0.1:8000/sso/test/callback/"))
	assert.False(t, reg.IsRedirectURIAllowed("http://127.0.0.1/sso/test/callback/"))
	assert.False(t, reg.IsRedirectURIAllowed("http://127.0.0.1:9000/sso/test/callback/"))
}
