package services

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	serrors "go.avinoo.ir/sso/errors"
)

// SigningKeyBearer identifies the key used for generic bearer tokens. Each
// assertion profile registers its own key under the profile name, so the
// bearer secret and the assertion secrets stay distinct.
const SigningKeyBearer = "bearer"

// TokenSigner holds the HMAC-SHA256 signing keys of a deployment, keyed by
// name. A missing or empty key is a hard issuance error, never a silent
// degradation.
type TokenSigner struct {
	keys map[string][]byte
}

// NewTokenSigner creates an empty TokenSigner.
func NewTokenSigner() *TokenSigner {
	return &TokenSigner{keys: make(map[string][]byte)}
}

// AddKey registers a signing secret under the given key ID, replacing any
// previous secret with that ID.
func (s *TokenSigner) AddKey(keyID, secret string) {
	s.keys[keyID] = []byte(secret)
}

// Sign signs the claims with the named key.
func (s *TokenSigner) Sign(claims jwt.Claims, keyID string) (string, error) {
	secret, ok := s.keys[keyID]
	if !ok || len(secret) == 0 {
		return "", fmt.Errorf("%w: no signing key registered as %q", serrors.ErrSigningFailure, keyID)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", serrors.ErrSigningFailure, err)
	}
	return signed, nil
}

// Verify parses a signed token with the named key and returns its claims.
// Expiry and not-before are validated by the parser.
func (s *TokenSigner) Verify(tokenValue, keyID string) (jwt.MapClaims, error) {
	secret, ok := s.keys[keyID]
	if !ok || len(secret) == 0 {
		return nil, fmt.Errorf("%w: no signing key registered as %q", serrors.ErrSigningFailure, keyID)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenValue, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}
