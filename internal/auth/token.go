// ABOUTME: JWT bearer-token minting for control-plane HTTP requests
// ABOUTME: Uses HS256 signing with a shared secret; tokens are cached until near expiry

package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSecret indicates a token was requested without a configured secret.
var ErrNoSecret = errors.New("no token secret configured")

// DefaultTokenTTL is how long minted tokens remain valid. Long enough to
// cover a full batch without re-signing on every request.
const DefaultTokenTTL = 1 * time.Hour

// renewMargin is how long before expiry a cached token is discarded.
const renewMargin = 5 * time.Minute

// TokenSource mints and caches HS256-signed JWTs for a fixed identity.
// Safe for concurrent use by the dispatcher's workers.
type TokenSource struct {
	secret   []byte
	identity string
	ttl      time.Duration

	mu      sync.Mutex
	token   string
	expires time.Time

	now func() time.Time // overridden in tests
}

// NewTokenSource creates a token source signing with the given secret.
// The identity becomes the "sub" claim on every minted token.
func NewTokenSource(secret []byte, identity string) *TokenSource {
	return &TokenSource{
		secret:   secret,
		identity: identity,
		ttl:      DefaultTokenTTL,
		now:      time.Now,
	}
}

// Token returns a valid signed token, minting a fresh one when the cached
// token is missing or within renewMargin of expiry.
func (s *TokenSource) Token() (string, error) {
	if len(s.secret) == 0 {
		return "", ErrNoSecret
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.expires.Add(-renewMargin)) {
		return s.token, nil
	}

	expires := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub": s.identity,
		"iat": now.Unix(),
		"exp": expires.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}

	s.token = signed
	s.expires = expires
	return signed, nil
}
