package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const stateKeyInfo = "octo-oauth-demo/flow-state"

// ErrStateMismatch is returned when a callback's state does not match the
// browser's signed state cookie.
var ErrStateMismatch = errors.New("oauth state mismatch")

// StateSigner binds the OAuth state value to the browser that started the flow.
// The cookie it produces is an HS256 JWT keyed from the application secret.
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewStateSigner derives the signing key from secret with HKDF-SHA256.
func NewStateSigner(secret string, ttl time.Duration) (*StateSigner, error) {
	if secret == "" {
		return nil, errors.New("state signer requires a secret")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(stateKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive state key: %w", err)
	}
	return &StateSigner{key: key, ttl: ttl, now: time.Now}, nil
}

// TTL is how long a signed state stays valid.
func (s *StateSigner) TTL() time.Duration {
	return s.ttl
}

// Sign returns the cookie value for state.
func (s *StateSigner) Sign(state string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        state,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify checks that cookie was issued by this signer, has not expired and
// carries state.
func (s *StateSigner) Verify(cookie, state string) error {
	if cookie == "" || state == "" {
		return ErrStateMismatch
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(cookie, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStateMismatch, err)
	}
	if !parsed.Valid || claims.ID != state {
		return ErrStateMismatch
	}
	return nil
}
