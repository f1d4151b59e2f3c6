package auth

import (
	"testing"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/phijaro/octo-oauth-demo/pkg/util/errorutil"
)

func signedAccessToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("provider-key-we-never-see"))
	require.NoError(t, err)
	return token
}

func TestDecodeUnverifiedEmail(t *testing.T) {
	token := signedAccessToken(t, jwt.MapClaims{"email": "ada@example.com", "sub": "A-123"})

	email, err := DecodeUnverifiedEmail(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", email)
}

func TestDecodeUnverifiedEmailIgnoresSignatureAndExpiry(t *testing.T) {
	token := signedAccessToken(t, jwt.MapClaims{"email": "ada@example.com", "exp": 1})
	// Tamper with the signature segment; decoding must still succeed.
	token = token[:len(token)-4] + "AAAA"

	email, err := DecodeUnverifiedEmail(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", email)
}

func TestDecodeUnverifiedEmailFailures(t *testing.T) {
	cases := map[string]string{
		"not a jwt":     "opaque-token",
		"bad payload":   "eyJhbGciOiJIUzI1NiJ9.!!!.sig",
		"missing email": signedAccessToken(t, jwt.MapClaims{"sub": "A-123"}),
		"numeric email": signedAccessToken(t, jwt.MapClaims{"email": 42}),
		"empty email":   signedAccessToken(t, jwt.MapClaims{"email": "  "}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeUnverifiedEmail(token)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeClaimsDecode))
		})
	}
}
