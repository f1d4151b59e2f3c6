package auth

import (
	"errors"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/phijaro/octo-oauth-demo/pkg/util/errorutil"
)

// DecodeUnverifiedEmail reads the email claim from an access token payload.
//
// The signature is NOT verified. The token must be one this service just received
// from the provider's token endpoint over TLS; never pass it a token supplied by a
// browser or any other untrusted party.
func DecodeUnverifiedEmail(accessToken string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return "", apperrors.NewClaimsDecodeError(err)
	}

	raw, ok := claims["email"]
	if !ok {
		return "", apperrors.NewClaimsDecodeError(errors.New("email claim missing"))
	}
	email, ok := raw.(string)
	if !ok {
		return "", apperrors.NewClaimsDecodeError(errors.New("email claim is not a string"))
	}
	if strings.TrimSpace(email) == "" {
		return "", apperrors.NewClaimsDecodeError(errors.New("email claim is empty"))
	}
	return email, nil
}
