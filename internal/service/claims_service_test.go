package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/phijaro/octo-oauth-demo/pkg/util/errorutil"
)

func accessTokenFor(t *testing.T, email string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": email}).SignedString([]byte("provider"))
	require.NoError(t, err)
	return token
}

func graphQLServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClaimsServiceExtract(t *testing.T) {
	token := accessTokenFor(t, "ada@example.com")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/graphql/", r.URL.Path)
		assert.Equal(t, token, r.Header.Get("Authorization"))
		assert.Equal(t, "application/graphql", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "query getViewer {viewer{fullName}}", string(body))
		_, _ = io.WriteString(w, `{"data":{"viewer":{"fullName":"Ada Lovelace"}}}`)
	}))
	defer srv.Close()

	claims, err := NewClaimsService(srv.URL, srv.Client()).Extract(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "Ada Lovelace", claims.FullName)
}

func TestClaimsServiceProfileFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"server error":     {http.StatusInternalServerError, `{"data":{"viewer":{"fullName":"Ada"}}}`},
		"unauthorized":     {http.StatusUnauthorized, `{}`},
		"not json":         {http.StatusOK, `<html>`},
		"missing data":     {http.StatusOK, `{}`},
		"missing viewer":   {http.StatusOK, `{"data":{}}`},
		"missing fullName": {http.StatusOK, `{"data":{"viewer":{}}}`},
		"null fullName":    {http.StatusOK, `{"data":{"viewer":{"fullName":null}}}`},
		"empty fullName":   {http.StatusOK, `{"data":{"viewer":{"fullName":""}}}`},
		"graphql errors":   {http.StatusOK, `{"errors":[{"message":"KT-CT-1111: Unauthorized."}]}`},
	}
	token := accessTokenFor(t, "ada@example.com")
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := graphQLServer(t, tc.status, tc.body)
			_, err := NewClaimsService(srv.URL+"/", srv.Client()).Extract(context.Background(), token)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeProfileFetch), err.Error())
		})
	}
}

func TestClaimsServiceNetworkError(t *testing.T) {
	srv := graphQLServer(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	_, err := NewClaimsService(url, nil).FetchFullName(context.Background(), "token")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProfileFetch))
}

func TestClaimsServiceDecodesEmailBeforeCallingProvider(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	_, err := NewClaimsService(srv.URL, srv.Client()).Extract(context.Background(), "not-a-jwt")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeClaimsDecode))
	assert.Zero(t, calls)
}
