package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/phijaro/octo-oauth-demo/internal/auth"
	"github.com/phijaro/octo-oauth-demo/internal/domain"
	apperrors "github.com/phijaro/octo-oauth-demo/pkg/util/errorutil"
)

const (
	graphQLPath        = "v1/graphql/"
	viewerNameQuery    = "query getViewer {viewer{fullName}}"
	maxProfileBodySize = 1 << 20
)

// ClaimsService gathers the identity of the enrolling user from two sources:
// the access token payload (email) and the provider's GraphQL API (full name).
type ClaimsService struct {
	endpoint   string
	httpClient *http.Client
}

// NewClaimsService targets the GraphQL endpoint under apiBaseURL. A nil
// httpClient uses http.DefaultClient.
func NewClaimsService(apiBaseURL string, httpClient *http.Client) *ClaimsService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if !strings.HasSuffix(apiBaseURL, "/") {
		apiBaseURL += "/"
	}
	return &ClaimsService{endpoint: apiBaseURL + graphQLPath, httpClient: httpClient}
}

// Extract decodes the email locally, then asks the provider for the full name.
func (s *ClaimsService) Extract(ctx context.Context, accessToken string) (domain.Claims, error) {
	email, err := auth.DecodeUnverifiedEmail(accessToken)
	if err != nil {
		return domain.Claims{}, err
	}
	name, err := s.FetchFullName(ctx, accessToken)
	if err != nil {
		return domain.Claims{}, err
	}
	return domain.Claims{Email: email, FullName: name}, nil
}

type viewerResponse struct {
	Data *struct {
		Viewer *struct {
			FullName *string `json:"fullName"`
		} `json:"viewer"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchFullName runs the viewer query with the access token as credential.
// The provider expects the raw token in the Authorization header, without a scheme.
func (s *ClaimsService) FetchFullName(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(viewerNameQuery))
	if err != nil {
		return "", apperrors.NewProfileFetchError(err)
	}
	req.Header.Set("Authorization", accessToken)
	req.Header.Set("Content-Type", "application/graphql")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewProfileFetchError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBodySize))
	if err != nil {
		return "", apperrors.NewProfileFetchError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperrors.NewProfileFetchError(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload viewerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", apperrors.NewProfileFetchError(fmt.Errorf("decode response: %w", err))
	}
	if payload.Data == nil || payload.Data.Viewer == nil || payload.Data.Viewer.FullName == nil {
		if len(payload.Errors) > 0 {
			return "", apperrors.NewProfileFetchError(fmt.Errorf("graphql: %s", payload.Errors[0].Message))
		}
		return "", apperrors.NewProfileFetchError(errors.New("response has no data.viewer.fullName"))
	}
	name := *payload.Data.Viewer.FullName
	if strings.TrimSpace(name) == "" {
		return "", apperrors.NewProfileFetchError(errors.New("viewer fullName is empty"))
	}
	return name, nil
}
