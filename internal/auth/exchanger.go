package auth

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/phijaro/octo-oauth-demo/internal/config"
	"github.com/phijaro/octo-oauth-demo/internal/domain"
	apperrors "github.com/phijaro/octo-oauth-demo/pkg/util/errorutil"
)

// Grant is what the callback hands to the token endpoint.
type Grant struct {
	Code         string
	CodeVerifier string
	RedirectURL  string
}

// Exchanger drives the authorization-code-with-PKCE flow against the provider.
type Exchanger struct {
	oauthConfig *oauth2.Config
	httpClient  *http.Client
}

// NewExchanger builds an exchanger for the configured provider. A nil httpClient
// uses the oauth2 package default.
func NewExchanger(cfg config.OAuthConfig, httpClient *http.Client) *Exchanger {
	return &Exchanger{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthorizeURL,
				TokenURL: cfg.AccessTokenURL,
			},
			Scopes: cfg.Scopes,
		},
		httpClient: httpClient,
	}
}

// NewVerifier returns a fresh PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthCodeURL builds the provider authorization URL with an S256 code challenge.
func (e *Exchanger) AuthCodeURL(state, verifier, redirectURL string) string {
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if redirectURL != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURL))
	}
	return e.oauthConfig.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a token pair. An empty code means the
// user declined (or the provider reported an error) and fails before any request
// is made. Nothing is retried.
func (e *Exchanger) Exchange(ctx context.Context, grant Grant) (domain.TokenPair, error) {
	if grant.Code == "" {
		return domain.TokenPair{}, apperrors.NewAuthorizationDenied("")
	}
	if grant.CodeVerifier == "" {
		return domain.TokenPair{}, apperrors.NewExchangeFailed(errors.New("missing pkce verifier"))
	}

	if e.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}

	opts := []oauth2.AuthCodeOption{oauth2.VerifierOption(grant.CodeVerifier)}
	if grant.RedirectURL != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", grant.RedirectURL))
	}

	token, err := e.oauthConfig.Exchange(ctx, grant.Code, opts...)
	if err != nil {
		return domain.TokenPair{}, apperrors.NewExchangeFailed(err)
	}
	if token.AccessToken == "" {
		return domain.TokenPair{}, apperrors.NewExchangeFailed(errors.New("provider returned no access token"))
	}
	if token.RefreshToken == "" {
		return domain.TokenPair{}, apperrors.NewExchangeFailed(errors.New("provider returned no refresh token"))
	}

	return domain.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}, nil
}
