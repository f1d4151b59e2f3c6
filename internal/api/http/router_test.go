package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phijaro/octo-oauth-demo/internal/api/http/handlers"
	"github.com/phijaro/octo-oauth-demo/internal/api/http/views"
	"github.com/phijaro/octo-oauth-demo/internal/auth"
	"github.com/phijaro/octo-oauth-demo/internal/config"
	"github.com/phijaro/octo-oauth-demo/internal/domain"
	"github.com/phijaro/octo-oauth-demo/internal/observability"
	"github.com/phijaro/octo-oauth-demo/internal/service"
	"github.com/phijaro/octo-oauth-demo/internal/sink"
	apperrors "github.com/phijaro/octo-oauth-demo/pkg/util/errorutil"
)

const prefix = "/oauth-demo"

type fakeCompleter struct {
	calls   []service.Callback
	outcome *service.Outcome
	err     error
}

func (f *fakeCompleter) Complete(_ context.Context, cb service.Callback) (*service.Outcome, error) {
	f.calls = append(f.calls, cb)
	if cb.Code == "" {
		return &service.Outcome{State: domain.CallbackDenied}, apperrors.NewAuthorizationDenied(cb.ProviderError)
	}
	return f.outcome, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type testServer struct {
	app       *fiber.App
	flows     *auth.MemoryFlowStore
	signer    *auth.StateSigner
	completer *fakeCompleter
	metrics   *observability.Metrics
}

func newTestServer(t *testing.T, deps map[string]handlers.Pinger) *testServer {
	t.Helper()
	signer, err := auth.NewStateSigner("test-secret", 10*time.Minute)
	require.NoError(t, err)
	renderer, err := views.NewRenderer()
	require.NoError(t, err)

	ts := &testServer{
		flows:     auth.NewMemoryFlowStore(10 * time.Minute),
		signer:    signer,
		completer: &fakeCompleter{outcome: &service.Outcome{
			State:        domain.CallbackSucceeded,
			EnrollmentID: "enr-1",
			View: domain.RedactedView{
				Name:         "John Doe",
				Email:        "a********@********m",
				RefreshToken: "abcd********5678",
			},
			Sinks: sink.Results{
				{Sink: "email", Status: sink.StatusSkipped},
				{Sink: "csv", Status: sink.StatusDelivered},
			},
		}},
		metrics: observability.NewMetrics(),
	}
	exchanger := auth.NewExchanger(config.OAuthConfig{
		ClientID:       "client-1",
		AuthorizeURL:   "https://auth.example.com/authorize/",
		AccessTokenURL: "https://auth.example.com/token/",
	}, nil)

	app := fiber.New()
	RegisterMiddlewares(app, MiddlewareConfig{
		Logger:   zap.NewNop(),
		Metrics:  ts.metrics,
		Renderer: renderer,
		RetryURL: prefix + "/",
	})
	RegisterRoutes(app, RouteConfig{
		Prefix: prefix,
		Health: handlers.NewHealthHandler("octo-oauth-demo", "test", ts.metrics, deps),
		Enrollment: handlers.NewEnrollmentHandler(handlers.EnrollmentHandlerConfig{
			Prefix:      prefix,
			Authorizer:  exchanger,
			Flows:       ts.flows,
			Signer:      signer,
			Enrollments: ts.completer,
			Renderer:    renderer,
		}),
	})
	ts.app = app
	return ts
}

func (ts *testServer) do(t *testing.T, target string, header map[string]string, cookies ...string) (int, string, *fiberResponse) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.Header.Add(fiber.HeaderCookie, c)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := &fiberResponse{location: resp.Header.Get(fiber.HeaderLocation), contentType: resp.Header.Get(fiber.HeaderContentType)}
	for _, ck := range resp.Cookies() {
		if ck.Name == handlers.StateCookie {
			out.stateCookie = ck.Value
			out.cookiePath = ck.Path
		}
	}
	return resp.StatusCode, string(body), out
}

type fiberResponse struct {
	location    string
	contentType string
	stateCookie string
	cookiePath  string
}

var acceptJSON = map[string]string{fiber.HeaderAccept: fiber.MIMEApplicationJSON}

func TestIndexLinksToAuthorize(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body, resp := ts.do(t, prefix+"/", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, resp.contentType, "text/html")
	assert.Contains(t, body, `href="/oauth-demo/authorize/"`)
}

func TestAuthorizeRedirectsWithPKCEAndSignedState(t *testing.T) {
	ts := newTestServer(t, nil)

	status, _, resp := ts.do(t, "http://app.example.com"+prefix+"/authorize/", nil)
	require.Equal(t, fiber.StatusFound, status)

	loc, err := url.Parse(resp.location)
	require.NoError(t, err)
	assert.Equal(t, "auth.example.com", loc.Host)
	q := loc.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "http://app.example.com/oauth-demo/callback/", q.Get("redirect_uri"))

	state := q.Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, prefix+"/", resp.cookiePath)
	require.NoError(t, ts.signer.Verify(resp.stateCookie, state))

	verifier, err := ts.flows.Take(context.Background(), state)
	require.NoError(t, err)
	assert.NotEmpty(t, verifier)
}

func TestCallbackDeniedRendersFailurePage(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body, _ := ts.do(t, prefix+"/callback/?error=access_denied", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Contains(t, body, "Enrolment did not complete")
	assert.Contains(t, body, apperrors.CodeAuthorizationDenied)
	assert.Contains(t, body, `href="/oauth-demo/"`)
	require.Len(t, ts.completer.calls, 1)
	assert.Equal(t, "access_denied", ts.completer.calls[0].ProviderError)
	assert.Equal(t, int64(1), ts.metrics.Snapshot().Errors[prefix+"/callback/|GET|"+apperrors.CodeAuthorizationDenied])
}

func TestCallbackDeniedJSON(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body, _ := ts.do(t, prefix+"/callback/", acceptJSON)
	assert.Equal(t, fiber.StatusForbidden, status)

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, apperrors.CodeAuthorizationDenied, payload.Error.Code)
}

func TestCallbackRejectsMissingStateCookie(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body, _ := ts.do(t, prefix+"/callback/?code=abc&state=s1", acceptJSON)
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Contains(t, body, apperrors.CodeExchangeFailed)
	assert.Empty(t, ts.completer.calls)
}

func TestCallbackSucceedsAfterAuthorize(t *testing.T) {
	ts := newTestServer(t, nil)

	_, _, authz := ts.do(t, "http://app.example.com"+prefix+"/authorize/", nil)
	loc, err := url.Parse(authz.location)
	require.NoError(t, err)
	state := loc.Query().Get("state")

	status, body, resp := ts.do(t,
		"http://app.example.com"+prefix+"/callback/?code=abc&state="+state,
		acceptJSON,
		handlers.StateCookie+"="+authz.stateCookie)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, resp.stateCookie)

	var payload struct {
		State        string `json:"state"`
		EnrollmentID string `json:"enrollment_id"`
		Enrollment   struct {
			Name         string `json:"name"`
			Email        string `json:"email"`
			RefreshToken string `json:"refresh_token"`
		} `json:"enrollment"`
		Sinks []struct {
			Sink   string `json:"sink"`
			Status string `json:"status"`
		} `json:"sinks"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, "SUCCEEDED", payload.State)
	assert.Equal(t, "enr-1", payload.EnrollmentID)
	assert.Equal(t, "abcd********5678", payload.Enrollment.RefreshToken)
	require.Len(t, payload.Sinks, 2)
	assert.Equal(t, "csv", payload.Sinks[1].Sink)
	assert.Equal(t, "delivered", payload.Sinks[1].Status)

	require.Len(t, ts.completer.calls, 1)
	cb := ts.completer.calls[0]
	assert.Equal(t, "abc", cb.Code)
	assert.Equal(t, state, cb.State)
	assert.Equal(t, "http://app.example.com/oauth-demo/callback/", cb.RedirectURL)
}

func TestCallbackSuccessPageShowsRedactedValues(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie, err := ts.signer.Sign("s1")
	require.NoError(t, err)

	status, body, _ := ts.do(t, prefix+"/callback/?code=abc&state=s1", nil, handlers.StateCookie+"="+cookie)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "John Doe")
	assert.Contains(t, body, "a********@********m")
	assert.Contains(t, body, "abcd********5678")
}

func TestCallbackSinkFailureReportsDetails(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.completer.outcome = &service.Outcome{State: domain.CallbackFailed}
	ts.completer.err = apperrors.NewSinkDeliveryError(errors.New("email: refused"),
		map[string]any{"email": "failed", "csv": "delivered"})
	cookie, err := ts.signer.Sign("s1")
	require.NoError(t, err)

	status, body, _ := ts.do(t, prefix+"/callback/?code=abc&state=s1", acceptJSON, handlers.StateCookie+"="+cookie)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Contains(t, body, apperrors.CodeSinkDelivery)
	assert.Contains(t, body, `"csv":"delivered"`)
	assert.NotContains(t, body, "refused")
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, map[string]handlers.Pinger{
		"sqlite": fakePinger{},
		"redis":  fakePinger{err: errors.New("dial tcp: connection refused")},
	})

	status, body, _ := ts.do(t, "/health/live", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"alive"`)

	status, body, _ = ts.do(t, "/health/ready", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Contains(t, body, `"sqlite":"ok"`)
	assert.Contains(t, body, "connection refused")

	status, body, _ = ts.do(t, "/health/metrics", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"requests"`)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body, _ := ts.do(t, "/nowhere", acceptJSON)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Contains(t, body, apperrors.CodeNotFound)
}
