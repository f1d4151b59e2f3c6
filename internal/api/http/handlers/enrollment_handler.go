package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phijaro/octo-oauth-demo/internal/api/dto"
	"github.com/phijaro/octo-oauth-demo/internal/api/http/views"
	"github.com/phijaro/octo-oauth-demo/internal/auth"
	"github.com/phijaro/octo-oauth-demo/internal/service"
	apperrors "github.com/phijaro/octo-oauth-demo/pkg/util/errorutil"
)

// StateCookie binds a browser to the state value of its pending authorization.
const StateCookie = "oauth_state"

// AuthorizationURLBuilder produces the provider redirect for a new flow.
type AuthorizationURLBuilder interface {
	AuthCodeURL(state, verifier, redirectURL string) string
}

// CallbackCompleter runs the post-authorization pipeline.
type CallbackCompleter interface {
	Complete(ctx context.Context, cb service.Callback) (*service.Outcome, error)
}

// EnrollmentHandlerConfig holds the collaborators of EnrollmentHandler.
type EnrollmentHandlerConfig struct {
	Prefix        string
	PublicBaseURL string
	Authorizer    AuthorizationURLBuilder
	Flows         auth.FlowStore
	Signer        *auth.StateSigner
	Enrollments   CallbackCompleter
	Renderer      *views.Renderer
	Logger        *zap.Logger
}

// EnrollmentHandler serves the index, authorize and callback pages.
type EnrollmentHandler struct {
	cfg EnrollmentHandlerConfig
}

// NewEnrollmentHandler constructs handler.
func NewEnrollmentHandler(cfg EnrollmentHandlerConfig) *EnrollmentHandler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &EnrollmentHandler{cfg: cfg}
}

// Index handles GET {prefix}/.
func (h *EnrollmentHandler) Index(c *fiber.Ctx) error {
	return h.cfg.Renderer.Render(c, http.StatusOK, views.PageIndex, views.IndexPage{
		AuthorizeURL: h.cfg.Prefix + "/authorize/",
	})
}

// Authorize handles GET {prefix}/authorize/.
func (h *EnrollmentHandler) Authorize(c *fiber.Ctx) error {
	state := uuid.NewString()
	verifier := auth.NewVerifier()

	if err := h.cfg.Flows.Put(c.UserContext(), state, verifier); err != nil {
		return apperrors.NewInternalError(err)
	}
	signed, err := h.cfg.Signer.Sign(state)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     StateCookie,
		Value:    signed,
		Path:     h.cookiePath(),
		MaxAge:   int(h.cfg.Signer.TTL() / time.Second),
		Secure:   c.Protocol() == "https",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	h.cfg.Logger.Debug("authorization started", zap.String("state", state))
	return c.Redirect(h.cfg.Authorizer.AuthCodeURL(state, verifier, h.redirectURL(c)), http.StatusFound)
}

// Callback handles GET {prefix}/callback/.
func (h *EnrollmentHandler) Callback(c *fiber.Ctx) error {
	cb := service.Callback{
		Code:          c.Query("code"),
		State:         c.Query("state"),
		ProviderError: c.Query("error"),
		RedirectURL:   h.redirectURL(c),
	}
	cookie := c.Cookies(StateCookie)
	h.expireStateCookie(c)

	if cb.Code != "" {
		if err := h.cfg.Signer.Verify(cookie, cb.State); err != nil {
			return apperrors.NewExchangeFailed(err)
		}
	}

	outcome, err := h.cfg.Enrollments.Complete(c.UserContext(), cb)
	if err != nil {
		return err
	}

	if WantsJSON(c) {
		return c.JSON(dto.CallbackResponse{
			State:        outcome.State,
			EnrollmentID: outcome.EnrollmentID,
			Enrollment:   outcome.View,
			Sinks:        dto.NewSinkResults(outcome.Sinks),
		})
	}
	return h.cfg.Renderer.Render(c, http.StatusOK, views.PageSuccess, views.SuccessPage{View: outcome.View})
}

func (h *EnrollmentHandler) expireStateCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     StateCookie,
		Path:     h.cookiePath(),
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *EnrollmentHandler) cookiePath() string {
	return h.cfg.Prefix + "/"
}

// redirectURL is the absolute callback URL registered with the provider.
func (h *EnrollmentHandler) redirectURL(c *fiber.Ctx) string {
	base := h.cfg.PublicBaseURL
	if base == "" {
		base = c.BaseURL()
	}
	return base + h.cfg.Prefix + "/callback/"
}

// WantsJSON reports whether the client prefers JSON over the HTML pages.
func WantsJSON(c *fiber.Ctx) bool {
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}
