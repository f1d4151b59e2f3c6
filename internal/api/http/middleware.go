package http

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/phijaro/octo-oauth-demo/internal/api/http/handlers"
	"github.com/phijaro/octo-oauth-demo/internal/api/http/views"
	"github.com/phijaro/octo-oauth-demo/internal/observability"
	apperrors "github.com/phijaro/octo-oauth-demo/pkg/util/errorutil"
)

// MiddlewareConfig holds what the global middlewares need.
type MiddlewareConfig struct {
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Timeout  time.Duration
	Renderer *views.Renderer
	// RetryURL is linked from the failure page.
	RetryURL string
}

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, cfg MiddlewareConfig) {
	app.Use(observability.RequestLogger(cfg.Logger, cfg.Metrics))
	if cfg.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(cfg.Timeout))
	}
	app.Use(errorHandlingMiddleware(cfg))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorHandlingMiddleware turns errors into the failure page, or a JSON body
// for clients that ask for JSON.
func errorHandlingMiddleware(cfg MiddlewareConfig) fiber.Handler {
	logger := cfg.Logger
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := apperrors.ToDomainError(err)
				cfg.Metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.String("path", c.Path()), zap.Error(domainErr))
				} else {
					logger.Info("request rejected", zap.String("path", c.Path()), zap.String("code", domainErr.Code))
				}
				err = respondError(c, cfg, domainErr)
			}
		}()
		return c.Next()
	}
}

func respondError(c *fiber.Ctx, cfg MiddlewareConfig, domainErr *apperrors.DomainError) error {
	if handlers.WantsJSON(c) || cfg.Renderer == nil {
		response := fiber.Map{"error": fiber.Map{
			"code":    domainErr.Code,
			"message": domainErr.Message,
		}}
		if len(domainErr.Details) > 0 {
			response["error"].(fiber.Map)["details"] = domainErr.Details
		}
		return c.Status(domainErr.HTTPStatus).JSON(response)
	}
	return cfg.Renderer.Render(c, domainErr.HTTPStatus, views.PageFailure, views.FailurePage{
		Code:     domainErr.Code,
		Message:  domainErr.Message,
		RetryURL: cfg.RetryURL,
	})
}
