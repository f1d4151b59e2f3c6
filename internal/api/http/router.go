package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/phijaro/octo-oauth-demo/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Prefix     string
	Health     *handlers.HealthHandler
	Enrollment *handlers.EnrollmentHandler
}

// RegisterRoutes wires HTTP routes. The enrollment pages live under Prefix;
// probes stay at the root so orchestrators need not know the prefix.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	enroll := app.Group(cfg.Prefix)
	enroll.Get("/", cfg.Enrollment.Index)
	enroll.Get("/authorize/", cfg.Enrollment.Authorize)
	enroll.Get("/callback/", cfg.Enrollment.Callback)
}
