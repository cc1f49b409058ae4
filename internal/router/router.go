package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mathbingo/mathbingo-go-api/internal/config"
	"github.com/mathbingo/mathbingo-go-api/internal/handler"
	"github.com/mathbingo/mathbingo-go-api/internal/middleware"
	"github.com/mathbingo/mathbingo-go-api/internal/models"
	"github.com/mathbingo/mathbingo-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	AssignmentHandler *handler.AssignmentHandler
	ProgressHandler   *handler.ProgressHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth")
		deps.AuthHandler.RegisterPublic(auth.Group("", middleware.RateLimit("auth", 20, time.Minute)))
		deps.AuthHandler.RegisterProtected(auth.Group("", jwtMiddleware))

		admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
		deps.AuthHandler.RegisterAdmin(admin)
	}

	if deps.AssignmentHandler != nil {
		assignments := api.Group("/assignments", jwtMiddleware)

		adminAssignments := assignments.Group("", middleware.RequireRole(models.RoleAdmin))
		deps.AssignmentHandler.Register(adminAssignments)

		if deps.ProgressHandler != nil {
			deps.ProgressHandler.Register(assignments)
			deps.ProgressHandler.RegisterAdmin(adminAssignments)
		}
	}

	if deps.ProgressHandler != nil {
		students := api.Group("/students", jwtMiddleware)
		deps.ProgressHandler.RegisterStudent(students)
	}
}
