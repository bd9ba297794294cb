package router

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-annotation-api/internal/config"
	"github.com/noah-isme/gema-annotation-api/internal/handler"
	"github.com/noah-isme/gema-annotation-api/internal/middleware"
	"github.com/noah-isme/gema-annotation-api/internal/observability"
)

// Dependencies groups router dependencies for registration. Nil handlers leave
// their routes unregistered.
type Dependencies struct {
	AuthHandler           *handler.AuthHandler
	AnnotationHandler     *handler.AnnotationHandler
	AdminAnnotatorHandler *handler.AdminAnnotatorHandler
	AdminAssignment       *handler.AdminAssignmentHandler
	AdminCatalogHandler   *handler.AdminCatalogHandler
	AdminReconcileHandler *handler.AdminReconcileHandler
	AdminActivityHandler  *handler.AdminActivityHandler
	JWTMiddleware         fiber.Handler
	DatabasePing          func(ctx context.Context) error
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DatabasePing))

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth"))
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AnnotationHandler != nil {
		annotator := api.Group("/annotator", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleAnnotator))
		deps.AnnotationHandler.Register(annotator)
	}

	admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleAdmin))
	if deps.AdminAnnotatorHandler != nil {
		deps.AdminAnnotatorHandler.Register(admin.Group("/annotators"))
	}
	if deps.AdminAssignment != nil {
		deps.AdminAssignment.Register(admin.Group("/assignments"))
	}
	if deps.AdminCatalogHandler != nil {
		deps.AdminCatalogHandler.Register(admin)
	}
	if deps.AdminReconcileHandler != nil {
		deps.AdminReconcileHandler.Register(admin.Group("/reconcile"))
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(admin.Group("/activity"))
	}
}
