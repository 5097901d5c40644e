package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sr-service/internal/api/http/handlers"
	"github.com/spec-kit/sr-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Users           *handlers.UsersHandler
	ServiceRequests *handlers.ServiceRequestsHandler
	Staff           *handlers.StaffServiceRequestsHandler
	MasterData      *handlers.MasterDataHandler
	AuthMiddleware  *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	protectedAuth := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protectedAuth.Post("/password/change", cfg.Users.ChangePassword)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())

	api.Get("/master-data", cfg.MasterData.List)

	srGroup := api.Group("/service-requests")
	srGroup.Post("", cfg.ServiceRequests.Create)
	srGroup.Get("", cfg.ServiceRequests.List)
	srGroup.Get("/:id", cfg.ServiceRequests.Get)
	srGroup.Get("/:id/comments", cfg.ServiceRequests.ListCommentsOnly)
	srGroup.Post("/:id/comments", cfg.ServiceRequests.AddComment)

	staffGroup := api.Group("/staff/service-requests", auth.RequireStaff())
	staffGroup.Get("", cfg.Staff.List)
	staffGroup.Get("/by-number/:srNumber", cfg.Staff.GetByNumber)
	staffGroup.Post("/:id/transition", cfg.Staff.Transition)
	staffGroup.Post("/:id/assign", cfg.Staff.Assign)

	adminGroup := api.Group("/admin", auth.RequireAdmin())
	adminGroup.Post("/tat/auto-allot", cfg.MasterData.AutoAllotTAT)
}
