package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Tasks       *handlers.TasksHandler
	Assignments *handlers.AssignmentsHandler
	Webhooks    *handlers.WebhooksHandler
	Metrics     *handlers.MetricsHandler
	WS          *handlers.WSHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	webhooks := app.Group("/webhooks")
	webhooks.Post("/hostaway", cfg.Webhooks.Hostaway)
	webhooks.Post("/breezeway", cfg.Webhooks.Breezeway)

	tasks := app.Group("/tasks")
	tasks.Post("/", cfg.Tasks.Create)
	tasks.Get("/", cfg.Tasks.List)
	tasks.Post("/assign/batch", cfg.Assignments.RecommendBatch)
	tasks.Get("/:id", cfg.Tasks.Get)
	tasks.Patch("/:id/status", cfg.Tasks.UpdateStatus)
	tasks.Post("/:id/reassign", cfg.Tasks.Reassign)
	tasks.Post("/:id/evidence", cfg.Tasks.AttachEvidence)
	tasks.Post("/:id/approvals", cfg.Tasks.AddApproval)
	tasks.Post("/:id/followup", cfg.Tasks.CreateFollowUp)
	tasks.Get("/:id/audit", cfg.Tasks.ListAudit)
	tasks.Get("/:id/assign/recommend", cfg.Assignments.Recommend)
	tasks.Post("/:id/assign/auto", cfg.Assignments.AutoAssign)

	app.Use("/ws", cfg.WS.Upgrade)
	app.Get("/ws", cfg.WS.Subscribe())
}
