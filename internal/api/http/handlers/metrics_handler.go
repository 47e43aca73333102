package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/observability"
)

// MetricsHandler exposes the in-process counters snapshot.
type MetricsHandler struct {
	metrics *observability.Metrics
}

// NewMetricsHandler constructs handler.
func NewMetricsHandler(metrics *observability.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Snapshot GET /metrics.
func (h *MetricsHandler) Snapshot(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}
