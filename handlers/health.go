package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"gifcompress/config"
)

// HealthCheck is a liveness probe: the process is up and serving.
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "gifcompress",
		"version": config.GetVersion(),
		"uptime":  time.Since(h.startTime).String(),
	})
}

// Ready is a readiness probe distinct from HealthCheck: it verifies the
// repository is reachable and the configured tool binary is present and
// executable, so a process supervisor can distinguish "running" from
// "able to actually do work."
func (h *Handlers) Ready(c *fiber.Ctx) error {
	results := h.health.CheckHealth()

	overall, _ := results["overall"].(bool)
	status := fiber.StatusOK
	if !overall {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(results)
}
