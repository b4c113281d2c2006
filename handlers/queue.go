package handlers

import (
	"github.com/gofiber/fiber/v2"

	"gifcompress/logging"
)

// GetQueueConfig reports the worker pool's current shape.
func (h *Handlers) GetQueueConfig(c *fiber.Ctx) error {
	concurrency, active, pending := h.pool.Status()
	return c.JSON(fiber.Map{
		"concurrency": concurrency,
		"active":      active,
		"pending":     pending,
	})
}

type setQueueConfigRequest struct {
	Concurrency int `json:"concurrency"`
}

// SetQueueConfig adjusts the worker pool's concurrency ceiling without
// cancelling in-flight jobs.
func (h *Handlers) SetQueueConfig(c *fiber.Ctx) error {
	var req setQueueConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return logging.ErrValidation("malformed request body").WithCause(err)
	}

	if err := h.pool.SetConcurrency(req.Concurrency); err != nil {
		return err
	}

	concurrency, active, pending := h.pool.Status()
	h.metrics.RecordQueueDepth(concurrency, active, pending)

	return c.JSON(fiber.Map{
		"concurrency": concurrency,
		"active":      active,
		"pending":     pending,
	})
}
