package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// ListSessionJobs returns every job recorded for an opaque client
// session, newest first.
func (h *Handlers) ListSessionJobs(c *fiber.Ctx) error {
	jobs, err := h.store.ListBySession(c.UserContext(), c.Params("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}

// ListNonTerminalSessionJobs returns a session's jobs still `uploading`
// or `queued` — the set a reloading client GCs by issuing DELETEs,
// since the server does not track sessions itself.
func (h *Handlers) ListNonTerminalSessionJobs(c *fiber.Ctx) error {
	jobs, err := h.store.NonTerminalForSession(c.UserContext(), c.Params("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}
