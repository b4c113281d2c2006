package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"gifcompress/logging"
	"gifcompress/models"
	"gifcompress/store"
)

// ptrTo wraps a possibly-nil pointer in another pointer, matching
// JobPatch's convention for fields that distinguish "leave untouched"
// from "set explicitly, possibly to NULL."
func ptrTo[T any](v *T) **T { return &v }

// ListJobs returns a filtered, paginated job listing.
func (h *Handlers) ListJobs(c *fiber.Ctx) error {
	filters := models.ListFilters{
		SessionID: c.Query("session_id"),
		Filename:  c.Query("filename"),
		Limit:     c.QueryInt("limit", 20),
		Offset:    c.QueryInt("offset", 0),
	}

	if status := c.Query("status"); status != "" && status != "all" {
		filters.Status = []models.Status{models.Status(status)}
	} else if status == "all" {
		filters.AllStatus = true
	}

	if raw := c.Query("start_date"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.StartDate = &t
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.EndDate = &t
		}
	}

	jobs, total, err := h.store.List(c.UserContext(), filters)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"jobs":   jobs,
		"total":  total,
		"limit":  filters.Limit,
		"offset": filters.Offset,
	})
}

// JobCounts returns the per-status tally.
func (h *Handlers) JobCounts(c *fiber.Ctx) error {
	counts, err := h.store.Counts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(counts)
}

// GetJob returns a single job or 404.
func (h *Handlers) GetJob(c *fiber.Ctx) error {
	job, err := h.store.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(job)
}

// DeleteJob removes a job's artifacts and record, accepted in any status.
func (h *Handlers) DeleteJob(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")

	job, err := h.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if job.CompressedPath != nil {
		_ = h.artifacts.Delete(*job.CompressedPath)
	}
	_ = h.artifacts.Delete(job.OriginalPath)

	ok, err := h.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return logging.ErrNotFound("job", id)
	}

	return c.JSON(fiber.Map{"success": true})
}

// RetryJob re-enqueues a failed job with its original options, clearing
// every lifecycle field the first attempt set.
func (h *Handlers) RetryJob(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")

	job, err := h.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != models.StatusFailed {
		return logging.ErrValidation("only failed jobs can be retried")
	}

	status := models.StatusQueued
	progress := 0
	var nilTime *time.Time
	var nilStr *string
	var nilInt64 *int64
	var nilInt *int
	var nilFloat *float64

	patch := store.JobPatch{
		Status:           &status,
		Progress:         &progress,
		StartedAt:        ptrTo(nilTime),
		CompletedAt:      ptrTo(nilTime),
		ExpiresAt:        ptrTo(nilTime),
		ErrorMessage:     ptrTo(nilStr),
		CompressedPath:   ptrTo(nilStr),
		CompressedSize:   ptrTo(nilInt64),
		CompressedWidth:  ptrTo(nilInt),
		CompressedHeight: ptrTo(nilInt),
		ReductionPercent: ptrTo(nilFloat),
	}

	if err := h.store.Update(ctx, id, patch); err != nil {
		return err
	}
	if err := h.pool.Submit(id); err != nil {
		return err
	}

	job.Status = status
	job.Progress = progress
	job.StartedAt = nil
	job.CompletedAt = nil
	job.ExpiresAt = nil
	job.ErrorMessage = nil
	job.CompressedPath = nil
	job.CompressedSize = nil
	job.CompressedWidth = nil
	job.CompressedHeight = nil
	job.ReductionPercent = nil

	return c.JSON(job)
}
