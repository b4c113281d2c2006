// Package reaper is the periodic sweep that deletes expired artifacts
// and their job records, and reconciles jobs stuck in a pre-processing
// state for longer than a generous staleness window.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"gifcompress/artifacts"
	"gifcompress/models"
	"gifcompress/store"
)

// Reaper runs on a fixed interval until its context is cancelled.
type Reaper struct {
	store     *store.Store
	artifacts *artifacts.Store
	logger    *slog.Logger

	interval   time.Duration
	staleAfter time.Duration
}

func New(st *store.Store, arts *artifacts.Store, logger *slog.Logger, interval, staleAfter time.Duration) *Reaper {
	return &Reaper{store: st, artifacts: arts, logger: logger, interval: interval, staleAfter: staleAfter}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	r.reapExpired(ctx)
	r.reapStale(ctx)
}

// reapExpired deletes artifacts and records for every job whose TTL has
// passed. Failures are logged and simply retried on the next tick.
func (r *Reaper) reapExpired(ctx context.Context) {
	expired, err := r.store.Expired(ctx, time.Now().UTC())
	if err != nil {
		r.logger.Error("reaper: failed to list expired jobs", slog.Any("error", err))
		return
	}

	for _, job := range expired {
		if job.CompressedPath != nil {
			if err := r.artifacts.Delete(*job.CompressedPath); err != nil {
				r.logger.Warn("reaper: failed to delete compressed artifact", slog.String("job_id", job.ID), slog.Any("error", err))
			}
		}
		if err := r.artifacts.Delete(job.OriginalPath); err != nil {
			r.logger.Warn("reaper: failed to delete original artifact", slog.String("job_id", job.ID), slog.Any("error", err))
		}

		if _, err := r.store.Delete(ctx, job.ID); err != nil {
			r.logger.Error("reaper: failed to delete job record", slog.String("job_id", job.ID), slog.Any("error", err))
			continue
		}
		r.logger.Info("reaper: removed expired job", slog.String("job_id", job.ID))
	}
}

// reapStale fails jobs that have been stuck in uploading or queued for
// longer than staleAfter — a second line of defense for crashes that
// happen before the worker pool's own startup reconciliation runs, or
// clients that vanish mid-upload.
func (r *Reaper) reapStale(ctx context.Context) {
	cutoff := time.Now().Add(-r.staleAfter)
	stale, err := r.store.StaleProcessing(ctx, []models.Status{models.StatusUploading, models.StatusQueued}, cutoff)
	if err != nil {
		r.logger.Error("reaper: failed to list stale jobs", slog.Any("error", err))
		return
	}

	for _, job := range stale {
		status := models.StatusFailed
		progress := 0
		message := "stale"
		messagePtr := &message

		if err := r.store.Update(ctx, job.ID, store.JobPatch{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &messagePtr,
		}); err != nil {
			r.logger.Error("reaper: failed to fail stale job", slog.String("job_id", job.ID), slog.Any("error", err))
			continue
		}
		r.logger.Warn("reaper: failed stale job", slog.String("job_id", job.ID))
	}
}
