package workerpool

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"gifcompress/executor"
	"gifcompress/models"
	"gifcompress/store"
)

// runJob drives one job through processing → completed/failed, publishing
// events and persisting every transition as it happens.
func (p *Pool) runJob(ctx context.Context, jobID string) {
	job, err := p.store.Get(ctx, jobID)
	if err != nil {
		p.logger.Error("worker could not load job", slog.String("job_id", jobID), slog.Any("error", err))
		return
	}

	metricsStart := time.Now()
	p.markProcessing(ctx, job)

	source, err := p.executor.ProbeSource(ctx, job.OriginalPath)
	if err != nil {
		p.failJob(ctx, job.ID, fmt.Sprintf("failed to probe source: %v", err))
		p.recordCompletion(false, time.Since(metricsStart), job.OriginalSize, 0)
		return
	}

	estimateMs := p.predictor.EstimateMs(source, job.Options, job.OriginalSize)

	ext := filepath.Ext(job.OriginalFilename)
	outputPath := p.artifacts.PutCompressed(ext)

	stop := make(chan struct{})
	animatorDone := make(chan struct{})
	go func() {
		defer close(animatorDone)
		runAnimator(estimateMs, source, job.Options, func(progress int) {
			p.updateProgress(ctx, job.ID, progress)
		}, stop)
	}()

	start := time.Now()
	result, err := p.executor.Run(ctx, job.OriginalPath, outputPath, source, job.Options)
	close(stop)
	<-animatorDone
	actualMs := time.Since(start).Milliseconds()

	if err != nil {
		p.failJob(ctx, job.ID, err.Error())
		p.recordCompletion(false, time.Since(metricsStart), job.OriginalSize, 0)
		return
	}

	p.completeJob(ctx, job, result, source, actualMs)
	p.recordCompletion(true, time.Since(metricsStart), job.OriginalSize, result.CompressedSize)
}

// recordCompletion reports one job's outcome and wall-clock duration to
// the process-wide metrics collector, if one was wired in.
func (p *Pool) recordCompletion(success bool, duration time.Duration, originalSize, compressedSize int64) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordJobCompletion(success, duration, originalSize, compressedSize)
}

func (p *Pool) markProcessing(ctx context.Context, job *models.Job) {
	now := time.Now().UTC()
	status := models.StatusProcessing
	progress := 25

	if err := p.store.Update(ctx, job.ID, store.JobPatch{
		Status:    &status,
		Progress:  &progress,
		StartedAt: ptrTo(&now),
	}); err != nil {
		p.logger.Error("failed to mark job processing", slog.String("job_id", job.ID), slog.Any("error", err))
	}

	p.bus.PublishJobStatus(job.ID, models.JobStatusEvent{JobID: job.ID, Status: status, Progress: progress})
}

// updateProgress maps the animator's internal 0..100 onto the client-
// visible 25..99 band and persists each tick.
func (p *Pool) updateProgress(ctx context.Context, jobID string, internalProgress int) {
	displayed := 25 + (internalProgress*(99-25))/100
	if displayed > 99 {
		displayed = 99
	}

	if err := p.store.Update(ctx, jobID, store.JobPatch{Progress: &displayed}); err != nil {
		p.logger.Warn("failed to persist progress tick", slog.String("job_id", jobID), slog.Any("error", err))
	}

	status := models.StatusProcessing
	p.bus.PublishJobStatus(jobID, models.JobStatusEvent{JobID: jobID, Status: status, Progress: displayed})
}

func (p *Pool) completeJob(ctx context.Context, job *models.Job, result *executor.Result, source models.ImageInfo, actualMs int64) {
	reduction := 0.0
	if job.OriginalSize > 0 {
		reduction = roundTo1(100 * float64(job.OriginalSize-result.CompressedSize) / float64(job.OriginalSize))
	}

	now := time.Now().UTC()
	status := models.StatusCompleted
	progress := 100

	var expiresAt *time.Time
	if p.retentionTTL > 0 {
		t := now.Add(p.retentionTTL)
		expiresAt = &t
	}

	patch := store.JobPatch{
		Status:           &status,
		Progress:         &progress,
		CompletedAt:      ptrTo(&now),
		CompressedPath:   ptrTo(&result.CompressedPath),
		CompressedSize:   ptrTo(&result.CompressedSize),
		CompressedWidth:  ptrTo(&result.CompressedWidth),
		CompressedHeight: ptrTo(&result.CompressedHeight),
		ReductionPercent: ptrTo(&reduction),
	}
	if expiresAt != nil {
		patch.ExpiresAt = ptrTo(expiresAt)
	}

	if err := p.store.Update(ctx, job.ID, patch); err != nil {
		p.logger.Error("failed to mark job completed", slog.String("job_id", job.ID), slog.Any("error", err))
	}

	p.bus.PublishJobStatus(job.ID, models.JobStatusEvent{
		JobID:            job.ID,
		Status:           status,
		Progress:         progress,
		CompressedSize:   &result.CompressedSize,
		CompressedWidth:  &result.CompressedWidth,
		CompressedHeight: &result.CompressedHeight,
		ReductionPercent: &reduction,
	})

	if err := p.predictor.RecordCompletion(ctx, job.ID, source, job.Options, job.OriginalSize, actualMs); err != nil {
		p.logger.Warn("failed to record prediction sample", slog.String("job_id", job.ID), slog.Any("error", err))
	}
}

func (p *Pool) failJob(ctx context.Context, jobID, message string) {
	if len(message) > 8*1024 {
		message = message[:8*1024]
	}
	message = strings.TrimSpace(message)

	now := time.Now().UTC()
	status := models.StatusFailed
	progress := 0

	if err := p.store.Update(ctx, jobID, store.JobPatch{
		Status:       &status,
		Progress:     &progress,
		CompletedAt:  ptrTo(&now),
		ErrorMessage: ptrTo(&message),
	}); err != nil {
		p.logger.Error("failed to mark job failed", slog.String("job_id", jobID), slog.Any("error", err))
	}

	p.bus.PublishJobStatus(jobID, models.JobStatusEvent{
		JobID:        jobID,
		Status:       status,
		Progress:     progress,
		ErrorMessage: &message,
	})
}

func roundTo1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}

// ptrTo wraps a pointer in another pointer, for JobPatch fields whose
// **T shape distinguishes "leave untouched" (nil outer) from "set to
// this value, possibly NULL" (non-nil outer wrapping a nil/non-nil inner).
func ptrTo[T any](v *T) **T { return &v }
