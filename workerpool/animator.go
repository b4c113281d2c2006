package workerpool

import (
	"math"
	"time"

	"gifcompress/models"
)

// animatorWork is an inverse-log difficulty score used to pick a tick
// cadence: small, simple jobs tick fast with large increments; large or
// heavily-processed jobs tick slowly with small increments, so the
// animated curve roughly tracks the predicted wall-clock time without
// ever needing real progress from the external tool.
func animatorWork(source models.ImageInfo, opts models.CompressionOptions) float64 {
	pixels := float64(source.Frames * source.Width * source.Height)
	if pixels < 1 {
		pixels = 1
	}
	work := math.Log1p(pixels)

	// Higher compression levels and extra passes cost more real time.
	work *= 1 + float64(opts.CompressionLevel)/200.0

	if opts.OptimizeTransparency {
		work *= 1.15
	}
	if opts.UndoOptimizations {
		work *= 1.25
	}
	if opts.ReduceColors {
		work *= 1.1
	}

	return work
}

// animatorStep derives a tick interval and progress increment from the
// difficulty score and the predictor's estimate, so the curve from
// progress 10 to 99 roughly spans estimateMs regardless of job size.
func animatorStep(estimateMs int64, work float64) (interval time.Duration, increment int) {
	const startProgress = 10
	const ceilingProgress = 99
	span := ceilingProgress - startProgress

	tickCount := work
	if tickCount < 4 {
		tickCount = 4
	}
	if tickCount > float64(span) {
		tickCount = float64(span)
	}

	increment = int(math.Ceil(float64(span) / tickCount))
	if increment < 1 {
		increment = 1
	}

	intervalMs := float64(estimateMs) / tickCount
	if intervalMs < 50 {
		intervalMs = 50
	}
	if intervalMs > 2000 {
		intervalMs = 2000
	}

	return time.Duration(intervalMs) * time.Millisecond, increment
}

// runAnimator raises progress from 10 toward 99 on a ticker, invoking
// onTick with each new value, until stop fires.
func runAnimator(estimateMs int64, source models.ImageInfo, opts models.CompressionOptions, onTick func(progress int), stop <-chan struct{}) {
	interval, increment := animatorStep(estimateMs, animatorWork(source, opts))
	progress := 10
	onTick(progress)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if progress >= 99 {
				continue
			}
			progress += increment
			if progress > 99 {
				progress = 99
			}
			onTick(progress)
		}
	}
}
