// Package predictor estimates wall-clock compression time for a
// (source, options) pair using a frozen ridge-regression baseline plus a
// learned residual correction, and updates the residual layer as jobs
// complete.
package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gifcompress/models"
)

// Baseline is the frozen layer-1 model: intercept, per-feature weight,
// and per-feature (mean, scale) standardization, shipped as a read-only
// JSON asset and loaded once at startup.
type Baseline struct {
	Intercept float64            `json:"intercept"`
	Weights   map[string]float64 `json:"weights"`
	Means     map[string]float64 `json:"means"`
	Scales    map[string]float64 `json:"scales"`
}

// featureOrder is the canonical feature name set; must match the names
// used when baseline.json was trained.
var featureOrder = []string{
	"total_pixels", "target_pixels", "frames", "file_size_bytes",
	"target_width", "target_height", "number_of_colors", "compression_level",
	"reduce_colors", "optimize_transparency", "undo_optimizations",
	"drop_frames_none", "drop_frames_n2", "drop_frames_n3", "drop_frames_n4",
}

// LoadBaseline reads a frozen model from disk.
func LoadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline model: %w", err)
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse baseline model: %w", err)
	}
	return &b, nil
}

func featureMap(f models.Features) map[string]float64 {
	return map[string]float64{
		"total_pixels":          f.TotalPixels,
		"target_pixels":         f.TargetPixels,
		"frames":                f.Frames,
		"file_size_bytes":       f.FileSizeBytes,
		"target_width":          f.TargetWidth,
		"target_height":         f.TargetHeight,
		"number_of_colors":      f.NumberOfColors,
		"compression_level":     f.CompressionLevel,
		"reduce_colors":         f.ReduceColors,
		"optimize_transparency": f.OptimizeTransparency,
		"undo_optimizations":    f.UndoOptimizations,
		"drop_frames_none":      f.DropFramesNone,
		"drop_frames_n2":        f.DropFramesN2,
		"drop_frames_n3":        f.DropFramesN3,
		"drop_frames_n4":        f.DropFramesN4,
	}
}

// Predict returns the baseline's log1p(seconds) estimate for f.
func (b *Baseline) Predict(f models.Features) float64 {
	values := featureMap(f)
	sum := b.Intercept

	for _, name := range featureOrder {
		scale := b.Scales[name]
		if scale == 0 {
			continue
		}
		standardized := (values[name] - b.Means[name]) / scale
		sum += b.Weights[name] * standardized
	}
	return sum
}

// FallbackEstimateSeconds is used when no baseline model could be
// loaded, per the spec's degrade-gracefully rule.
func FallbackEstimateSeconds(totalPixels float64) float64 {
	return math.Log1p(totalPixels*1e-7 + 0.5)
}

// BuildFeatures derives the model's flattened feature vector from a
// probed source and the job's frozen options.
func BuildFeatures(source models.ImageInfo, opts models.CompressionOptions, fileSize int64) models.Features {
	targetWidth, targetHeight := source.Width, source.Height
	if opts.ResizeEnabled {
		if opts.TargetWidth != nil {
			targetWidth = *opts.TargetWidth
		}
		if opts.TargetHeight != nil {
			targetHeight = *opts.TargetHeight
		}
	}

	numberOfColors := float64(opts.NumberOfColors)
	if !opts.ReduceColors {
		numberOfColors = 256
	}

	f := models.Features{
		TotalPixels:      float64(source.Frames * source.Width * source.Height),
		TargetPixels:     float64(source.Frames * targetWidth * targetHeight),
		Frames:           float64(source.Frames),
		FileSizeBytes:    float64(fileSize),
		TargetWidth:      float64(targetWidth),
		TargetHeight:     float64(targetHeight),
		NumberOfColors:   numberOfColors,
		CompressionLevel: float64(opts.CompressionLevel),

		ReduceColors:         boolToFloat(opts.ReduceColors),
		OptimizeTransparency: boolToFloat(opts.OptimizeTransparency),
		UndoOptimizations:    boolToFloat(opts.UndoOptimizations),
	}

	switch opts.DropFrames {
	case models.DropFramesN2:
		f.DropFramesN2 = 1
	case models.DropFramesN3:
		f.DropFramesN3 = 1
	case models.DropFramesN4:
		f.DropFramesN4 = 1
	default:
		f.DropFramesNone = 1
	}

	return f
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
