package predictor

import "gifcompress/models"

const (
	residualAlpha = 0.3
	residualClamp = 0.5
	minSamples    = 3
)

// BucketKeys returns the coarse categorical keys a job is filed under for
// residual lookup and update.
func BucketKeys(f models.Features, opts models.CompressionOptions) []string {
	keys := make([]string, 0, 6)

	keys = append(keys, "size_group="+sizeGroup(f.TargetPixels))
	keys = append(keys, "optimize_transparency="+boolKey(opts.OptimizeTransparency))
	keys = append(keys, "reduce_colors="+boolKey(opts.ReduceColors))
	keys = append(keys, "undo_optimizations="+boolKey(opts.UndoOptimizations))
	keys = append(keys, "drop_frames="+string(opts.DropFrames))
	keys = append(keys, "compression_bucket="+compressionBucket(opts.CompressionLevel))

	return keys
}

func sizeGroup(targetPixels float64) string {
	switch {
	case targetPixels < 2e5:
		return "xs"
	case targetPixels < 1e6:
		return "s"
	case targetPixels < 4e6:
		return "m"
	default:
		return "l"
	}
}

func compressionBucket(level int) string {
	switch {
	case level <= 0:
		return "none"
	case level < 50:
		return "low"
	case level < 100:
		return "medium"
	default:
		return "high"
	}
}

func boolKey(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// UpdateEMA applies the residual update rule: the first observation for a
// key becomes the EMA outright; subsequent ones blend at residualAlpha.
func UpdateEMA(prior *models.ResidualEntry, residual float64) (ema float64, count int) {
	if prior == nil {
		return residual, 1
	}
	return residualAlpha*residual + (1-residualAlpha)*prior.EMA, prior.Count + 1
}

// AverageActiveResidual averages the EMA of usable (count>=minSamples)
// entries among keys, clamped to ±residualClamp log-seconds. Returns 0
// when no entry is usable.
func AverageActiveResidual(entries map[string]models.ResidualEntry, keys []string) float64 {
	var sum float64
	var n int

	for _, key := range keys {
		entry, ok := entries[key]
		if !ok || !entry.UsableForPrediction() {
			continue
		}
		sum += entry.EMA
		n++
	}

	if n == 0 {
		return 0
	}

	avg := sum / float64(n)
	if avg > residualClamp {
		avg = residualClamp
	}
	if avg < -residualClamp {
		avg = -residualClamp
	}
	return avg
}
