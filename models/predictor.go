package models

import "time"

// ImageInfo is the probed shape of a source or output artifact.
type ImageInfo struct {
	Width  int
	Height int
	Frames int
	Size   int64
}

// Features is the flattened input to the frozen baseline model. The
// baseline looks each field up by its feature name in baseline.json, so
// the names must match; the field order does not matter.
type Features struct {
	TotalPixels      float64
	TargetPixels     float64
	Frames           float64
	FileSizeBytes    float64
	TargetWidth      float64
	TargetHeight     float64
	NumberOfColors   float64
	CompressionLevel float64

	ReduceColors         float64 // 0/1
	OptimizeTransparency float64 // 0/1
	UndoOptimizations    float64 // 0/1

	DropFramesNone float64 // one-hot
	DropFramesN2   float64
	DropFramesN3   float64
	DropFramesN4   float64
}

// PredictionSample is an append-only (features, observed elapsed) record
// kept for future baseline retraining.
type PredictionSample struct {
	ID         int64     `db:"id"`
	JobID      string    `db:"job_id"`
	Features   Features  `db:"-"`
	FeaturesJSON string  `db:"features_json"`
	ActualMs   int64     `db:"actual_ms"`
	CreatedAt  time.Time `db:"created_at"`
}

// ResidualEntry is the learned EMA correction for one coarse bucket key.
type ResidualEntry struct {
	Key       string    `db:"key"`
	EMA       float64   `db:"ema"`
	Count     int       `db:"count"`
	UpdatedAt time.Time `db:"updated_at"`
}

// UsableForPrediction reports whether this key has enough samples to be
// trusted at inference time.
func (r ResidualEntry) UsableForPrediction() bool {
	return r.Count >= 3
}
