// Package models defines the domain types shared across every layer of the
// job control plane: the job record, its frozen compression options, and
// the predictor's training/residual records.
package models

import "time"

// Status is a job's lifecycle state.
type Status string

const (
	StatusUploading Status = "uploading"
	StatusQueued    Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// DropFrames selects which animation frames survive compression.
type DropFrames string

const (
	DropFramesNone DropFrames = "none"
	DropFramesN2   DropFrames = "n2"
	DropFramesN3   DropFrames = "n3"
	DropFramesN4   DropFrames = "n4"
)

// CompressionOptions is frozen on the job at admission and never mutated
// afterward, including across a retry.
type CompressionOptions struct {
	CompressionLevel     int        `json:"compression_level" db:"compression_level" validate:"min=1,max=200"`
	DropFrames           DropFrames `json:"drop_frames" db:"drop_frames" validate:"oneof=none n2 n3 n4"`
	ReduceColors         bool       `json:"reduce_colors" db:"reduce_colors"`
	NumberOfColors       int        `json:"number_of_colors" db:"number_of_colors" validate:"omitempty,min=2,max=256"`
	OptimizeTransparency bool       `json:"optimize_transparency" db:"optimize_transparency"`
	UndoOptimizations    bool       `json:"undo_optimizations" db:"undo_optimizations"`
	ResizeEnabled        bool       `json:"resize_enabled" db:"resize_enabled"`
	TargetWidth          *int       `json:"target_width,omitempty" db:"target_width" validate:"omitempty,min=1"`
	TargetHeight         *int       `json:"target_height,omitempty" db:"target_height" validate:"omitempty,min=1"`
}

// DefaultCompressionOptions mirrors the values the upload form pre-fills.
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		CompressionLevel: 30,
		DropFrames:       DropFramesNone,
		NumberOfColors:   256,
	}
}

// Job is the primary entity: one compression task from admission through
// terminal state.
type Job struct {
	ID        string  `json:"id" db:"id"`
	SessionID *string `json:"session_id,omitempty" db:"session_id"`
	Status    Status  `json:"status" db:"status"`
	Progress  int     `json:"progress" db:"progress"`

	OriginalFilename string  `json:"original_filename" db:"original_filename"`
	OriginalSize     int64   `json:"original_size" db:"original_size"`
	OriginalPath     string  `json:"original_path" db:"original_path"`
	OriginalWidth    *int    `json:"original_width,omitempty" db:"original_width"`
	OriginalHeight   *int    `json:"original_height,omitempty" db:"original_height"`

	Options CompressionOptions `json:"options"`

	CompressedPath      *string  `json:"compressed_path,omitempty" db:"compressed_path"`
	CompressedSize      *int64   `json:"compressed_size,omitempty" db:"compressed_size"`
	CompressedWidth     *int     `json:"compressed_width,omitempty" db:"compressed_width"`
	CompressedHeight    *int     `json:"compressed_height,omitempty" db:"compressed_height"`
	ReductionPercent    *float64 `json:"reduction_percent,omitempty" db:"reduction_percent"`

	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
}

// IsTerminal reports whether the job has reached completed or failed.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// IsQueuedOrProcessing reports membership in the worker pool, per the
// invariant that a job is pool-resident iff queued or processing.
func (j *Job) IsQueuedOrProcessing() bool {
	return j.Status == StatusQueued || j.Status == StatusProcessing
}

// StatusCounts is the response shape for the per-status job tally.
type StatusCounts struct {
	All        int `json:"all"`
	Uploading  int `json:"uploading"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// ListFilters narrows a job listing; zero values mean "no filter."
type ListFilters struct {
	Status     []Status
	AllStatus  bool
	SessionID  string
	Filename   string
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}
