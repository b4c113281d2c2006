package models

// JobStatusEvent is published on job-status/<jobID> on every progress tick
// and state transition.
type JobStatusEvent struct {
	JobID            string   `json:"jobId"`
	Status           Status   `json:"status"`
	Progress         int      `json:"progress"`
	CompressedSize   *int64   `json:"compressed_size,omitempty"`
	CompressedWidth  *int     `json:"compressed_width,omitempty"`
	CompressedHeight *int     `json:"compressed_height,omitempty"`
	ReductionPercent *float64 `json:"reduction_percent,omitempty"`
	ErrorMessage     *string  `json:"error_message,omitempty"`
}

// IsTerminal reports whether this event reflects a final job state, used
// by the event bus to decide whether delivery must be guaranteed.
func (e JobStatusEvent) IsTerminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusFailed
}

// QueueStatusEvent is published on queue-status whenever the worker pool's
// shape changes.
type QueueStatusEvent struct {
	Concurrency int `json:"concurrency"`
	Active      int `json:"active"`
	Pending     int `json:"pending"`
}
