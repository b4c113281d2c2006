package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminalForEveryStatus(t *testing.T) {
	cases := []struct {
		status   Status
		terminal bool
	}{
		{StatusUploading, false},
		{StatusQueued, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tc := range cases {
		job := Job{Status: tc.status}
		assert.Equal(t, tc.terminal, job.IsTerminal(), "status %s", tc.status)
	}
}

func TestIsQueuedOrProcessingForEveryStatus(t *testing.T) {
	cases := []struct {
		status Status
		pool   bool
	}{
		{StatusUploading, false},
		{StatusQueued, true},
		{StatusProcessing, true},
		{StatusCompleted, false},
		{StatusFailed, false},
	}

	for _, tc := range cases {
		job := Job{Status: tc.status}
		assert.Equal(t, tc.pool, job.IsQueuedOrProcessing(), "status %s", tc.status)
	}
}

func TestIsTerminalAndIsQueuedOrProcessingAreMutuallyExclusive(t *testing.T) {
	for _, status := range []Status{StatusUploading, StatusQueued, StatusProcessing, StatusCompleted, StatusFailed} {
		job := Job{Status: status}
		assert.False(t, job.IsTerminal() && job.IsQueuedOrProcessing(), "status %s claims both", status)
	}
}

func TestDefaultCompressionOptions(t *testing.T) {
	opts := DefaultCompressionOptions()

	assert.Equal(t, 30, opts.CompressionLevel)
	assert.Equal(t, DropFramesNone, opts.DropFrames)
	assert.Equal(t, 256, opts.NumberOfColors)
	assert.False(t, opts.ReduceColors)
	assert.False(t, opts.ResizeEnabled)
	assert.Nil(t, opts.TargetWidth)
	assert.Nil(t, opts.TargetHeight)
}
