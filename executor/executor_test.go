package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gifcompress/models"
)

// fakeTool is a Tool double that records the args it was invoked with and
// returns canned Probe/Run results, so executor logic is exercised without
// an installed gifsicle binary.
type fakeTool struct {
	probeResult models.ImageInfo
	probeErr    error
	runStderr   string
	runErr      error
	lastArgs    []string
}

func (f *fakeTool) Probe(_ context.Context, _ string) (models.ImageInfo, error) {
	return f.probeResult, f.probeErr
}

func (f *fakeTool) Run(_ context.Context, args []string) (string, error) {
	f.lastArgs = args
	return f.runStderr, f.runErr
}

func intPtr(n int) *int { return &n }

func TestBuildArgsOrdersFlagsDeterministically(t *testing.T) {
	source := models.ImageInfo{Width: 800, Height: 600, Frames: 5}
	opts := models.CompressionOptions{
		CompressionLevel: 60,
		ReduceColors:     true,
		NumberOfColors:   32,
		ResizeEnabled:    true,
		TargetWidth:      intPtr(400),
		DropFrames:       models.DropFramesN2,
	}

	args := BuildArgs("in.gif", "out.gif", source, opts)

	assert.Equal(t, []string{
		"--lossy=60",
		"-O3",
		"--colors", "32",
		"--resize", "400x300",
		"in.gif",
		"#1", "#3",
		"--output", "out.gif",
	}, args)
}

func TestBuildArgsSkipsResizeWhenDisabled(t *testing.T) {
	source := models.ImageInfo{Width: 800, Height: 600, Frames: 1}
	opts := models.DefaultCompressionOptions()

	args := BuildArgs("in.gif", "out.gif", source, opts)

	for _, a := range args {
		assert.NotEqual(t, "--resize", a)
	}
}

func TestBuildArgsNeverUpscales(t *testing.T) {
	source := models.ImageInfo{Width: 100, Height: 100, Frames: 1}
	opts := models.DefaultCompressionOptions()
	opts.ResizeEnabled = true
	opts.TargetWidth = intPtr(500)

	args := BuildArgs("in.gif", "out.gif", source, opts)

	for _, a := range args {
		assert.NotEqual(t, "--resize", a)
	}
}

func TestRunReturnsResultOnSuccess(t *testing.T) {
	tool := &fakeTool{
		probeResult: models.ImageInfo{Width: 400, Height: 300, Frames: 3, Size: 2048},
	}
	e := New(tool)

	result, err := e.Run(context.Background(), "in.gif", "out.gif",
		models.ImageInfo{Width: 800, Height: 600, Frames: 3}, models.DefaultCompressionOptions())

	require.NoError(t, err)
	assert.Equal(t, "out.gif", result.CompressedPath)
	assert.Equal(t, int64(2048), result.CompressedSize)
	assert.Equal(t, 400, result.CompressedWidth)
	assert.Equal(t, 300, result.CompressedHeight)
}

func TestRunSurfacesToolFailureWithStderr(t *testing.T) {
	tool := &fakeTool{runErr: errors.New("exit status 1"), runStderr: "gifsicle: error, too many colors"}
	e := New(tool)

	_, err := e.Run(context.Background(), "in.gif", "out.gif", models.ImageInfo{Width: 10, Height: 10, Frames: 1}, models.DefaultCompressionOptions())
	require.Error(t, err)
}

func TestRunTreatsEmptyOutputAsMissing(t *testing.T) {
	tool := &fakeTool{probeResult: models.ImageInfo{Size: 0}}
	e := New(tool)

	_, err := e.Run(context.Background(), "in.gif", "out.gif", models.ImageInfo{Width: 10, Height: 10, Frames: 1}, models.DefaultCompressionOptions())
	require.Error(t, err)
}

func TestParseProbeOutputDegradesOnUnmatchedText(t *testing.T) {
	w, h, frames := parseProbeOutput([]byte("not a gifsicle info blob"))
	assert.Equal(t, 0, w)
	assert.Equal(t, 0, h)
	assert.Equal(t, 1, frames)
}

func TestParseProbeOutputExtractsScreenAndFrameCount(t *testing.T) {
	w, h, frames := parseProbeOutput([]byte("logical screen 320x240\n12 images\n"))
	assert.Equal(t, 320, w)
	assert.Equal(t, 240, h)
	assert.Equal(t, 12, frames)
}
