// Package executor builds gifsicle-compatible argument lists from a job's
// compression options, invokes the external tool, and probes its output.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"regexp"
	"strconv"

	"gifcompress/logging"
	"gifcompress/models"
)

const maxStderrCapture = 8 * 1024

// Tool is the black-box compression binary. Production wiring uses
// BinaryTool; tests substitute a fake that copies input to output and
// prints canned probe text, so executor logic is tested without
// installing gifsicle.
type Tool interface {
	// Probe runs the tool's info mode against path and parses dimensions
	// and frame count from its textual output.
	Probe(ctx context.Context, path string) (models.ImageInfo, error)
	// Run invokes the tool with args and returns captured stderr on
	// failure.
	Run(ctx context.Context, args []string) (stderr string, err error)
}

// Executor drives a Tool through the deterministic argument-building and
// result-probing rules.
type Executor struct {
	tool Tool
}

func New(tool Tool) *Executor {
	return &Executor{tool: tool}
}

// ProbeSource probes an input artifact before compression, so the worker
// pool can build the feature vector and resize arithmetic off real
// dimensions.
func (e *Executor) ProbeSource(ctx context.Context, path string) (models.ImageInfo, error) {
	return e.tool.Probe(ctx, path)
}

// Result is what a successful compression produced.
type Result struct {
	CompressedPath   string
	CompressedSize   int64
	CompressedWidth  int
	CompressedHeight int
}

// Run builds arguments for options against the probed source, invokes the
// tool, and on success re-probes the output for its final shape.
func (e *Executor) Run(ctx context.Context, inputPath, outputPath string, source models.ImageInfo, opts models.CompressionOptions) (*Result, error) {
	args := BuildArgs(inputPath, outputPath, source, opts)

	stderr, err := e.tool.Run(ctx, args)
	if err != nil {
		if len(stderr) > maxStderrCapture {
			stderr = stderr[:maxStderrCapture]
		}
		return nil, logging.ErrToolFailed("gifsicle", err).WithContext("stderr", stderr)
	}

	info, err := e.tool.Probe(ctx, outputPath)
	if err != nil {
		return nil, logging.ErrOutputMissing(outputPath).WithCause(err)
	}
	if info.Size == 0 {
		return nil, logging.ErrOutputMissing(outputPath)
	}

	return &Result{
		CompressedPath:   outputPath,
		CompressedSize:   info.Size,
		CompressedWidth:  info.Width,
		CompressedHeight: info.Height,
	}, nil
}

// BuildArgs constructs the tool's argument list in the exact order the
// option surface requires.
func BuildArgs(inputPath, outputPath string, source models.ImageInfo, opts models.CompressionOptions) []string {
	args := make([]string, 0, 16)

	// 1. Lossy flag with compression_level.
	args = append(args, "--lossy="+strconv.Itoa(opts.CompressionLevel))

	// 2. Max-optimization flag.
	args = append(args, "-O3")

	// 3. Undo optimizations.
	if opts.UndoOptimizations {
		args = append(args, "--unoptimize")
	}

	// 4. Color reduction.
	if opts.ReduceColors && opts.NumberOfColors < 256 {
		args = append(args, "--colors", strconv.Itoa(opts.NumberOfColors))
	}

	// 5. Resize.
	if w, h, ok := resizeDimensions(source, opts); ok {
		args = append(args, "--resize", fmt.Sprintf("%dx%d", w, h))
	}

	// 6. Input path, before frame selectors.
	args = append(args, inputPath)

	// 7. Frame drop selectors.
	if step, ok := dropFramesStep(opts.DropFrames); ok {
		for i := step - 1; i < source.Frames; i += step {
			args = append(args, "#"+strconv.Itoa(i))
		}
	}

	// 8. Output path.
	args = append(args, "--output", outputPath)

	return args
}

// resizeDimensions computes the best-fit, never-upscaling target
// dimensions per the spec's scale rules. ok is false when resize does not
// apply (disabled, no target dimensions, or computed scale is 1).
func resizeDimensions(source models.ImageInfo, opts models.CompressionOptions) (width, height int, ok bool) {
	if !opts.ResizeEnabled {
		return 0, 0, false
	}
	if opts.TargetWidth == nil && opts.TargetHeight == nil {
		return 0, 0, false
	}
	if source.Width <= 0 || source.Height <= 0 {
		return 0, 0, false
	}

	switch {
	case opts.TargetWidth != nil && opts.TargetHeight != nil:
		scale := math.Min(
			float64(*opts.TargetWidth)/float64(source.Width),
			float64(*opts.TargetHeight)/float64(source.Height),
		)
		if scale > 1 {
			scale = 1
		}
		if scale == 1 {
			return 0, 0, false
		}
		return round(float64(source.Width) * scale), round(float64(source.Height) * scale), true

	case opts.TargetWidth != nil:
		if *opts.TargetWidth >= source.Width {
			return 0, 0, false
		}
		scale := float64(*opts.TargetWidth) / float64(source.Width)
		return *opts.TargetWidth, round(float64(source.Height) * scale), true

	case opts.TargetHeight != nil:
		if *opts.TargetHeight >= source.Height {
			return 0, 0, false
		}
		scale := float64(*opts.TargetHeight) / float64(source.Height)
		return round(float64(source.Width) * scale), *opts.TargetHeight, true
	}

	return 0, 0, false
}

func round(f float64) int {
	return int(math.Round(f))
}

// dropFramesStep returns the N in "keep every Nth frame" and whether
// dropping applies at all.
func dropFramesStep(d models.DropFrames) (int, bool) {
	switch d {
	case models.DropFramesN2:
		return 2, true
	case models.DropFramesN3:
		return 3, true
	case models.DropFramesN4:
		return 4, true
	default:
		return 0, false
	}
}

var (
	screenPattern = regexp.MustCompile(`logical screen (\d+)x(\d+)`)
	framesPattern = regexp.MustCompile(`(\d+) images?`)
)

// parseProbeOutput extracts (width, height, frames) from the tool's info
// stdout, degrading to (0, 0, 1) when the patterns don't match.
func parseProbeOutput(stdout []byte) (width, height, frames int) {
	frames = 1

	if m := screenPattern.FindSubmatch(stdout); len(m) == 3 {
		width, _ = strconv.Atoi(string(m[1]))
		height, _ = strconv.Atoi(string(m[2]))
	}
	if m := framesPattern.FindSubmatch(stdout); len(m) == 2 {
		if n, err := strconv.Atoi(string(m[1])); err == nil && n > 0 {
			frames = n
		}
	}
	return width, height, frames
}

// BinaryTool invokes a real gifsicle-compatible binary on $PATH or at a
// configured path.
type BinaryTool struct {
	BinaryPath string
}

func NewBinaryTool(binaryPath string) *BinaryTool {
	return &BinaryTool{BinaryPath: binaryPath}
}

func (t *BinaryTool) Probe(ctx context.Context, path string) (models.ImageInfo, error) {
	cmd := exec.CommandContext(ctx, t.BinaryPath, "--info", path)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	size, sizeErr := fileSize(path)

	if err := cmd.Run(); err != nil {
		return models.ImageInfo{Width: 0, Height: 0, Frames: 1, Size: size}, nil
	}
	if sizeErr != nil {
		size = 0
	}

	width, height, frames := parseProbeOutput(stdout.Bytes())
	return models.ImageInfo{Width: width, Height: height, Frames: frames, Size: size}, nil
}

func (t *BinaryTool) Run(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, t.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stderr.String(), err
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
