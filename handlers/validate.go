package handlers

import (
	"fmt"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"

	"gifcompress/logging"
	"gifcompress/models"
)

// allowedContentTypes is the set of animated formats the external tool
// accepts.
var allowedContentTypes = map[string]bool{
	"image/gif":  true,
	"image/webp": true,
}

// validateOptions runs struct-tag validation over a CompressionOptions
// and layers on the cross-field rules the tags can't express: at least one
// target dimension when resize is enabled, and a color count when
// reduce_colors is set.
func (h *Handlers) validateOptions(opts models.CompressionOptions) error {
	if err := h.validate.Struct(opts); err != nil {
		return logging.ErrValidation(err.Error())
	}
	if opts.ResizeEnabled && opts.TargetWidth == nil && opts.TargetHeight == nil {
		return logging.ErrValidation("resize_enabled requires target_width or target_height")
	}
	if opts.ReduceColors && opts.NumberOfColors == 0 {
		return logging.ErrValidation("reduce_colors requires number_of_colors")
	}
	return nil
}

// sniffUploadedFile validates a single multipart part's content by
// sniffing its actual bytes rather than trusting the client-declared
// Content-Type header, rejecting anything that isn't an animated GIF or
// WebP. Returns the detected MIME string on success.
func sniffUploadedFile(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open uploaded part %q: %w", fh.Filename, err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("sniff uploaded part %q: %w", fh.Filename, err)
	}

	detected := mtype.String()
	if !allowedContentTypes[detected] {
		return detected, logging.ErrValidation(
			fmt.Sprintf("%s: unsupported content type %s (expected image/gif or image/webp)", fh.Filename, detected),
		)
	}
	return detected, nil
}
