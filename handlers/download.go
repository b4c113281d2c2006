package handlers

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/klauspost/compress/flate"

	"gifcompress/logging"
	"gifcompress/models"
	"gifcompress/optimization"
)

// DownloadCompressed streams a completed job's compressed artifact.
func (h *Handlers) DownloadCompressed(c *fiber.Ctx) error {
	job, err := h.store.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if job.CompressedPath == nil {
		return logging.ErrNotFound("compressed artifact", job.ID)
	}

	f, err := h.artifacts.Open(*job.CompressedPath)
	if err != nil {
		return err
	}
	defer f.Close()

	base := strings.TrimSuffix(job.OriginalFilename, filepath.Ext(job.OriginalFilename))
	ext := filepath.Ext(*job.CompressedPath)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s-compressed%s"`, base, ext))

	return c.SendStream(f)
}

// DownloadOriginal streams a job's original upload inline.
func (h *Handlers) DownloadOriginal(c *fiber.Ctx) error {
	job, err := h.store.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	f, err := h.artifacts.Open(job.OriginalPath)
	if err != nil {
		return err
	}
	defer f.Close()

	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s"`, job.OriginalFilename))
	return c.SendStream(f)
}

// DownloadZipArchive streams a ZIP of every completed job among the
// requested IDs, using klauspost's flate compressor at the configured
// level. Duplicate archive names are disambiguated with -1, -2, ….
func (h *Handlers) DownloadZipArchive(c *fiber.Ctx) error {
	ctx := c.UserContext()
	idsParam := c.Query("ids")
	if idsParam == "" {
		return logging.ErrValidation("ids query parameter is required")
	}
	ids := strings.Split(idsParam, ",")

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="compressed-gifs-%s.zip"`, time.Now().UTC().Format("2006-01-02")))

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		h.writeZipArchive(ctx, w, ids)
	})
	return nil
}

// writeZipArchive builds the archive entry-by-entry, skipping any job
// that isn't completed or whose artifact has since been reaped —
// best-effort, since a partial archive beats a failed whole-request.
func (h *Handlers) writeZipArchive(ctx context.Context, w io.Writer, ids []string) {
	zw := zip.NewWriter(w)
	defer zw.Close()

	level := h.config.ZipCompressionLevel
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	used := make(map[string]int)
	buf, release := optimization.GetGlobalPools().GetBuffer(256 * 1024)
	defer release()

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		job, err := h.store.Get(ctx, id)
		if err != nil || job.Status != models.StatusCompleted || job.CompressedPath == nil {
			continue
		}

		f, err := h.artifacts.Open(*job.CompressedPath)
		if err != nil {
			continue
		}

		name := archiveEntryName(*job, used)
		entry, err := zw.Create(name)
		if err != nil {
			f.Close()
			continue
		}
		io.CopyBuffer(entry, f, buf)
		f.Close()
	}
}

// archiveEntryName derives a ZIP entry name from a job's original
// filename, disambiguating repeats with -1, -2, ….
func archiveEntryName(job models.Job, used map[string]int) string {
	ext := filepath.Ext(job.OriginalFilename)
	base := strings.TrimSuffix(job.OriginalFilename, ext)
	name := base + "-compressed" + ext

	n, seen := used[name]
	used[name] = n + 1
	if !seen {
		return name
	}
	return fmt.Sprintf("%s-compressed-%d%s", base, n, ext)
}
