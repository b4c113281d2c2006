package handlers

import (
	"encoding/json"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"gifcompress/logging"
	"gifcompress/models"
)

type uploadedJobRef struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

type uploadError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// Upload admits one or more animated-image files: each part is sniffed,
// size-checked, written to the artifact store, recorded as a `queued`
// job, then submitted to the worker pool. A per-file failure never aborts
// the rest of the batch; only a batch where every file failed returns 400.
func (h *Handlers) Upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return logging.ErrValidation("failed to parse multipart form").WithCause(err)
	}

	files := form.File["files"]
	if len(files) == 0 {
		return logging.ErrValidation("no files provided")
	}

	globalOptions := models.DefaultCompressionOptions()
	if raw := c.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &globalOptions); err != nil {
			return logging.ErrValidation("malformed options field").WithCause(err)
		}
	}

	perFileOptions := map[string]models.CompressionOptions{}
	if raw := c.FormValue("perFileOptions"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &perFileOptions); err != nil {
			return logging.ErrValidation("malformed perFileOptions field").WithCause(err)
		}
	}

	var sessionID *string
	if sid := c.FormValue("sessionId"); sid != "" {
		sessionID = &sid
	}

	jobs := make([]uploadedJobRef, 0, len(files))
	errs := make([]uploadError, 0)

	for _, fh := range files {
		opts := globalOptions
		if override, ok := perFileOptions[fh.Filename]; ok {
			opts = override
		}

		jobID, err := h.admitFile(c, fh, opts, sessionID)
		if err != nil {
			errs = append(errs, uploadError{Filename: fh.Filename, Error: err.Error()})
			continue
		}
		jobs = append(jobs, uploadedJobRef{ID: jobID, Filename: fh.Filename})
	}

	if len(jobs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs})
	}

	resp := fiber.Map{"jobs": jobs}
	if len(errs) > 0 {
		resp["errors"] = errs
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// admitFile performs one file's full admission: size check, MIME sniff,
// artifact write, job record, and pool submission. Returns the new job's
// ID on success.
func (h *Handlers) admitFile(c *fiber.Ctx, fh *multipart.FileHeader, opts models.CompressionOptions, sessionID *string) (string, error) {
	if fh.Size > h.config.MaxUploadBytes {
		return "", logging.ErrValidation("file exceeds maximum upload size")
	}
	if _, err := sniffUploadedFile(fh); err != nil {
		return "", err
	}
	if err := h.validateOptions(opts); err != nil {
		return "", err
	}

	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	ext := filepath.Ext(fh.Filename)
	path, size, err := h.artifacts.PutOriginal(ext, f)
	if err != nil {
		return "", err
	}

	job := &models.Job{
		ID:               uuid.New().String(),
		SessionID:        sessionID,
		Status:           models.StatusQueued,
		Progress:         0,
		OriginalFilename: fh.Filename,
		OriginalSize:     size,
		OriginalPath:     path,
		Options:          opts,
		CreatedAt:        time.Now().UTC(),
	}

	if err := h.store.Create(c.UserContext(), job); err != nil {
		_ = h.artifacts.Delete(path)
		return "", err
	}

	if err := h.pool.Submit(job.ID); err != nil {
		return "", err
	}

	h.metrics.RecordUpload(size, 0)
	return job.ID, nil
}
