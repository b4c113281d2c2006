// Package artifacts is the local-disk blob store for job originals and
// compressed outputs: two flat directories, each file named by a fresh
// opaque ID.
package artifacts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"gifcompress/logging"
	"gifcompress/optimization"
)

// Store reads and writes artifact blobs under two base directories.
type Store struct {
	uploadDir string
	outputDir string
}

// New creates a Store, creating both base directories if absent.
func New(uploadDir, outputDir string) (*Store, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Store{uploadDir: uploadDir, outputDir: outputDir}, nil
}

// PutOriginal writes an uploaded file to the upload directory under a
// fresh ID, preserving ext, and returns the path and bytes written.
func (s *Store) PutOriginal(ext string, r io.Reader) (path string, size int64, err error) {
	id := uuid.New().String()
	path = filepath.Join(s.uploadDir, id+ext)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create original artifact: %w", err)
	}
	defer f.Close()

	buf, release := optimization.GetGlobalPools().GetBuffer(32 * 1024)
	defer release()

	n, err := io.CopyBuffer(f, r, buf)
	if err != nil {
		return "", 0, fmt.Errorf("write original artifact: %w", err)
	}
	return path, n, nil
}

// PutCompressed reserves a fresh output path under the output directory.
// Callers (the executor) write to it directly via the returned path.
func (s *Store) PutCompressed(ext string) (path string) {
	id := uuid.New().String()
	return filepath.Join(s.outputDir, id+ext)
}

// Open opens an artifact for reading. A missing file surfaces as a typed
// NotFound error so handlers can translate it to 404 uniformly.
func (s *Store) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, logging.ErrNotFound("artifact", path)
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}

// Size stats an artifact's size on disk.
func (s *Store) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, logging.ErrNotFound("artifact", path)
		}
		return 0, fmt.Errorf("stat artifact: %w", err)
	}
	return info.Size(), nil
}

// Delete removes an artifact. A missing file is not an error — the reaper
// calls this on records whose files may already be gone.
func (s *Store) Delete(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}
