package reaper

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gifcompress/artifacts"
	"gifcompress/models"
	"gifcompress/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestReaper(t *testing.T, staleAfter time.Duration) (*Reaper, *store.Store, *artifacts.Store) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "reaper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	arts, err := artifacts.New(t.TempDir(), t.TempDir())
	require.NoError(t, err)

	r := New(db, arts, testLogger(), time.Minute, staleAfter)
	return r, db, arts
}

func TestReapExpiredDeletesArtifactsAndRecord(t *testing.T) {
	r, db, arts := newTestReaper(t, time.Hour)
	ctx := context.Background()

	originalPath, _, err := arts.PutOriginal(".gif", strings.NewReader("original"))
	require.NoError(t, err)

	compressedPath := arts.PutCompressed(".gif")
	require.NoError(t, os.WriteFile(compressedPath, []byte("compressed"), 0o644))

	past := time.Now().Add(-time.Minute)
	job := &models.Job{
		ID: "expired-job", Status: models.StatusCompleted,
		OriginalFilename: "clip.gif", OriginalPath: originalPath,
		CompressedPath: &compressedPath,
		Options:        models.DefaultCompressionOptions(),
		CreatedAt:      time.Now().UTC(), ExpiresAt: &past,
	}
	require.NoError(t, db.Create(ctx, job))

	r.reapExpired(ctx)

	_, err = db.Get(ctx, "expired-job")
	assert.Error(t, err)

	_, statErr := os.Stat(originalPath)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(compressedPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReapExpiredLeavesUnexpiredJobsAlone(t *testing.T) {
	r, db, arts := newTestReaper(t, time.Hour)
	ctx := context.Background()

	originalPath, _, err := arts.PutOriginal(".gif", strings.NewReader("original"))
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	job := &models.Job{
		ID: "fresh-job", Status: models.StatusCompleted,
		OriginalFilename: "clip.gif", OriginalPath: originalPath,
		Options: models.DefaultCompressionOptions(), CreatedAt: time.Now().UTC(), ExpiresAt: &future,
	}
	require.NoError(t, db.Create(ctx, job))

	r.reapExpired(ctx)

	got, err := db.Get(ctx, "fresh-job")
	require.NoError(t, err)
	assert.Equal(t, "fresh-job", got.ID)
}

func TestReapStaleFailsOldQueuedAndUploadingJobs(t *testing.T) {
	r, db, _ := newTestReaper(t, time.Minute)
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	stale := &models.Job{
		ID: "stale-job", Status: models.StatusQueued,
		OriginalFilename: "clip.gif", OriginalPath: "/tmp/clip.gif",
		Options: models.DefaultCompressionOptions(), CreatedAt: old,
	}
	require.NoError(t, db.Create(ctx, stale))

	fresh := &models.Job{
		ID: "fresh-queued-job", Status: models.StatusQueued,
		OriginalFilename: "clip.gif", OriginalPath: "/tmp/clip.gif",
		Options: models.DefaultCompressionOptions(), CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(ctx, fresh))

	r.reapStale(ctx)

	got, err := db.Get(ctx, "stale-job")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "stale", *got.ErrorMessage)

	untouched, err := db.Get(ctx, "fresh-queued-job")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, untouched.Status)
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	r, _, _ := newTestReaper(t, time.Hour)
	r.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

