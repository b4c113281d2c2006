package workerpool

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gifcompress/artifacts"
	"gifcompress/eventbus"
	"gifcompress/executor"
	"gifcompress/models"
	"gifcompress/monitoring"
	"gifcompress/predictor"
	"gifcompress/store"
)

// fakeTool is a minimal executor.Tool double: every compression succeeds
// immediately with canned dimensions, so the pool's dispatch/execution
// logic is exercised without an installed gifsicle binary.
type fakeTool struct{}

func (fakeTool) Probe(_ context.Context, _ string) (models.ImageInfo, error) {
	return models.ImageInfo{Width: 100, Height: 100, Frames: 1, Size: 512}, nil
}

func (fakeTool) Run(_ context.Context, _ []string) (string, error) {
	return "", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPool(t *testing.T, defaultConcurrency, maxConcurrency int) (*Pool, *store.Store) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "pool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	arts, err := artifacts.New(t.TempDir(), t.TempDir())
	require.NoError(t, err)

	exec := executor.New(fakeTool{})
	pred := predictor.New(nil, db)
	bus := eventbus.New()
	monitoring.InitGlobalMonitoring()

	pool := New(Deps{
		Store:     db,
		Artifacts: arts,
		Executor:  exec,
		Predictor: pred,
		Bus:       bus,
		Metrics:   monitoring.GetMetricsCollector(),
		Logger:    testLogger(),
	}, defaultConcurrency, maxConcurrency, 0)

	return pool, db
}

func TestSetConcurrencyValidatesRange(t *testing.T) {
	pool, _ := newTestPool(t, 2, 5)

	assert.Error(t, pool.SetConcurrency(0))
	assert.Error(t, pool.SetConcurrency(6))
	assert.NoError(t, pool.SetConcurrency(3))

	concurrency, _, _ := pool.Status()
	assert.Equal(t, 3, concurrency)
}

func TestStartReconcilesInterruptedJobsAsFailed(t *testing.T) {
	pool, db := newTestPool(t, 1, 1)
	ctx := context.Background()

	stuck := &models.Job{
		ID:               "stuck-job",
		Status:           models.StatusProcessing,
		OriginalFilename: "clip.gif",
		OriginalPath:     "/tmp/clip.gif",
		Options:          models.DefaultCompressionOptions(),
		CreatedAt:        time.Now().Add(-time.Hour).UTC(),
	}
	require.NoError(t, db.Create(ctx, stuck))

	require.NoError(t, pool.Start(ctx))

	got, err := db.Get(ctx, "stuck-job")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "interrupted", *got.ErrorMessage)
}

func TestSubmitAndDispatchRunsJobToCompletion(t *testing.T) {
	pool, db := newTestPool(t, 1, 1)
	ctx := context.Background()

	job := &models.Job{
		ID:               "job-ok",
		Status:           models.StatusQueued,
		OriginalFilename: "clip.gif",
		OriginalSize:     1024,
		OriginalPath:     "/tmp/clip.gif",
		Options:          models.DefaultCompressionOptions(),
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, db.Create(ctx, job))
	require.NoError(t, pool.Start(ctx))
	require.NoError(t, pool.Submit(job.ID))

	require.Eventually(t, func() bool {
		got, err := db.Get(ctx, job.ID)
		return err == nil && got.Status == models.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	got, err := db.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.CompressedSize)
	assert.Equal(t, int64(512), *got.CompressedSize)
}

func TestSubmitProcessesTwoJobsUnderConcurrencyOne(t *testing.T) {
	pool, db := newTestPool(t, 1, 1)
	ctx := context.Background()

	for _, id := range []string{"job-a", "job-b"} {
		job := &models.Job{
			ID: id, Status: models.StatusQueued, OriginalFilename: "clip.gif",
			OriginalSize: 1024, OriginalPath: "/tmp/clip.gif",
			Options: models.DefaultCompressionOptions(), CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, db.Create(ctx, job))
	}

	require.NoError(t, pool.Start(ctx))
	require.NoError(t, pool.Submit("job-a"))
	require.NoError(t, pool.Submit("job-b"))

	require.Eventually(t, func() bool {
		a, errA := db.Get(ctx, "job-a")
		b, errB := db.Get(ctx, "job-b")
		return errA == nil && errB == nil &&
			a.Status == models.StatusCompleted && b.Status == models.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWaitBlocksUntilInFlightJobsFinish(t *testing.T) {
	pool, db := newTestPool(t, 1, 1)
	ctx := context.Background()

	job := &models.Job{
		ID: "wait-job", Status: models.StatusQueued, OriginalFilename: "clip.gif",
		OriginalSize: 1024, OriginalPath: "/tmp/clip.gif",
		Options: models.DefaultCompressionOptions(), CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(ctx, job))
	require.NoError(t, pool.Start(ctx))
	require.NoError(t, pool.Submit(job.ID))

	require.Eventually(t, func() bool {
		_, active, _ := pool.Status()
		return active == 1
	}, time.Second, time.Millisecond, "job never picked up by dispatch")

	waitReturned := make(chan struct{})
	go func() {
		pool.Wait()
		close(waitReturned)
	}()

	select {
	case <-waitReturned:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() never returned")
	}

	got, err := db.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}
