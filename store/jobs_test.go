package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gifcompress/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestJob(id string) *models.Job {
	return &models.Job{
		ID:               id,
		Status:           models.StatusQueued,
		Progress:         0,
		OriginalFilename: "clip.gif",
		OriginalSize:     1024,
		OriginalPath:     "/data/uploads/" + id + ".gif",
		Options:          models.DefaultCompressionOptions(),
		CreatedAt:        time.Now().UTC(),
	}
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("job-1")
	require.NoError(t, s.Create(ctx, job))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.OriginalFilename, got.OriginalFilename)
	assert.Equal(t, models.StatusQueued, got.Status)
	assert.Equal(t, 30, got.Options.CompressionLevel)
}

func TestCreateDuplicateIDFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("dup")
	require.NoError(t, s.Create(ctx, job))

	err := s.Create(ctx, newTestJob("dup"))
	require.Error(t, err)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "does-not-exist")
	require.Error(t, err)
}

func TestUpdatePartialPatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("patch-me")
	require.NoError(t, s.Create(ctx, job))

	progress := 42
	require.NoError(t, s.Update(ctx, "patch-me", JobPatch{Progress: &progress}))

	got, err := s.Get(ctx, "patch-me")
	require.NoError(t, err)
	assert.Equal(t, 42, got.Progress)
	assert.Equal(t, models.StatusQueued, got.Status) // untouched field survives
}

func TestUpdateCanClearToNull(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := newTestJob("clear-me")
	errMsg := "boom"
	job.ErrorMessage = &errMsg
	job.Status = models.StatusFailed
	require.NoError(t, s.Create(ctx, job))

	status := models.StatusQueued
	var nilErr *string
	require.NoError(t, s.Update(ctx, "clear-me", JobPatch{
		Status:       &status,
		ErrorMessage: ptrToNilable(nilErr),
	}))

	got, err := s.Get(ctx, "clear-me")
	require.NoError(t, err)
	assert.Nil(t, got.ErrorMessage)
	assert.Equal(t, models.StatusQueued, got.Status)
}

func ptrToNilable(v *string) **string { return &v }

func TestUpdateMissingIDIsNoop(t *testing.T) {
	s := newTestStore(t)
	progress := 5
	err := s.Update(context.Background(), "ghost", JobPatch{Progress: &progress})
	assert.NoError(t, err)
}

func TestDeleteReportsExistence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTestJob("del-me")))

	ok, err := s.Delete(ctx, "del-me")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, "del-me")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListFiltersByStatusAndPaginates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		j := newTestJob(listJobID(i))
		if i == 2 {
			j.Status = models.StatusFailed
		}
		require.NoError(t, s.Create(ctx, j))
	}

	jobs, total, err := s.List(ctx, models.ListFilters{
		Status: []models.Status{models.StatusQueued},
		Limit:  1,
		Offset: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, jobs, 1)
}

func listJobID(i int) string {
	return "list-job-" + string(rune('a'+i))
}

func TestCountsTalliesByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTestJob("c1")))
	failed := newTestJob("c2")
	failed.Status = models.StatusFailed
	require.NoError(t, s.Create(ctx, failed))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.All)
	assert.Equal(t, 1, counts.Queued)
	assert.Equal(t, 1, counts.Failed)
}

func TestExpiredReturnsOnlyPastExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expiredJob := newTestJob("expired")
	expiredJob.ExpiresAt = &past
	require.NoError(t, s.Create(ctx, expiredJob))

	freshJob := newTestJob("fresh")
	freshJob.ExpiresAt = &future
	require.NoError(t, s.Create(ctx, freshJob))

	expired, err := s.Expired(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "expired", expired[0].ID)
}

func TestStaleProcessingFiltersByStatusAndCutoff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stale := newTestJob("stale")
	stale.Status = models.StatusProcessing
	require.NoError(t, s.Create(ctx, stale))

	rows, err := s.StaleProcessing(ctx, []models.Status{models.StatusProcessing}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "stale", rows[0].ID)

	rows, err = s.StaleProcessing(ctx, []models.Status{models.StatusProcessing}, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
