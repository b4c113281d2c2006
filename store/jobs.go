package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"gifcompress/logging"
	"gifcompress/models"
)

// jobRow mirrors the jobs table layout for sqlx scanning; Job's nested
// CompressionOptions is flattened here and reassembled in toModel.
type jobRow struct {
	ID        string  `db:"id"`
	SessionID *string `db:"session_id"`
	Status    string  `db:"status"`
	Progress  int     `db:"progress"`

	OriginalFilename string `db:"original_filename"`
	OriginalSize     int64  `db:"original_size"`
	OriginalPath     string `db:"original_path"`
	OriginalWidth    *int   `db:"original_width"`
	OriginalHeight   *int   `db:"original_height"`

	CompressionLevel     int    `db:"compression_level"`
	DropFrames           string `db:"drop_frames"`
	ReduceColors         bool   `db:"reduce_colors"`
	NumberOfColors       int    `db:"number_of_colors"`
	OptimizeTransparency bool   `db:"optimize_transparency"`
	UndoOptimizations    bool   `db:"undo_optimizations"`
	ResizeEnabled        bool   `db:"resize_enabled"`
	TargetWidth          *int   `db:"target_width"`
	TargetHeight         *int   `db:"target_height"`

	CompressedPath   *string  `db:"compressed_path"`
	CompressedSize   *int64   `db:"compressed_size"`
	CompressedWidth  *int     `db:"compressed_width"`
	CompressedHeight *int     `db:"compressed_height"`
	ReductionPercent *float64 `db:"reduction_percent"`

	CreatedAt    time.Time  `db:"created_at"`
	StartedAt    *time.Time `db:"started_at"`
	CompletedAt  *time.Time `db:"completed_at"`
	ExpiresAt    *time.Time `db:"expires_at"`
	ErrorMessage *string    `db:"error_message"`
}

func (r jobRow) toModel() models.Job {
	return models.Job{
		ID:               r.ID,
		SessionID:        r.SessionID,
		Status:           models.Status(r.Status),
		Progress:         r.Progress,
		OriginalFilename: r.OriginalFilename,
		OriginalSize:     r.OriginalSize,
		OriginalPath:     r.OriginalPath,
		OriginalWidth:    r.OriginalWidth,
		OriginalHeight:   r.OriginalHeight,
		Options: models.CompressionOptions{
			CompressionLevel:     r.CompressionLevel,
			DropFrames:           models.DropFrames(r.DropFrames),
			ReduceColors:         r.ReduceColors,
			NumberOfColors:       r.NumberOfColors,
			OptimizeTransparency: r.OptimizeTransparency,
			UndoOptimizations:    r.UndoOptimizations,
			ResizeEnabled:        r.ResizeEnabled,
			TargetWidth:          r.TargetWidth,
			TargetHeight:         r.TargetHeight,
		},
		CompressedPath:   r.CompressedPath,
		CompressedSize:   r.CompressedSize,
		CompressedWidth:  r.CompressedWidth,
		CompressedHeight: r.CompressedHeight,
		ReductionPercent: r.ReductionPercent,
		CreatedAt:        r.CreatedAt,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
		ExpiresAt:        r.ExpiresAt,
		ErrorMessage:     r.ErrorMessage,
	}
}

func fromModel(j *models.Job) jobRow {
	return jobRow{
		ID:                   j.ID,
		SessionID:            j.SessionID,
		Status:               string(j.Status),
		Progress:             j.Progress,
		OriginalFilename:     j.OriginalFilename,
		OriginalSize:         j.OriginalSize,
		OriginalPath:         j.OriginalPath,
		OriginalWidth:        j.OriginalWidth,
		OriginalHeight:       j.OriginalHeight,
		CompressionLevel:     j.Options.CompressionLevel,
		DropFrames:           string(j.Options.DropFrames),
		ReduceColors:         j.Options.ReduceColors,
		NumberOfColors:       j.Options.NumberOfColors,
		OptimizeTransparency: j.Options.OptimizeTransparency,
		UndoOptimizations:    j.Options.UndoOptimizations,
		ResizeEnabled:        j.Options.ResizeEnabled,
		TargetWidth:          j.Options.TargetWidth,
		TargetHeight:         j.Options.TargetHeight,
		CompressedPath:       j.CompressedPath,
		CompressedSize:       j.CompressedSize,
		CompressedWidth:      j.CompressedWidth,
		CompressedHeight:     j.CompressedHeight,
		ReductionPercent:     j.ReductionPercent,
		CreatedAt:            j.CreatedAt,
		StartedAt:            j.StartedAt,
		CompletedAt:          j.CompletedAt,
		ExpiresAt:            j.ExpiresAt,
		ErrorMessage:         j.ErrorMessage,
	}
}

const jobColumns = `id, session_id, status, progress,
	original_filename, original_size, original_path, original_width, original_height,
	compression_level, drop_frames, reduce_colors, number_of_colors, optimize_transparency,
	undo_optimizations, resize_enabled, target_width, target_height,
	compressed_path, compressed_size, compressed_width, compressed_height, reduction_percent,
	created_at, started_at, completed_at, expires_at, error_message`

// Create inserts a new job. A duplicate ID fails with ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, job *models.Job) error {
	row := fromModel(job)
	query := fmt.Sprintf(`INSERT INTO jobs (%s) VALUES (
		:id, :session_id, :status, :progress,
		:original_filename, :original_size, :original_path, :original_width, :original_height,
		:compression_level, :drop_frames, :reduce_colors, :number_of_colors, :optimize_transparency,
		:undo_optimizations, :resize_enabled, :target_width, :target_height,
		:compressed_path, :compressed_size, :compressed_width, :compressed_height, :reduction_percent,
		:created_at, :started_at, :completed_at, :expires_at, :error_message
	)`, jobColumns)

	return withWriteRetry(ctx, func() error {
		_, err := s.write.NamedExecContext(ctx, query, row)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return backoff.Permanent(logging.NewError(logging.ErrCodeAlreadyExists, "job already exists").WithContext("id", job.ID))
			}
			return fmt.Errorf("insert job: %w", err)
		}
		return nil
	})
}

// Get fetches a job by ID, returning ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*models.Job, error) {
	var row jobRow
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = ?`, jobColumns)
	err := s.read.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, logging.ErrNotFound("job", id)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	job := row.toModel()
	return &job, nil
}

// JobPatch carries the fields Update should overwrite; nil/zero pointer
// fields are left untouched except where explicitly named below.
type JobPatch struct {
	Status       *models.Status
	Progress     *int
	StartedAt    **time.Time
	CompletedAt  **time.Time
	ExpiresAt    **time.Time
	ErrorMessage **string

	CompressedPath   **string
	CompressedSize   **int64
	CompressedWidth  **int
	CompressedHeight **int
	ReductionPercent **float64
}

// Update applies a partial patch to a job. A missing ID is a no-op
// success, not an error, per the repository contract.
func (s *Store) Update(ctx context.Context, id string, patch JobPatch) error {
	sets := make([]string, 0, 8)
	args := make(map[string]interface{})

	if patch.Status != nil {
		sets = append(sets, "status = :status")
		args["status"] = string(*patch.Status)
	}
	if patch.Progress != nil {
		sets = append(sets, "progress = :progress")
		args["progress"] = *patch.Progress
	}
	if patch.StartedAt != nil {
		sets = append(sets, "started_at = :started_at")
		args["started_at"] = *patch.StartedAt
	}
	if patch.CompletedAt != nil {
		sets = append(sets, "completed_at = :completed_at")
		args["completed_at"] = *patch.CompletedAt
	}
	if patch.ExpiresAt != nil {
		sets = append(sets, "expires_at = :expires_at")
		args["expires_at"] = *patch.ExpiresAt
	}
	if patch.ErrorMessage != nil {
		sets = append(sets, "error_message = :error_message")
		args["error_message"] = *patch.ErrorMessage
	}
	if patch.CompressedPath != nil {
		sets = append(sets, "compressed_path = :compressed_path")
		args["compressed_path"] = *patch.CompressedPath
	}
	if patch.CompressedSize != nil {
		sets = append(sets, "compressed_size = :compressed_size")
		args["compressed_size"] = *patch.CompressedSize
	}
	if patch.CompressedWidth != nil {
		sets = append(sets, "compressed_width = :compressed_width")
		args["compressed_width"] = *patch.CompressedWidth
	}
	if patch.CompressedHeight != nil {
		sets = append(sets, "compressed_height = :compressed_height")
		args["compressed_height"] = *patch.CompressedHeight
	}
	if patch.ReductionPercent != nil {
		sets = append(sets, "reduction_percent = :reduction_percent")
		args["reduction_percent"] = *patch.ReductionPercent
	}

	if len(sets) == 0 {
		return nil
	}
	args["id"] = id

	query := fmt.Sprintf("UPDATE jobs SET %s WHERE id = :id", strings.Join(sets, ", "))

	return withWriteRetry(ctx, func() error {
		_, err := s.write.NamedExecContext(ctx, query, args)
		if err != nil {
			return fmt.Errorf("update job: %w", err)
		}
		return nil
	})
}

// Delete removes a job record, reporting whether a row existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := withWriteRetry(ctx, func() error {
		res, err := s.write.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		ok = n > 0
		return nil
	})
	return ok, err
}

// List returns jobs matching filters, newest first, plus the unpaged
// total matching the same filter set (for pagination UIs).
func (s *Store) List(ctx context.Context, f models.ListFilters) ([]models.Job, int, error) {
	where := make([]string, 0, 4)
	args := make(map[string]interface{})

	if !f.AllStatus && len(f.Status) > 0 {
		placeholders := make([]string, len(f.Status))
		for i, st := range f.Status {
			key := fmt.Sprintf("status%d", i)
			placeholders[i] = ":" + key
			args[key] = string(st)
		}
		where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if f.SessionID != "" {
		where = append(where, "session_id = :session_id")
		args["session_id"] = f.SessionID
	}
	if f.Filename != "" {
		where = append(where, "original_filename LIKE :filename")
		args["filename"] = "%" + f.Filename + "%"
	}
	if f.StartDate != nil {
		where = append(where, "created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		where = append(where, "created_at <= :end_date")
		args["end_date"] = *f.EndDate
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM jobs %s", whereClause)
	countStmt, err := s.read.PrepareNamedContext(ctx, countQuery)
	if err != nil {
		return nil, 0, fmt.Errorf("prepare count: %w", err)
	}
	defer countStmt.Close()

	var total int
	if err := countStmt.GetContext(ctx, &total, args); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args["limit"] = limit
	args["offset"] = f.Offset

	listQuery := fmt.Sprintf(`SELECT %s FROM jobs %s ORDER BY created_at DESC LIMIT :limit OFFSET :offset`, jobColumns, whereClause)
	stmt, err := s.read.PrepareNamedContext(ctx, listQuery)
	if err != nil {
		return nil, 0, fmt.Errorf("prepare list: %w", err)
	}
	defer stmt.Close()

	var rows []jobRow
	if err := stmt.SelectContext(ctx, &rows, args); err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]models.Job, len(rows))
	for i, r := range rows {
		jobs[i] = r.toModel()
	}
	return jobs, total, nil
}

// Counts returns the per-status tally plus the overall total.
func (s *Store) Counts(ctx context.Context) (models.StatusCounts, error) {
	var counts models.StatusCounts

	rows, err := s.read.QueryxContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return counts, fmt.Errorf("count jobs by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("scan status count: %w", err)
		}
		counts.All += n
		switch models.Status(status) {
		case models.StatusUploading:
			counts.Uploading = n
		case models.StatusQueued:
			counts.Queued = n
		case models.StatusProcessing:
			counts.Processing = n
		case models.StatusCompleted:
			counts.Completed = n
		case models.StatusFailed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}

// Expired returns jobs whose expires_at has passed, for the reaper.
func (s *Store) Expired(ctx context.Context, now time.Time) ([]models.Job, error) {
	var rows []jobRow
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE expires_at IS NOT NULL AND expires_at < ?`, jobColumns)
	if err := s.read.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("list expired jobs: %w", err)
	}
	jobs := make([]models.Job, len(rows))
	for i, r := range rows {
		jobs[i] = r.toModel()
	}
	return jobs, nil
}

// StaleProcessing returns jobs stuck in processing/queued/uploading since
// before cutoff, for the worker pool's startup sweep and the reaper's
// staleness sweep.
func (s *Store) StaleProcessing(ctx context.Context, statuses []models.Status, cutoff time.Time) ([]models.Job, error) {
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, 0, len(statuses)+1)
	for i, st := range statuses {
		placeholders[i] = "?"
		args = append(args, string(st))
	}
	args = append(args, cutoff)

	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE status IN (%s) AND created_at < ?`, jobColumns, strings.Join(placeholders, ", "))
	var rows []jobRow
	if err := s.read.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	jobs := make([]models.Job, len(rows))
	for i, r := range rows {
		jobs[i] = r.toModel()
	}
	return jobs, nil
}
