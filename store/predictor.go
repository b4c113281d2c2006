package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gifcompress/logging"
	"gifcompress/models"
)

// InsertSample appends a training sample; samples are never mutated or
// deleted, only accumulated for future baseline retraining.
func (s *Store) InsertSample(ctx context.Context, jobID string, features models.Features, actualMs int64) error {
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	return withWriteRetry(ctx, func() error {
		_, err := s.write.ExecContext(ctx,
			`INSERT INTO prediction_samples (job_id, features_json, actual_ms, created_at) VALUES (?, ?, ?, ?)`,
			jobID, string(featuresJSON), actualMs, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert prediction sample: %w", err)
		}
		return nil
	})
}

// UpsertResidual writes the current EMA/count for a bucket key.
func (s *Store) UpsertResidual(ctx context.Context, key string, ema float64, count int) error {
	return withWriteRetry(ctx, func() error {
		_, err := s.write.ExecContext(ctx, `
			INSERT INTO prediction_residuals (key, ema, count, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET ema = excluded.ema, count = excluded.count, updated_at = excluded.updated_at`,
			key, ema, count, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("upsert residual: %w", err)
		}
		return nil
	})
}

// GetResidual fetches the learned entry for a bucket key, ErrNotFound if
// the key has never been observed.
func (s *Store) GetResidual(ctx context.Context, key string) (*models.ResidualEntry, error) {
	var entry models.ResidualEntry
	err := s.read.GetContext(ctx, &entry, `SELECT key, ema, count, updated_at FROM prediction_residuals WHERE key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, logging.ErrNotFound("residual", key)
		}
		return nil, fmt.Errorf("get residual: %w", err)
	}
	return &entry, nil
}

// AllResiduals returns every learned bucket entry, used to warm the
// predictor's in-memory cache at startup.
func (s *Store) AllResiduals(ctx context.Context) ([]models.ResidualEntry, error) {
	var entries []models.ResidualEntry
	if err := s.read.SelectContext(ctx, &entries, `SELECT key, ema, count, updated_at FROM prediction_residuals`); err != nil {
		return nil, fmt.Errorf("list residuals: %w", err)
	}
	return entries, nil
}

// SampleCount returns the total number of training samples recorded.
func (s *Store) SampleCount(ctx context.Context) (int, error) {
	var n int
	if err := s.read.GetContext(ctx, &n, `SELECT COUNT(*) FROM prediction_samples`); err != nil {
		return 0, fmt.Errorf("count prediction samples: %w", err)
	}
	return n, nil
}
