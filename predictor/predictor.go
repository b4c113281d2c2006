package predictor

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gifcompress/models"
)

// ResidualStore is the subset of the job repository the predictor needs,
// kept narrow so tests can supply an in-memory fake.
type ResidualStore interface {
	AllResiduals(ctx context.Context) ([]models.ResidualEntry, error)
	GetResidual(ctx context.Context, key string) (*models.ResidualEntry, error)
	UpsertResidual(ctx context.Context, key string, ema float64, count int) error
	InsertSample(ctx context.Context, jobID string, features models.Features, actualMs int64) error
}

// Predictor is the process-scoped estimation service: a frozen baseline
// loaded once at startup, and an in-memory cache of the repository-backed
// residual table kept warm for fast lookups.
type Predictor struct {
	baseline *Baseline
	store    ResidualStore

	mu        sync.RWMutex
	residuals map[string]models.ResidualEntry
}

// New builds a Predictor. baseline may be nil if the model asset could
// not be loaded, in which case inference falls back to the pixel-count
// heuristic.
func New(baseline *Baseline, store ResidualStore) *Predictor {
	return &Predictor{
		baseline:  baseline,
		store:     store,
		residuals: make(map[string]models.ResidualEntry),
	}
}

// Warm loads the full residual table into memory; call once at startup.
func (p *Predictor) Warm(ctx context.Context) error {
	entries, err := p.store.AllResiduals(ctx)
	if err != nil {
		return fmt.Errorf("warm predictor residuals: %w", err)
	}

	p.mu.Lock()
	for _, e := range entries {
		p.residuals[e.Key] = e
	}
	p.mu.Unlock()
	return nil
}

// EstimateMs predicts the wall-clock processing time for a (source,
// options) pair in milliseconds, always >= 100.
func (p *Predictor) EstimateMs(source models.ImageInfo, opts models.CompressionOptions, fileSize int64) int64 {
	features := BuildFeatures(source, opts, fileSize)

	var logSeconds float64
	if p.baseline != nil {
		logSeconds = p.baseline.Predict(features)
	} else {
		logSeconds = FallbackEstimateSeconds(features.TotalPixels)
	}

	keys := BucketKeys(features, opts)

	p.mu.RLock()
	residual := AverageActiveResidual(p.residuals, keys)
	p.mu.RUnlock()

	seconds := math.Expm1(logSeconds + residual)
	ms := int64(1000 * seconds)
	if ms < 100 {
		ms = 100
	}
	return ms
}

// RecordCompletion updates the residual layer and appends a training
// sample after a job finishes. actualMs is the observed wall-clock time.
func (p *Predictor) RecordCompletion(ctx context.Context, jobID string, source models.ImageInfo, opts models.CompressionOptions, fileSize, actualMs int64) error {
	features := BuildFeatures(source, opts, fileSize)

	if err := p.store.InsertSample(ctx, jobID, features, actualMs); err != nil {
		return fmt.Errorf("insert prediction sample: %w", err)
	}

	var baselineEstimate float64
	if p.baseline != nil {
		baselineEstimate = p.baseline.Predict(features)
	} else {
		baselineEstimate = FallbackEstimateSeconds(features.TotalPixels)
	}

	residual := math.Log1p(float64(actualMs)/1000.0) - baselineEstimate
	keys := BucketKeys(features, opts)

	for _, key := range keys {
		p.mu.RLock()
		prior, ok := p.residuals[key]
		p.mu.RUnlock()

		var priorPtr *models.ResidualEntry
		if ok {
			priorPtr = &prior
		}

		ema, count := UpdateEMA(priorPtr, residual)

		if err := p.store.UpsertResidual(ctx, key, ema, count); err != nil {
			return fmt.Errorf("upsert residual %q: %w", key, err)
		}

		p.mu.Lock()
		p.residuals[key] = models.ResidualEntry{Key: key, EMA: ema, Count: count}
		p.mu.Unlock()
	}

	return nil
}
