package logging

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// LocationHandler rewrites record timestamps into a fixed location before
// delegating, so log output reads consistently regardless of the host's
// local timezone.
type LocationHandler struct {
	slog.Handler
	location *time.Location
}

func NewLocationHandler(h slog.Handler, loc *time.Location) *LocationHandler {
	return &LocationHandler{Handler: h, location: loc}
}

func (h *LocationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.Time = r.Time.In(h.location)
	return h.Handler.Handle(ctx, r)
}

func (h *LocationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LocationHandler{Handler: h.Handler.WithAttrs(attrs), location: h.location}
}

func (h *LocationHandler) WithGroup(name string) slog.Handler {
	return &LocationHandler{Handler: h.Handler.WithGroup(name), location: h.location}
}

// ContextualHandler lifts correlation/request IDs out of the context and
// into the record.
type ContextualHandler struct {
	slog.Handler
}

func NewContextualHandler(h slog.Handler) *ContextualHandler {
	return &ContextualHandler{Handler: h}
}

func (h *ContextualHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := ctx.Value(ContextKeyCorrelationID); v != nil {
		if id, ok := v.(string); ok && id != "" {
			r.Add("correlation_id", slog.StringValue(id))
		}
	}
	if v := ctx.Value(ContextKeyRequestID); v != nil {
		if id, ok := v.(string); ok && id != "" {
			r.Add("request_id", slog.StringValue(id))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextualHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextualHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextualHandler) WithGroup(name string) slog.Handler {
	return &ContextualHandler{Handler: h.Handler.WithGroup(name)}
}

// SamplingHandler logs a random subset of records, used to keep chatty
// debug-level logging affordable in production.
type SamplingHandler struct {
	handler slog.Handler
	rate    float64
	counter uint64
	mu      sync.RWMutex
	rand    *rand.Rand
}

func NewSamplingHandler(handler slog.Handler, rate float64) *SamplingHandler {
	return &SamplingHandler{handler: handler, rate: rate, rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (h *SamplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *SamplingHandler) Handle(ctx context.Context, record slog.Record) error {
	count := atomic.AddUint64(&h.counter, 1)

	h.mu.RLock()
	shouldLog := h.rand.Float64() < h.rate
	rate := h.rate
	h.mu.RUnlock()

	if !shouldLog {
		return nil
	}

	record.Add("sample_rate", slog.Float64Value(rate))
	record.Add("sample_count", slog.Uint64Value(count))
	return h.handler.Handle(ctx, record)
}

func (h *SamplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SamplingHandler{handler: h.handler.WithAttrs(attrs), rate: h.rate, rand: h.rand}
}

func (h *SamplingHandler) WithGroup(name string) slog.Handler {
	return &SamplingHandler{handler: h.handler.WithGroup(name), rate: h.rate, rand: h.rand}
}

// MetricsHandler tracks a per-level record count, readable via GetMetrics.
type MetricsHandler struct {
	slog.Handler
	serviceName string
	counters    map[slog.Level]uint64
	mu          sync.RWMutex
}

func NewMetricsHandler(h slog.Handler, serviceName string) *MetricsHandler {
	return &MetricsHandler{Handler: h, serviceName: serviceName, counters: make(map[slog.Level]uint64)}
}

func (h *MetricsHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	h.counters[r.Level]++
	count := h.counters[r.Level]
	h.mu.Unlock()

	r.Add("log_count", slog.Uint64Value(count))
	return h.Handler.Handle(ctx, r)
}

func (h *MetricsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MetricsHandler{Handler: h.Handler.WithAttrs(attrs), serviceName: h.serviceName, counters: h.counters}
}

func (h *MetricsHandler) WithGroup(name string) slog.Handler {
	return &MetricsHandler{Handler: h.Handler.WithGroup(name), serviceName: h.serviceName, counters: h.counters}
}

func (h *MetricsHandler) GetMetrics() map[slog.Level]uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make(map[slog.Level]uint64, len(h.counters))
	for level, count := range h.counters {
		result[level] = count
	}
	return result
}
