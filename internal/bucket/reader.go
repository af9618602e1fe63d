package bucket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/core/timeframe"
	"github.com/aevon-lab/aevon-rollup/internal/metrics"
)

// Reader lists bucket rows by key prefix.
type Reader struct {
	registry *Registry
	cache    TableCache
	metrics  *metrics.Metrics
}

// NewReader creates a reader. m may be nil.
func NewReader(registry *Registry, cache TableCache, m *metrics.Metrics) *Reader {
	return &Reader{registry: registry, cache: cache, metrics: m}
}

// List returns every row of t at period whose key starts with prefix, in the
// cache's key order. Second-grain periods fail with ErrRange and an empty
// result fails with ErrNotFound. A canceled ctx yields ctx.Err().
func (r *Reader) List(ctx context.Context, t Type, period timeframe.Timeframe, prefix ...string) ([]aggregation.Row, error) {
	if period.Unit == timeframe.Second {
		r.metrics.ObserveList(metrics.ResultRange)
		return nil, fmt.Errorf("list %s at %s: %w", t.Name, period, ErrRange)
	}
	if err := ctx.Err(); err != nil {
		r.metrics.ObserveList(metrics.ResultCanceled)
		return nil, err
	}

	src := r.registry.ResolveRead(t, period)
	name := PhysicalName(src, period)
	p := Prefix(prefix...)

	entries, err := r.cache.Scan(ctx, name, p)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			r.metrics.ObserveList(metrics.ResultCanceled)
			return nil, err
		}
		r.metrics.ObserveList(metrics.ResultError)
		slog.Error("[BucketReader] Scan failed", "table", name, "prefix", p, "error", err)
		return nil, fmt.Errorf("scan %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		r.metrics.ObserveList(metrics.ResultCanceled)
		return nil, err
	}
	if len(entries) == 0 {
		r.metrics.ObserveList(metrics.ResultNotFound)
		return nil, fmt.Errorf("list %s prefix %q: %w", name, p, ErrNotFound)
	}

	rows := make([]aggregation.Row, 0, len(entries))
	for _, e := range entries {
		row, err := src.decode(e.Key, e.Value)
		if err != nil {
			r.metrics.ObserveList(metrics.ResultError)
			return nil, fmt.Errorf("list %s: %w", name, err)
		}
		rows = append(rows, row)
	}

	r.metrics.ObserveList(metrics.ResultOK)
	return rows, nil
}
