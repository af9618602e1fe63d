package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/aevon-rollup/internal/bucket"
	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/core/timeframe"
)

var (
	ErrInvalidQuery = errors.New("invalid bucket query")
	ErrUnknownType  = errors.New("unknown aggregate type")
)

// Service answers bucket queries against materialized rollup tables.
type Service struct {
	registry *bucket.Registry
	reader   *bucket.Reader
	measures map[string][]aggregation.Measure // keyed by type name
}

// NewService registers the aggregate type of every spec and serves reads through reader.
func NewService(registry *bucket.Registry, reader *bucket.Reader, specs ...*aggregation.Spec) *Service {
	s := &Service{
		registry: registry,
		reader:   reader,
		measures: make(map[string][]aggregation.Measure),
	}
	for _, spec := range specs {
		t := bucket.TypeFromSpec(spec)
		registry.Register(t)
		s.measures[t.Name] = spec.Values
	}
	return s
}

// QueryBuckets lists the rows matching req and optionally folds them into a total.
func (s *Service) QueryBuckets(ctx context.Context, req BucketQueryRequest) (*BucketQueryResponse, error) {
	t, ok := s.registry.Lookup(req.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, req.Type)
	}

	period, err := timeframe.Parse(req.Period)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if len(req.Key) > len(t.Keys) {
		return nil, fmt.Errorf("%w: %d key parts given, type %s has %d key columns",
			ErrInvalidQuery, len(req.Key), t.Name, len(t.Keys))
	}

	rows, err := s.reader.List(ctx, t, period, req.Key...)
	if err != nil {
		return nil, err
	}

	resp := &BucketQueryResponse{
		Type:   t.Name,
		Period: period.Token(),
		Object: bucket.PhysicalName(s.registry.ResolveRead(t, period), period),
		Rows:   make([]BucketRow, len(rows)),
	}
	for i, r := range rows {
		resp.Rows[i] = toBucketRow(r)
	}

	if req.Total {
		if total, ok := aggregation.FoldRows(s.measures[t.Name], rows); ok {
			out := toBucketRow(total)
			resp.Total = &out
		}
	}

	slog.Debug("[Projection] Bucket query served",
		"type", t.Name, "period", resp.Period, "rows", len(rows), "total", req.Total)
	return resp, nil
}
