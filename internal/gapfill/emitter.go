// Package gapfill emits heartbeat rows so that buckets without source events
// still materialize through the fill table.
package gapfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aevon-lab/aevon-rollup/internal/bucket"
	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/core/timeframe"
	"github.com/aevon-lab/aevon-rollup/internal/metrics"
	"github.com/aevon-lab/aevon-rollup/internal/model"
)

// LeaderGate reports whether this process should emit heartbeats.
type LeaderGate interface {
	IsLeader(ctx context.Context) (bool, error)
}

// Target is one heartbeat stream to feed.
type Target struct {
	Spec     string
	Type     bucket.Type
	Period   timeframe.Timeframe
	Topic    string
	Policy   aggregation.FillPolicy
	Prefixes [][]string // key prefixes to track; empty tracks every key
}

// TargetFromSpec returns the heartbeat target of spec, if it declares one.
// Specs with a heartbeat but no fill policy pass rows through unchanged.
func TargetFromSpec(spec *aggregation.Spec) (Target, bool) {
	if spec.Heartbeat == nil {
		return Target{}, false
	}
	policy := aggregation.Passthrough
	if p, ok := aggregation.FillPolicies[spec.Fill]; ok {
		policy = p
	}
	hb := aggregation.DerivedEntity{Role: aggregation.RoleHb, Timeframe: *spec.Heartbeat}
	return Target{
		Spec:   spec.Name,
		Type:   bucket.TypeFromSpec(spec),
		Period: *spec.Heartbeat,
		Topic:  model.PhysicalName(spec.BaseTopic(), hb),
		Policy: policy,
	}, true
}

// Emitter periodically applies each target's fill policy to the latest
// buckets of every tracked key and sends the result to the heartbeat stream.
type Emitter struct {
	interval time.Duration
	reader   *bucket.Reader
	writer   *bucket.Writer
	gate     LeaderGate
	targets  []Target
	metrics  *metrics.Metrics
	nowFn    func() time.Time
}

// NewEmitter creates an emitter ticking every interval.
func NewEmitter(interval time.Duration, reader *bucket.Reader, writer *bucket.Writer, gate LeaderGate, m *metrics.Metrics, targets ...Target) *Emitter {
	return &Emitter{
		interval: interval,
		reader:   reader,
		writer:   writer,
		gate:     gate,
		targets:  targets,
		metrics:  m,
		nowFn:    time.Now,
	}
}

// Start runs the emitter until ctx is canceled.
func (e *Emitter) Start(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	slog.Info("[GapFill] Starting heartbeat emitter",
		"interval", e.interval,
		"targets", len(e.targets),
	)

	for {
		select {
		case <-ticker.C:
			e.tick(ctx)
		case <-ctx.Done():
			slog.Info("[GapFill] Stopping (context cancelled)")
			return nil
		}
	}
}

func (e *Emitter) tick(ctx context.Context) {
	leader, err := e.gate.IsLeader(ctx)
	if err != nil {
		slog.Warn("[GapFill] Leader check failed, skipping tick", "error", err)
		return
	}
	if !leader {
		slog.Debug("[GapFill] Not leader, skipping tick")
		return
	}
	if _, err := e.Emit(ctx); err != nil {
		slog.Error("[GapFill] Tick aborted", "error", err)
	}
}

// Emit runs one pass over every target and returns the number of rows sent.
// It does not consult the leader gate.
func (e *Emitter) Emit(ctx context.Context) (int, error) {
	now := e.nowFn().UTC()
	total := 0
	for _, t := range e.targets {
		n, err := e.emitTarget(ctx, t, now)
		total += n
		if err != nil {
			return total, fmt.Errorf("heartbeat %s: %w", t.Topic, err)
		}
		if n > 0 {
			slog.Debug("[GapFill] Heartbeats sent", "spec", t.Spec, "topic", t.Topic, "rows", n)
		}
	}
	return total, nil
}

func (e *Emitter) emitTarget(ctx context.Context, t Target, now time.Time) (int, error) {
	current := timeframe.BucketFor(now, t.Period)

	prefixes := t.Prefixes
	if len(prefixes) == 0 {
		prefixes = [][]string{nil}
	}

	sent := 0
	for _, prefix := range prefixes {
		rows, err := e.reader.List(ctx, t.Type, t.Period, prefix...)
		if errors.Is(err, bucket.ErrNotFound) {
			continue
		}
		if err != nil {
			return sent, err
		}

		for _, g := range groupByKey(t.Type, rows) {
			prev, next := pick(g.rows, current)
			if prev == nil && next == nil {
				continue
			}

			out := t.Policy(prev, next)
			if len(out.Keys) == 0 && len(out.Values) == 0 {
				continue
			}
			out.Key = ""
			out.WindowStart = current
			if out.Keys == nil {
				out.Keys = make(map[string]string, len(g.keys))
			}
			for k, v := range g.keys {
				if _, ok := out.Keys[k]; !ok {
					out.Keys[k] = v
				}
			}

			if err := e.writer.AppendTo(ctx, t.Type, t.Topic, out); err != nil {
				return sent, err
			}
			e.metrics.ObserveFill(t.Spec)
			sent++
		}
	}
	return sent, nil
}

type keyGroup struct {
	id   string
	keys map[string]string
	rows []aggregation.Row
}

// groupByKey splits rows by their key columns, keeping first-seen order.
func groupByKey(t bucket.Type, rows []aggregation.Row) []*keyGroup {
	var out []*keyGroup
	index := make(map[string]*keyGroup)
	for _, row := range rows {
		id := keyID(t, row)
		g, ok := index[id]
		if !ok {
			g = &keyGroup{id: id, keys: make(map[string]string, len(t.Keys))}
			for _, k := range t.Keys {
				if v, ok := row.Keys[k]; ok {
					g.keys[k] = v
				}
			}
			index[id] = g
			out = append(out, g)
		}
		g.rows = append(g.rows, row)
	}
	return out
}

func keyID(t bucket.Type, row aggregation.Row) string {
	if len(t.Keys) > 0 {
		parts := make([]string, len(t.Keys))
		for i, k := range t.Keys {
			parts[i] = row.Keys[k]
		}
		return bucket.Prefix(parts...)
	}
	if i := strings.LastIndex(row.Key, bucket.KeySeparator); i >= 0 {
		return row.Key[:i+1]
	}
	return row.Key
}

// pick returns the latest row before current and the row at current.
func pick(rows []aggregation.Row, current time.Time) (prev, next *aggregation.Row) {
	for i := range rows {
		r := &rows[i]
		switch {
		case r.WindowStart.Equal(current):
			next = r
		case r.WindowStart.Before(current):
			if prev == nil || r.WindowStart.After(prev.WindowStart) {
				prev = r
			}
		}
	}
	return prev, next
}
