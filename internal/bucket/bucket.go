// Package bucket resolves the physical object backing a logical aggregate
// type at a window period, and reads and appends bucket rows through
// injected table-cache and sink collaborators.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/core/timeframe"
)

var (
	// ErrRange is returned when listing at second grain.
	ErrRange = errors.New("sub-minute buckets are not listable")

	// ErrNotFound is returned when no row matches a key prefix.
	ErrNotFound = errors.New("no bucket rows match the key prefix")
)

// KeySeparator joins the parts of an encoded composite key.
const KeySeparator = "|"

// Entry is one cached table row.
type Entry struct {
	Key   string
	Value []byte
}

// TableCache scans a materialized table by encoded key prefix. Entries are
// returned in key order.
type TableCache interface {
	Scan(ctx context.Context, name, prefix string) ([]Entry, error)
}

// Sink appends an encoded record to a topic.
type Sink interface {
	Send(ctx context.Context, topic string, key, value []byte) error
}

// DecodeFunc decodes one cached entry into a row.
type DecodeFunc func(key string, payload []byte) (aggregation.Row, error)

// Type is a logical aggregate type, e.g. Bar.
type Type struct {
	Name   string
	Alias  string     // explicit physical base name
	Keys   []string   // key columns in primary-key order
	Decode DecodeFunc // nil decodes with Keys as the key shape
}

// TypeFromSpec returns the logical type an aggregation spec materializes.
func TypeFromSpec(spec *aggregation.Spec) Type {
	keys := make([]string, 0, len(spec.Keys)+1)
	for _, k := range spec.Keys {
		keys = append(keys, k.Name)
	}
	if spec.BasedOn != nil && spec.BasedOn.DayKey != "" {
		keys = append(keys, spec.BasedOn.DayKey)
	}
	return Type{Name: spec.Target, Alias: spec.BaseTopic(), Keys: keys}
}

// BaseTopic returns the alias when set, otherwise the lowercased name.
func (t Type) BaseTopic() string {
	if t.Alias != "" {
		return aggregation.ObjectName(t.Alias)
	}
	return aggregation.ObjectName(t.Name)
}

func (t Type) decode(key string, payload []byte) (aggregation.Row, error) {
	if t.Decode != nil {
		return t.Decode(key, payload)
	}
	return aggregation.DecodeRowShape(key, payload, t.Keys)
}

// PhysicalName returns the object holding t's buckets at period: the 1s
// final anchor for one second, the live table otherwise.
func PhysicalName(t Type, period timeframe.Timeframe) string {
	if period == timeframe.OneSecond {
		return t.BaseTopic() + "_1s_final"
	}
	return t.BaseTopic() + "_" + period.Token() + "_live"
}

// Prefix encodes key parts into a scan prefix. Every part is terminated by
// the separator so "AB" never matches "ABC".
func Prefix(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, KeySeparator) + KeySeparator
}

// EncodeKey encodes a composite primary key: the key parts followed by the
// zero-padded window start in epoch millis, so a key's buckets sort by time.
func EncodeKey(parts []string, windowStart time.Time) string {
	return Prefix(parts...) + fmt.Sprintf("%013d", windowStart.UnixMilli())
}

// RowKey returns row's encoded key, deriving it from t's key columns when
// the row does not carry one.
func RowKey(t Type, row aggregation.Row) (string, error) {
	if row.Key != "" {
		return row.Key, nil
	}
	parts := make([]string, len(t.Keys))
	for i, k := range t.Keys {
		v, ok := row.Keys[k]
		if !ok {
			return "", fmt.Errorf("row has no value for key column %q", k)
		}
		parts[i] = v
	}
	return EncodeKey(parts, row.WindowStart), nil
}
