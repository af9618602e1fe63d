// Package query assembles streaming-SQL text for derived rollup objects.
package query

import (
	"sort"
	"time"
)

// Property keys read by the clause assembler and builder.
const (
	PropSessionSource  = "basedOn/source"
	PropJoinKeys       = "basedOn/joinKeys" // comma separated
	PropOpenProp       = "basedOn/openProp"
	PropCloseProp      = "basedOn/closeProp"
	PropOpenInclusive  = "basedOn/openInclusive"
	PropCloseInclusive = "basedOn/closeInclusive"
	PropEmptyJoin      = "basedOn/emptyJoin"
	PropTimeKey        = "timeKey"
	PropGroupBy        = "groupBy" // comma separated, already qualified
	PropSelect         = "select"  // projection list
)

// Empty join modes for PropEmptyJoin.
const (
	EmptyJoinOmit       = "omit"
	EmptyJoinAlwaysTrue = "always_true"
)

// Aliases used in generated text.
const (
	RowAlias     = "r"
	SessionAlias = "s"
)

// InputKey returns the property naming the upstream object of a Live or
// Final query at timeframe token tf, e.g. "input/5mLive".
func InputKey(tf, role string) string { return "input/" + tf + role }

// GraceKey returns the property holding the grace seconds of a window.
func GraceKey(tf string) string { return "grace/" + tf }

// Metadata is an immutable property bag threaded through clause assembly.
// Every With* method returns a new value; the receiver is never modified.
type Metadata struct {
	category   string
	baseObject string
	createdAt  time.Time
	props      map[string]string
}

// NewMetadata returns an empty bag for the given category.
func NewMetadata(category string, createdAt time.Time) Metadata {
	return Metadata{category: category, createdAt: createdAt}
}

func (m Metadata) Category() string     { return m.category }
func (m Metadata) BaseObject() string   { return m.baseObject }
func (m Metadata) CreatedAt() time.Time { return m.createdAt }

// WithBaseObject returns a copy with the base object set.
func (m Metadata) WithBaseObject(name string) Metadata {
	out := m.clone()
	out.baseObject = name
	return out
}

// WithProperty returns a copy with key set to value.
func (m Metadata) WithProperty(key, value string) Metadata {
	out := m.clone()
	out.props[key] = value
	return out
}

// Property returns the value stored under key.
func (m Metadata) Property(key string) (string, bool) {
	v, ok := m.props[key]
	return v, ok
}

// PropertyOr returns the value under key, or def when absent or empty.
func (m Metadata) PropertyOr(key, def string) string {
	if v, ok := m.props[key]; ok && v != "" {
		return v
	}
	return def
}

// Keys returns the property keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m.props))
	for k := range m.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m Metadata) clone() Metadata {
	out := m
	out.props = make(map[string]string, len(m.props)+1)
	for k, v := range m.props {
		out.props[k] = v
	}
	return out
}
