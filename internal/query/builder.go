package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/core/timeframe"
)

// compositionMarker flags a nested select. Final queries must read one
// finalized or physical source and never contain it.
var compositionMarker = regexp.MustCompile(`(?i)\(\s*SELECT\b`)

// InternalConsistencyError reports generated text that violates a structural
// rule. It must never reach the engine.
type InternalConsistencyError struct {
	Role    aggregation.Role
	Message string
}

func (e *InternalConsistencyError) Error() string {
	return fmt.Sprintf("internal consistency (%s): %s", e.Role, e.Message)
}

// Build assembles the query text for role at timeframe token tf.
//
// Live and Final read the object named by input/<tf>Live or input/<tf>Final;
// other roles read the metadata's base object. A session source turns the
// join keys into a JOIN and the bounds into a WHERE; without one the whole
// time-frame predicate goes to WHERE.
func Build(role aggregation.Role, tf string, md Metadata) (string, error) {
	traits := role.Traits()

	input, err := resolveInput(role, tf, md)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(md.PropertyOr(PropSelect, "*"))
	b.WriteString(" FROM ")
	b.WriteString(input)
	b.WriteByte(' ')
	b.WriteString(RowAlias)

	where := ""
	if session := md.PropertyOr(PropSessionSource, ""); session != "" {
		on := strings.Join(joinEqualities(md), " AND ")
		if on == "" {
			on = "TRUE"
		}
		fmt.Fprintf(&b, " JOIN %s %s ON %s", session, SessionAlias, on)
		where = strings.Join(boundsPredicates(md), " AND ")
	} else {
		where = ApplyTimeFrame(md)
	}

	if traits.Windowed {
		window, err := timeframe.Parse(tf)
		if err != nil {
			return "", fmt.Errorf("build %s: %w", role, err)
		}
		grace, err := graceFor(md, tf)
		if err != nil {
			return "", fmt.Errorf("build %s %s: %w", role, tf, err)
		}
		b.WriteByte(' ')
		b.WriteString(ApplyWindowTumbling(window, grace))
	}

	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	if traits.Windowed {
		if groupBy := md.PropertyOr(PropGroupBy, ""); groupBy != "" {
			b.WriteString(" GROUP BY ")
			b.WriteString(groupBy)
		}
	}

	if traits.Emit != aggregation.EmitNone {
		b.WriteString(" EMIT ")
		b.WriteString(string(traits.Emit))
	}

	text := b.String()
	if role == aggregation.RoleFinal && compositionMarker.MatchString(text) {
		return "", &InternalConsistencyError{Role: role, Message: "final query must not compose intermediate state"}
	}
	return text, nil
}

func resolveInput(role aggregation.Role, tf string, md Metadata) (string, error) {
	var input string
	switch role {
	case aggregation.RoleLive:
		input, _ = md.Property(InputKey(tf, "Live"))
	case aggregation.RoleFinal:
		input, _ = md.Property(InputKey(tf, "Final"))
	}
	if input == "" {
		input = md.BaseObject()
	}
	if input == "" {
		return "", fmt.Errorf("build %s %s: no input object", role, tf)
	}
	return input, nil
}

func graceFor(md Metadata, tf string) (*int, error) {
	v, ok := md.Property(GraceKey(tf))
	if !ok || v == "" {
		return nil, nil
	}
	g, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("grace %q: %w", v, err)
	}
	return &g, nil
}

// Aliases of the self join built by BuildPrevious.
const (
	CurrentAlias  = "cur"
	PreviousAlias = "prev"
)

// BuildPrevious assembles the non-windowed self join that exposes, per key,
// the row of the bucket immediately before the current one. input must be a
// windowed table with buckets of size step.
func BuildPrevious(input string, keys, values []string, step timeframe.Timeframe) string {
	sel := make([]string, 0, len(keys)+len(values)+1)
	on := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		sel = append(sel, fmt.Sprintf("%s.%s AS %s", CurrentAlias, k, k))
		on = append(on, fmt.Sprintf("%s.%s = %s.%s", CurrentAlias, k, PreviousAlias, k))
	}
	sel = append(sel, fmt.Sprintf("%s.WINDOWSTART AS %s", CurrentAlias, aggregation.WindowStartField))
	for _, v := range values {
		sel = append(sel, fmt.Sprintf("%s.%s AS %s", PreviousAlias, v, v))
	}
	on = append(on, fmt.Sprintf("%s.WINDOWSTART = %s.WINDOWSTART - %d",
		PreviousAlias, CurrentAlias, step.Duration().Milliseconds()))

	return fmt.Sprintf("SELECT %s FROM %s %s JOIN %s %s ON %s",
		strings.Join(sel, ", "), input, CurrentAlias, input, PreviousAlias, strings.Join(on, " AND "))
}
