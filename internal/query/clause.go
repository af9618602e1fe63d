package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aevon-lab/aevon-rollup/internal/core/timeframe"
)

// ApplyTimeFrame returns the session alignment predicate: each join key
// equated between the row and session aliases, conjoined with the bounds
// check `s.open <op> r.time AND r.time <op> s.close`.
//
// With nothing configured the result depends on basedOn/emptyJoin: "omit"
// (the default) yields "", "always_true" yields "TRUE".
func ApplyTimeFrame(md Metadata) string {
	parts := append(joinEqualities(md), boundsPredicates(md)...)
	if len(parts) == 0 {
		if md.PropertyOr(PropEmptyJoin, EmptyJoinOmit) == EmptyJoinAlwaysTrue {
			return "TRUE"
		}
		return ""
	}
	return strings.Join(parts, " AND ")
}

// ApplyWindowTumbling returns the tumbling window clause for tf, with a
// grace period when grace is non-nil.
func ApplyWindowTumbling(tf timeframe.Timeframe, grace *int) string {
	if grace == nil {
		return fmt.Sprintf("WINDOW TUMBLING (SIZE %s)", tf.Interval())
	}
	return fmt.Sprintf("WINDOW TUMBLING (SIZE %s, GRACE PERIOD %s)", tf.Interval(), timeframe.Seconds(*grace).Interval())
}

func joinEqualities(md Metadata) []string {
	var out []string
	for _, k := range splitList(md.PropertyOr(PropJoinKeys, "")) {
		out = append(out, fmt.Sprintf("%s.%s = %s.%s", RowAlias, k, SessionAlias, k))
	}
	return out
}

func boundsPredicates(md Metadata) []string {
	open := md.PropertyOr(PropOpenProp, "")
	closeProp := md.PropertyOr(PropCloseProp, "")
	timeKey := md.PropertyOr(PropTimeKey, "")
	if timeKey == "" || (open == "" && closeProp == "") {
		return nil
	}

	var out []string
	if open != "" {
		op := "<="
		if !boolProp(md, PropOpenInclusive, true) {
			op = "<"
		}
		out = append(out, fmt.Sprintf("%s.%s %s %s.%s", SessionAlias, open, op, RowAlias, timeKey))
	}
	if closeProp != "" {
		op := "<"
		if boolProp(md, PropCloseInclusive, false) {
			op = "<="
		}
		out = append(out, fmt.Sprintf("%s.%s %s %s.%s", RowAlias, timeKey, op, SessionAlias, closeProp))
	}
	return out
}

func boolProp(md Metadata, key string, def bool) bool {
	v, ok := md.Property(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
