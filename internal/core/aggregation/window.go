package aggregation

import (
	"fmt"
	"sort"

	"github.com/aevon-lab/aevon-rollup/internal/core/timeframe"
)

// ExpressionAnalysisResult is the windowing part of a parsed aggregation spec.
// It is created fresh per parse; ValidateWindows is the only writer of
// GracePerTimeframe, everything downstream reads it.
type ExpressionAnalysisResult struct {
	Windows           []string       // timeframe tokens, treated as a set
	BaseUnitSeconds   *int           // finest grain every window must be a multiple of
	GraceSeconds      *int           // base grace; nil means 0
	GracePerTimeframe map[string]int // token → grace seconds
}

// ConfigError reports a malformed window set. It is never corrected silently.
type ConfigError struct {
	Window  string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Window != "" {
		return fmt.Sprintf("window %s: %s", e.Window, e.Message)
	}
	return e.Message
}

// Details surfaces structured fields for API error responses.
func (e *ConfigError) Details() map[string]interface{} {
	d := map[string]interface{}{"message": e.Message}
	if e.Window != "" {
		d["window"] = e.Window
	}
	return d
}

// ValidateWindows checks the requested windows against the base unit and
// assigns each window a grace period.
//
// Walking windows in ascending order, the grace counter starts at the base
// grace and grows by exactly one second per window, so no two windows close
// at the same instant. A pre-recorded grace must match the counter.
func ValidateWindows(r *ExpressionAnalysisResult) error {
	if r == nil || len(r.Windows) == 0 {
		return nil
	}
	if r.BaseUnitSeconds == nil {
		return &ConfigError{Message: "base unit required"}
	}
	base := *r.BaseUnitSeconds
	if base <= 0 || 60%base != 0 {
		return &ConfigError{Message: "base unit must divide 60"}
	}

	windows := uniqueTokens(r.Windows)
	sort.SliceStable(windows, func(i, j int) bool {
		return timeframe.TokenSeconds(windows[i]) < timeframe.TokenSeconds(windows[j])
	})

	for _, w := range windows {
		secs := timeframe.TokenSeconds(w)
		if secs <= 0 {
			return &ConfigError{Window: w, Message: "window must be positive"}
		}
		if secs%base != 0 {
			return &ConfigError{Window: w, Message: fmt.Sprintf("window must be a multiple of the %ds base unit", base)}
		}
		if secs >= 60 && secs%60 != 0 {
			return &ConfigError{Window: w, Message: "windows of a minute or more must be whole minutes"}
		}
	}

	if r.GracePerTimeframe == nil {
		r.GracePerTimeframe = make(map[string]int, len(windows))
	}

	grace := 0
	if r.GraceSeconds != nil {
		grace = *r.GraceSeconds
	}
	for _, w := range windows {
		grace++
		if recorded, ok := r.GracePerTimeframe[w]; ok {
			if recorded != grace {
				return &ConfigError{
					Window:  w,
					Message: fmt.Sprintf("grace must be parent grace + 1s (want %d, got %d)", grace, recorded),
				}
			}
			continue
		}
		r.GracePerTimeframe[w] = grace
	}
	return nil
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
