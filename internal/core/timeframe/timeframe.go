// Package timeframe models window sizes and bucket periods.
//
// A Timeframe is a positive count of a calendar-ish unit. Its compact token
// ("1s", "5m", "1wk") is the form used in object names and spec files.
package timeframe

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Unit is the unit of a Timeframe.
type Unit int

const (
	Second Unit = iota
	Minute
	Hour
	Day
	Week
	Month
)

// Seconds returns the length of one unit in seconds. Weeks are 7 days and
// months are 30 days.
func (u Unit) Seconds() int {
	switch u {
	case Second:
		return 1
	case Minute:
		return 60
	case Hour:
		return 3600
	case Day:
		return 86400
	case Week:
		return 7 * 86400
	case Month:
		return 30 * 86400
	}
	return 0
}

// Suffix returns the token suffix for the unit.
func (u Unit) Suffix() string {
	switch u {
	case Second:
		return "s"
	case Minute:
		return "m"
	case Hour:
		return "h"
	case Day:
		return "d"
	case Week:
		return "wk"
	case Month:
		return "mo"
	}
	return "?"
}

func (u Unit) String() string {
	switch u {
	case Second:
		return "second"
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	}
	return fmt.Sprintf("unit(%d)", int(u))
}

// Timeframe is a window size or bucket period.
type Timeframe struct {
	Value int
	Unit  Unit
}

// Seconds returns a Timeframe of n seconds.
func Seconds(n int) Timeframe { return Timeframe{Value: n, Unit: Second} }

// Minutes returns a Timeframe of n minutes.
func Minutes(n int) Timeframe { return Timeframe{Value: n, Unit: Minute} }

// Hours returns a Timeframe of n hours.
func Hours(n int) Timeframe { return Timeframe{Value: n, Unit: Hour} }

// Days returns a Timeframe of n days.
func Days(n int) Timeframe { return Timeframe{Value: n, Unit: Day} }

// OneSecond is the finest grain; it anchors every rollup chain.
var OneSecond = Seconds(1)

// Token returns the compact form, e.g. "1m" or "2wk".
func (t Timeframe) Token() string {
	return strconv.Itoa(t.Value) + t.Unit.Suffix()
}

func (t Timeframe) String() string { return t.Token() }

// TotalSeconds returns the timeframe length in seconds.
func (t Timeframe) TotalSeconds() int {
	return t.Value * t.Unit.Seconds()
}

// Duration returns the timeframe as a time.Duration.
func (t Timeframe) Duration() time.Duration {
	return time.Duration(t.TotalSeconds()) * time.Second
}

// IsZero reports whether t is the zero Timeframe.
func (t Timeframe) IsZero() bool { return t.Value == 0 }

// Less orders timeframes by total seconds.
func (t Timeframe) Less(o Timeframe) bool {
	return t.TotalSeconds() < o.TotalSeconds()
}

// Parse parses a token such as "1s", "15m", "4h", "1d", "1wk" or "1mo".
// Unlike TokenSeconds it rejects unknown suffixes and non-positive values.
func Parse(s string) (Timeframe, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timeframe{}, fmt.Errorf("timeframe must not be empty")
	}

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return Timeframe{}, fmt.Errorf("invalid timeframe %q: missing value", s)
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return Timeframe{}, fmt.Errorf("invalid timeframe %q: %w", s, err)
	}
	if n <= 0 {
		return Timeframe{}, fmt.Errorf("timeframe must be positive, got %q", s)
	}

	var unit Unit
	switch s[i:] {
	case "s":
		unit = Second
	case "m":
		unit = Minute
	case "h":
		unit = Hour
	case "d":
		unit = Day
	case "wk":
		unit = Week
	case "mo":
		unit = Month
	default:
		return Timeframe{}, fmt.Errorf("invalid timeframe %q: unknown unit %q", s, s[i:])
	}
	return Timeframe{Value: n, Unit: unit}, nil
}

// MustParse is like Parse but panics on error. Intended for constants in tests
// and static declarations.
func MustParse(s string) Timeframe {
	tf, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return tf
}

// TokenSeconds converts a token to seconds. Unknown suffixes fall back to the
// leading numeric value read as raw seconds; a token without digits yields 0.
func TokenSeconds(token string) int {
	token = strings.TrimSpace(token)
	i := 0
	for i < len(token) && token[i] >= '0' && token[i] <= '9' {
		i++
	}
	n, _ := strconv.Atoi(token[:i])

	switch token[i:] {
	case "s":
		return n
	case "m":
		return n * 60
	case "h":
		return n * 3600
	case "d":
		return n * 86400
	case "wk":
		return n * 7 * 86400
	case "mo":
		return n * 30 * 86400
	}
	return n
}

// Sort orders timeframes ascending by total seconds, in place.
func Sort(tfs []Timeframe) {
	sort.SliceStable(tfs, func(i, j int) bool { return tfs[i].Less(tfs[j]) })
}

// Interval renders the timeframe as an engine interval literal, e.g.
// "1 MINUTE" or "5 MINUTES". Weeks and months are expressed in days.
func (t Timeframe) Interval() string {
	n, unit := t.Value, ""
	switch t.Unit {
	case Second:
		unit = "SECOND"
	case Minute:
		unit = "MINUTE"
	case Hour:
		unit = "HOUR"
	case Day:
		unit = "DAY"
	case Week:
		n, unit = t.Value*7, "DAY"
	case Month:
		n, unit = t.Value*30, "DAY"
	}
	if n != 1 {
		unit += "S"
	}
	return fmt.Sprintf("%d %s", n, unit)
}

// BucketFor truncates a timestamp to the start of its bucket.
// Example: BucketFor(10:35:42, Minutes(1)) → 10:35:00
func BucketFor(t time.Time, tf Timeframe) time.Time {
	return t.Truncate(tf.Duration())
}
