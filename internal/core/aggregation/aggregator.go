package aggregation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Supported value operators.
const (
	OpCount = "count"
	OpSum   = "sum"
	OpMin   = "min"
	OpMax   = "max"
	OpFirst = "first"
	OpLast  = "last"
)

// Aggregator defines how a value column is computed and rolled up.
// To add a new operator: implement this interface and register it in Operators.
type Aggregator interface {
	// Expr aggregates a raw source column (the 1s stage).
	Expr(field string) string

	// Rollup aggregates a column that is already aggregated at a finer grain.
	Rollup(column string) string

	// Initial returns the folded value after the first row.
	Initial(incoming decimal.Decimal) decimal.Decimal

	// Apply folds an incoming value into an existing one.
	Apply(current, incoming decimal.Decimal) decimal.Decimal
}

// Operators is the registry of all supported value operators.
var Operators = map[string]Aggregator{
	OpCount: countAgg{},
	OpSum:   sumAgg{},
	OpMin:   minAgg{},
	OpMax:   maxAgg{},
	OpFirst: firstAgg{},
	OpLast:  lastAgg{},
}

// ValidOperator reports whether op is a registered operator.
func ValidOperator(op string) bool {
	_, ok := Operators[op]
	return ok
}

// countAgg counts source rows; finer counts roll up by summing.
type countAgg struct{}

func (countAgg) Expr(string) string                             { return "COUNT(*)" }
func (countAgg) Rollup(c string) string                         { return fmt.Sprintf("SUM(%s)", c) }
func (countAgg) Initial(v decimal.Decimal) decimal.Decimal      { return v }
func (countAgg) Apply(cur, inc decimal.Decimal) decimal.Decimal { return cur.Add(inc) }

type sumAgg struct{}

func (sumAgg) Expr(f string) string                           { return fmt.Sprintf("SUM(%s)", f) }
func (sumAgg) Rollup(c string) string                         { return fmt.Sprintf("SUM(%s)", c) }
func (sumAgg) Initial(v decimal.Decimal) decimal.Decimal      { return v }
func (sumAgg) Apply(cur, inc decimal.Decimal) decimal.Decimal { return cur.Add(inc) }

type minAgg struct{}

func (minAgg) Expr(f string) string                      { return fmt.Sprintf("MIN(%s)", f) }
func (minAgg) Rollup(c string) string                    { return fmt.Sprintf("MIN(%s)", c) }
func (minAgg) Initial(v decimal.Decimal) decimal.Decimal { return v }
func (minAgg) Apply(cur, inc decimal.Decimal) decimal.Decimal {
	if inc.LessThan(cur) {
		return inc
	}
	return cur
}

type maxAgg struct{}

func (maxAgg) Expr(f string) string                      { return fmt.Sprintf("MAX(%s)", f) }
func (maxAgg) Rollup(c string) string                    { return fmt.Sprintf("MAX(%s)", c) }
func (maxAgg) Initial(v decimal.Decimal) decimal.Decimal { return v }
func (maxAgg) Apply(cur, inc decimal.Decimal) decimal.Decimal {
	if inc.GreaterThan(cur) {
		return inc
	}
	return cur
}

// firstAgg keeps the earliest value by offset.
type firstAgg struct{}

func (firstAgg) Expr(f string) string                         { return fmt.Sprintf("EARLIEST_BY_OFFSET(%s)", f) }
func (firstAgg) Rollup(c string) string                       { return fmt.Sprintf("EARLIEST_BY_OFFSET(%s)", c) }
func (firstAgg) Initial(v decimal.Decimal) decimal.Decimal    { return v }
func (firstAgg) Apply(cur, _ decimal.Decimal) decimal.Decimal { return cur }

// lastAgg keeps the latest value by offset.
type lastAgg struct{}

func (lastAgg) Expr(f string) string                         { return fmt.Sprintf("LATEST_BY_OFFSET(%s)", f) }
func (lastAgg) Rollup(c string) string                       { return fmt.Sprintf("LATEST_BY_OFFSET(%s)", c) }
func (lastAgg) Initial(v decimal.Decimal) decimal.Decimal    { return v }
func (lastAgg) Apply(_, inc decimal.Decimal) decimal.Decimal { return inc }

// FoldRows folds rows (in the given order) into one row using each measure's
// operator. Keys and the window start come from the first row.
// Returns false when rows is empty.
func FoldRows(measures []Measure, rows []Row) (Row, bool) {
	if len(rows) == 0 {
		return Row{}, false
	}

	out := Row{
		Key:         rows[0].Key,
		Keys:        copyStrings(rows[0].Keys),
		WindowStart: rows[0].WindowStart,
		Values:      make(map[string]decimal.Decimal, len(measures)),
		numericKeys: copyFlags(rows[0].numericKeys),
	}
	for _, m := range measures {
		agg, ok := Operators[m.Op]
		if !ok {
			continue
		}
		initialized := false
		var acc decimal.Decimal
		for _, r := range rows {
			v, ok := r.Values[m.Name]
			if !ok {
				continue
			}
			if !initialized {
				acc = agg.Initial(v)
				initialized = true
				continue
			}
			acc = agg.Apply(acc, v)
		}
		if initialized {
			out.Values[m.Name] = acc
		}
	}
	return out, true
}
