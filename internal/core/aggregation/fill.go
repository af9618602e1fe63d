package aggregation

import "github.com/shopspring/decimal"

// FillPolicy produces the row to materialize for a bucket given the previous
// bucket's row and the next incoming row. Either may be nil: prev is nil for
// the first bucket of a key, next is nil when a heartbeat fires on an empty
// bucket. Policies must be pure.
type FillPolicy func(prev, next *Row) Row

// Built-in fill policy names, as referenced by `fill:` in spec files.
const (
	FillCarryForward = "carry_forward"
	FillZero         = "zero"
	FillPassthrough  = "passthrough"
)

// FillPolicies holds the built-in policies by name.
var FillPolicies = map[string]FillPolicy{
	FillCarryForward: CarryForward,
	FillZero:         ZeroFill,
	FillPassthrough:  Passthrough,
}

// CarryForward repeats the previous bucket's values into an empty bucket.
func CarryForward(prev, next *Row) Row {
	if next != nil {
		return next.Clone()
	}
	if prev == nil {
		return Row{}
	}
	return prev.Clone()
}

// ZeroFill emits the previous bucket's keys with every value set to zero.
func ZeroFill(prev, next *Row) Row {
	if next != nil {
		return next.Clone()
	}
	if prev == nil {
		return Row{}
	}
	out := prev.Clone()
	for k := range out.Values {
		out.Values[k] = decimal.Zero
	}
	return out
}

// Passthrough emits the previous bucket's keys with no values.
func Passthrough(prev, next *Row) Row {
	if next != nil {
		return next.Clone()
	}
	if prev == nil {
		return Row{}
	}
	return Row{
		Key:         prev.Key,
		Keys:        copyStrings(prev.Keys),
		Values:      map[string]decimal.Decimal{},
		numericKeys: copyFlags(prev.numericKeys),
	}
}
