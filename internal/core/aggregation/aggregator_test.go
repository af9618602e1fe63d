package aggregation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestOperators_InitialAndApply(t *testing.T) {
	tests := []struct {
		name        string
		op          string
		incoming    decimal.Decimal
		current     decimal.Decimal
		next        decimal.Decimal
		wantInitial decimal.Decimal
		wantApply   decimal.Decimal
	}{
		{
			name:        "count sums finer counts",
			op:          OpCount,
			incoming:    decimal.NewFromInt(12),
			current:     decimal.NewFromInt(9),
			next:        decimal.NewFromInt(4),
			wantInitial: decimal.NewFromInt(12),
			wantApply:   decimal.NewFromInt(13),
		},
		{
			name:        "sum",
			op:          OpSum,
			incoming:    decimal.NewFromInt(3),
			current:     decimal.NewFromInt(9),
			next:        decimal.NewFromInt(4),
			wantInitial: decimal.NewFromInt(3),
			wantApply:   decimal.NewFromInt(13),
		},
		{
			name:        "min keeps lower",
			op:          OpMin,
			incoming:    decimal.NewFromInt(3),
			current:     decimal.NewFromInt(9),
			next:        decimal.NewFromInt(4),
			wantInitial: decimal.NewFromInt(3),
			wantApply:   decimal.NewFromInt(4),
		},
		{
			name:        "max keeps higher",
			op:          OpMax,
			incoming:    decimal.NewFromInt(3),
			current:     decimal.NewFromInt(9),
			next:        decimal.NewFromInt(4),
			wantInitial: decimal.NewFromInt(3),
			wantApply:   decimal.NewFromInt(9),
		},
		{
			name:        "first keeps current",
			op:          OpFirst,
			incoming:    decimal.NewFromInt(3),
			current:     decimal.NewFromInt(9),
			next:        decimal.NewFromInt(4),
			wantInitial: decimal.NewFromInt(3),
			wantApply:   decimal.NewFromInt(9),
		},
		{
			name:        "last takes incoming",
			op:          OpLast,
			incoming:    decimal.NewFromInt(3),
			current:     decimal.NewFromInt(9),
			next:        decimal.NewFromInt(4),
			wantInitial: decimal.NewFromInt(3),
			wantApply:   decimal.NewFromInt(4),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			agg, ok := Operators[tc.op]
			require.True(t, ok)
			require.True(t, tc.wantInitial.Equal(agg.Initial(tc.incoming)))
			require.True(t, tc.wantApply.Equal(agg.Apply(tc.current, tc.next)))
		})
	}
}

func TestOperators_Expressions(t *testing.T) {
	tests := []struct {
		op         string
		wantExpr   string
		wantRollup string
	}{
		{OpCount, "COUNT(*)", "SUM(trades)"},
		{OpSum, "SUM(trades)", "SUM(trades)"},
		{OpMin, "MIN(trades)", "MIN(trades)"},
		{OpMax, "MAX(trades)", "MAX(trades)"},
		{OpFirst, "EARLIEST_BY_OFFSET(trades)", "EARLIEST_BY_OFFSET(trades)"},
		{OpLast, "LATEST_BY_OFFSET(trades)", "LATEST_BY_OFFSET(trades)"},
	}
	for _, tc := range tests {
		t.Run(tc.op, func(t *testing.T) {
			agg := Operators[tc.op]
			require.Equal(t, tc.wantExpr, agg.Expr("trades"))
			require.Equal(t, tc.wantRollup, agg.Rollup("trades"))
		})
	}
}

func TestValidOperator(t *testing.T) {
	for _, op := range []string{OpCount, OpSum, OpMin, OpMax, OpFirst, OpLast} {
		require.True(t, ValidOperator(op), op)
	}
	require.False(t, ValidOperator("avg"))
	require.False(t, ValidOperator(""))
}

func TestFoldRows(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	measures := []Measure{
		{Column: Column{Name: "open"}, Op: OpFirst},
		{Column: Column{Name: "high"}, Op: OpMax},
		{Column: Column{Name: "low"}, Op: OpMin},
		{Column: Column{Name: "close"}, Op: OpLast},
		{Column: Column{Name: "volume"}, Op: OpSum},
	}
	row := func(minute int, o, h, l, c, v int64) Row {
		return Row{
			Key:         "EURUSD|",
			Keys:        map[string]string{"symbol": "EURUSD"},
			WindowStart: t0.Add(time.Duration(minute) * time.Minute),
			Values: map[string]decimal.Decimal{
				"open": decimal.NewFromInt(o), "high": decimal.NewFromInt(h),
				"low": decimal.NewFromInt(l), "close": decimal.NewFromInt(c),
				"volume": decimal.NewFromInt(v),
			},
		}
	}

	got, ok := FoldRows(measures, []Row{row(0, 10, 12, 9, 11, 5), row(1, 11, 15, 10, 14, 7), row(2, 14, 14, 8, 9, 1)})
	require.True(t, ok)
	require.Equal(t, t0, got.WindowStart)
	require.Equal(t, "EURUSD", got.Keys["symbol"])
	require.True(t, decimal.NewFromInt(10).Equal(got.Values["open"]))
	require.True(t, decimal.NewFromInt(15).Equal(got.Values["high"]))
	require.True(t, decimal.NewFromInt(8).Equal(got.Values["low"]))
	require.True(t, decimal.NewFromInt(9).Equal(got.Values["close"]))
	require.True(t, decimal.NewFromInt(13).Equal(got.Values["volume"]))

	_, ok = FoldRows(measures, nil)
	require.False(t, ok)
}
