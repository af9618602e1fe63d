package aggregation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestValidateWindows(t *testing.T) {
	tests := []struct {
		name      string
		input     *ExpressionAnalysisResult
		wantGrace map[string]int
		wantError string
	}{
		{
			name:  "no windows is valid",
			input: &ExpressionAnalysisResult{},
		},
		{
			name:      "grace walk from zero",
			input:     &ExpressionAnalysisResult{Windows: []string{"5m", "1m"}, BaseUnitSeconds: intPtr(1), GraceSeconds: intPtr(0)},
			wantGrace: map[string]int{"1m": 1, "5m": 2},
		},
		{
			name:      "nil base grace counts from zero",
			input:     &ExpressionAnalysisResult{Windows: []string{"1m", "5m", "1h"}, BaseUnitSeconds: intPtr(1)},
			wantGrace: map[string]int{"1m": 1, "5m": 2, "1h": 3},
		},
		{
			name:      "base grace offsets the walk",
			input:     &ExpressionAnalysisResult{Windows: []string{"15s", "1m"}, BaseUnitSeconds: intPtr(5), GraceSeconds: intPtr(10)},
			wantGrace: map[string]int{"15s": 11, "1m": 12},
		},
		{
			name: "recorded grace matching the counter is kept",
			input: &ExpressionAnalysisResult{
				Windows:           []string{"1m", "5m"},
				BaseUnitSeconds:   intPtr(1),
				GracePerTimeframe: map[string]int{"5m": 2},
			},
			wantGrace: map[string]int{"1m": 1, "5m": 2},
		},
		{
			name:      "duplicate tokens count once",
			input:     &ExpressionAnalysisResult{Windows: []string{"1m", "1m", "5m"}, BaseUnitSeconds: intPtr(1)},
			wantGrace: map[string]int{"1m": 1, "5m": 2},
		},
		{
			name:      "missing base unit",
			input:     &ExpressionAnalysisResult{Windows: []string{"1m"}},
			wantError: "base unit required",
		},
		{
			name:      "base unit not dividing 60",
			input:     &ExpressionAnalysisResult{Windows: []string{"1m"}, BaseUnitSeconds: intPtr(7)},
			wantError: "base unit must divide 60",
		},
		{
			name:      "window not a multiple of base",
			input:     &ExpressionAnalysisResult{Windows: []string{"10s"}, BaseUnitSeconds: intPtr(4)},
			wantError: "multiple of the 4s base unit",
		},
		{
			name:      "minute-plus window must be whole minutes",
			input:     &ExpressionAnalysisResult{Windows: []string{"90s"}, BaseUnitSeconds: intPtr(1)},
			wantError: "whole minutes",
		},
		{
			name: "recorded grace mismatch",
			input: &ExpressionAnalysisResult{
				Windows:           []string{"1m", "5m"},
				BaseUnitSeconds:   intPtr(1),
				GracePerTimeframe: map[string]int{"5m": 5},
			},
			wantError: "grace must be parent grace + 1s",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateWindows(tc.input)
			if tc.wantError != "" {
				require.Error(t, err)
				var cfgErr *ConfigError
				require.True(t, errors.As(err, &cfgErr))
				require.Contains(t, err.Error(), tc.wantError)
				return
			}
			require.NoError(t, err)
			if tc.wantGrace != nil {
				require.Equal(t, tc.wantGrace, tc.input.GracePerTimeframe)
			}
		})
	}
}

func TestValidateWindows_GraceStrictlyIncreasing(t *testing.T) {
	windows := []string{"1h", "1m", "30m", "5s", "15m", "5m", "1d", "30s"}
	r := &ExpressionAnalysisResult{Windows: windows, BaseUnitSeconds: intPtr(5), GraceSeconds: intPtr(3)}
	require.NoError(t, ValidateWindows(r))
	require.Len(t, r.GracePerTimeframe, len(windows))

	ordered := []string{"5s", "30s", "1m", "5m", "15m", "30m", "1h", "1d"}
	for i, w := range ordered {
		require.Equal(t, 3+i+1, r.GracePerTimeframe[w], w)
	}
}

func TestValidateWindows_BaseUnitsDividingSixty(t *testing.T) {
	for _, base := range []int{1, 2, 3, 4, 5, 6, 10, 12, 15, 20, 30, 60} {
		r := &ExpressionAnalysisResult{Windows: []string{"1m", "1h"}, BaseUnitSeconds: intPtr(base)}
		require.NoError(t, ValidateWindows(r), "base %d", base)
	}
	for _, base := range []int{0, 7, 8, 9, 11, 45} {
		r := &ExpressionAnalysisResult{Windows: []string{"1m"}, BaseUnitSeconds: intPtr(base)}
		require.Error(t, ValidateWindows(r), "base %d", base)
	}
}

func TestRoleTraits(t *testing.T) {
	tests := []struct {
		role Role
		want Traits
	}{
		{RoleLive, Traits{Windowed: true, Emit: EmitChanges}},
		{RoleFinal, Traits{Windowed: true, Emit: EmitFinal}},
		{RoleFinal1s, Traits{Windowed: true, Emit: EmitFinal}},
		{RoleFinal1sStream, Traits{}},
		{RolePrev1m, Traits{}},
		{RoleFill, Traits{Windowed: true, Emit: EmitChanges}},
		{RoleHb, Traits{Windowed: true, Emit: EmitChanges}},
	}
	for _, tc := range tests {
		t.Run(tc.role.String(), func(t *testing.T) {
			require.Equal(t, tc.want, tc.role.Traits())
		})
	}
	require.Len(t, Roles, len(tests))
}
