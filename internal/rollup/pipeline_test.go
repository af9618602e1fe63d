package rollup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/metrics"
	rollupmocks "github.com/aevon-lab/aevon-rollup/internal/mocks/rollup"
	"github.com/aevon-lab/aevon-rollup/internal/model"
)

func topicIs(name string) interface{} {
	return mock.MatchedBy(func(pe model.PhysicalEntity) bool { return pe.Topic == name })
}

func TestPipeline_ExecutesInPlanOrder(t *testing.T) {
	executor := rollupmocks.NewExecutor(t)

	var issued []string
	executor.EXPECT().
		Execute(mock.Anything, mock.Anything, mock.Anything).
		Run(func(_ context.Context, pe model.PhysicalEntity, statement string) {
			require.Contains(t, statement, "CREATE ")
			issued = append(issued, pe.Topic)
		}).
		Return(nil).
		Times(6)

	m := metrics.New()
	plan, err := NewPipeline(nil, executor, WithMetrics(m)).Apply(context.Background(), mustSpec(t, rateSpec))
	require.NoError(t, err)
	require.Equal(t, plan.Names(), issued)
}

func TestPipeline_FailureAbortsRemainingSteps(t *testing.T) {
	executor := rollupmocks.NewExecutor(t)
	engineErr := errors.New("topic bar_1s_final already exists with a different schema")

	executor.EXPECT().Execute(mock.Anything, topicIs("bar_1s_final"), mock.Anything).Return(nil).Once()
	executor.EXPECT().Execute(mock.Anything, topicIs("bar_1s_final_s"), mock.Anything).Return(nil).Once()
	executor.EXPECT().Execute(mock.Anything, topicIs("bar_1m_live"), mock.Anything).Return(engineErr).Once()

	_, err := NewPipeline(nil, executor).Apply(context.Background(), mustSpec(t, rateSpec))
	require.Error(t, err)
	require.ErrorIs(t, err, engineErr)

	var failure *ExecutionFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "bars", failure.Spec)
	require.Equal(t, 3, failure.Step)
	require.Equal(t, "bar_1m_live", failure.Name)
	require.Contains(t, failure.Error(), `spec "bars" step 3 (live bar_1m_live)`)
}

func TestPipeline_Cancellation(t *testing.T) {
	t.Run("before the first step", func(t *testing.T) {
		executor := rollupmocks.NewExecutor(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewPipeline(nil, executor).Apply(ctx, mustSpec(t, rateSpec))
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("during a step", func(t *testing.T) {
		executor := rollupmocks.NewExecutor(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		executor.EXPECT().Execute(mock.Anything, topicIs("bar_1s_final"), mock.Anything).Return(nil).Once()
		executor.EXPECT().
			Execute(mock.Anything, topicIs("bar_1s_final_s"), mock.Anything).
			RunAndReturn(func(ctx context.Context, _ model.PhysicalEntity, _ string) error {
				cancel()
				return ctx.Err()
			}).
			Once()

		_, err := NewPipeline(nil, executor).Apply(ctx, mustSpec(t, rateSpec))
		require.ErrorIs(t, err, context.Canceled)

		var failure *ExecutionFailure
		require.False(t, errors.As(err, &failure))
	})
}

func TestPipeline_CompileErrorIssuesNothing(t *testing.T) {
	executor := rollupmocks.NewExecutor(t)
	spec := mustSpec(t, rateSpec)
	spec.Keys = nil

	_, err := NewPipeline(nil, executor).Apply(context.Background(), spec)
	require.Error(t, err)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestPipeline_ApplyAll(t *testing.T) {
	executor := rollupmocks.NewExecutor(t)

	other := mustSpec(t, rateSpec)
	other.Name = "candles"
	other.Alias = "candles"

	var mu sync.Mutex
	issued := map[string]int{}
	executor.EXPECT().
		Execute(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, pe model.PhysicalEntity, _ string) error {
			mu.Lock()
			defer mu.Unlock()
			issued[pe.Base]++
			if pe.Topic == "candles_1m_final" {
				return errors.New("engine unavailable")
			}
			return nil
		})

	err := NewPipeline(nil, executor, WithConcurrency(2)).
		ApplyAll(context.Background(), []*aggregation.Spec{mustSpec(t, rateSpec), other})
	require.Error(t, err)
	require.Contains(t, err.Error(), `apply "candles"`)
	require.NotContains(t, err.Error(), `apply "bars"`)

	require.Equal(t, 6, issued["bar"])
	require.Equal(t, 4, issued["candles"])
}
