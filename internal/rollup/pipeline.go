package rollup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/metrics"
	"github.com/aevon-lab/aevon-rollup/internal/model"
)

// Executor issues one definition against the engine. Implementations must
// treat create-if-not-exists definitions idempotently.
type Executor interface {
	Execute(ctx context.Context, entity model.PhysicalEntity, statement string) error
}

// ExecutionFailure reports the definition the executor rejected. Steps
// issued before it are left in place.
type ExecutionFailure struct {
	Spec string
	Step int
	Role aggregation.Role
	Name string
	Err  error
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("spec %q step %d (%s %s): %v", e.Spec, e.Step, e.Role, e.Name, e.Err)
}

func (e *ExecutionFailure) Unwrap() error { return e.Err }

// Pipeline compiles specs and issues their definitions in plan order.
type Pipeline struct {
	compiler    *Compiler
	executor    Executor
	metrics     *metrics.Metrics
	concurrency int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithMetrics records definition outcomes.
func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithConcurrency bounds how many specs ApplyAll runs at once.
func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) { p.concurrency = n }
}

// NewPipeline creates a pipeline. A nil compiler uses the defaults.
func NewPipeline(compiler *Compiler, executor Executor, opts ...PipelineOption) *Pipeline {
	if compiler == nil {
		compiler = NewCompiler()
	}
	p := &Pipeline{
		compiler:    compiler,
		executor:    executor,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply compiles spec and executes its plan.
func (p *Pipeline) Apply(ctx context.Context, spec *aggregation.Spec) (*Plan, error) {
	plan, err := p.compiler.Compile(ctx, spec)
	if err != nil {
		return nil, err
	}
	return plan, p.Execute(ctx, plan)
}

// Execute issues each step of plan in order. The first failure aborts the
// remaining steps and is returned as *ExecutionFailure; cancellation is
// returned as the context error.
func (p *Pipeline) Execute(ctx context.Context, plan *Plan) error {
	slog.Info("[Pipeline] Applying plan", "spec", plan.Spec.Name, "steps", len(plan.Steps))

	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			slog.Warn("[Pipeline] Apply interrupted by context cancellation",
				"spec", plan.Spec.Name,
				"next_step", step.Order,
			)
			return err
		}

		err := p.executor.Execute(ctx, step.Entity, step.Statement.String())
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				p.metrics.ObserveDefinition(step.Role().String(), metrics.ResultCanceled)
				return err
			}
			p.metrics.ObserveDefinition(step.Role().String(), metrics.ResultError)
			slog.Error("[Pipeline] Definition failed",
				"spec", plan.Spec.Name,
				"step", step.Order,
				"role", step.Role().String(),
				"name", step.Name(),
				"blocked", plan.Dependents(step.Name()),
				"error", err,
			)
			return &ExecutionFailure{
				Spec: plan.Spec.Name,
				Step: step.Order,
				Role: step.Role(),
				Name: step.Name(),
				Err:  err,
			}
		}

		p.metrics.ObserveDefinition(step.Role().String(), metrics.ResultOK)
		slog.Debug("[Pipeline] Definition applied",
			"spec", plan.Spec.Name,
			"step", step.Order,
			"role", step.Role().String(),
			"name", step.Name(),
		)
	}

	slog.Info("[Pipeline] Plan applied", "spec", plan.Spec.Name)
	return nil
}

// ApplyAll applies independent specs concurrently. Steps within a spec stay
// sequential; one spec failing does not stop the others. All failures are
// returned joined.
func (p *Pipeline) ApplyAll(ctx context.Context, specs []*aggregation.Spec) error {
	var g errgroup.Group
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}

	errs := make([]error, len(specs))
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			if _, err := p.Apply(ctx, spec); err != nil {
				errs[i] = fmt.Errorf("apply %q: %w", spec.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
