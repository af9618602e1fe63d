package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aevon-lab/aevon-rollup/internal/core/storage"
	"github.com/aevon-lab/aevon-rollup/internal/core/storage/postgres"
	"github.com/aevon-lab/aevon-rollup/internal/engine"
	"github.com/aevon-lab/aevon-rollup/internal/metrics"
	"github.com/aevon-lab/aevon-rollup/internal/rollup"
)

func (a *app) newApplyCommand() *cobra.Command {
	var journal bool

	cmd := &cobra.Command{
		Use:   "apply [spec...]",
		Short: "Issue the compiled definitions to the streaming engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := a.selectSpecs(args)
			if err != nil {
				return err
			}

			var executor rollup.Executor = a.engineClient()
			if journal {
				db, err := a.openDB()
				if err != nil {
					return err
				}
				defer db.Close()
				if err := postgres.ValidateSchema(cmd.Context(), db); err != nil {
					return err
				}
				je := storage.NewJournaledExecutor(executor, postgres.NewJournalAdapter(db))
				slog.Info("[Apply] Journaling definitions", "run_id", je.RunID())
				executor = je
			}

			pipeline := rollup.NewPipeline(a.compiler(), executor,
				rollup.WithMetrics(metrics.New()),
				rollup.WithConcurrency(a.cfg.Rollup.Concurrency),
			)
			if err := pipeline.ApplyAll(cmd.Context(), specs); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Applied %d spec(s)\n", len(specs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&journal, "journal", true, "Record every issued definition in Postgres")
	return cmd
}

func (a *app) engineClient() *engine.Client {
	opts := make([]engine.Option, 0, len(a.cfg.Engine.Properties))
	for _, p := range a.cfg.Engine.Properties {
		opts = append(opts, engine.WithProperty(p.Name, p.Value))
	}
	return engine.NewClient(a.cfg.Engine.URL, a.cfg.Engine.Timeout, opts...)
}
