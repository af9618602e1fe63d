// Package cli provides the aevon-rollup command-line interface.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aevon-lab/aevon-rollup/internal/config"
	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/core/storage/postgres"
	"github.com/aevon-lab/aevon-rollup/internal/rollup"
)

// Version is set at build time.
var Version = "0.1.0"

// app carries state shared by every subcommand of one root command.
type app struct {
	cfgFile string
	verbose bool
	cfg     *config.Config
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "aevon-rollup",
		Short: "Compile aggregation specs into streaming rollup definitions",
		Long: `aevon-rollup compiles aggregation specs into an ordered chain of derived
tables and streams, applies them to the streaming SQL engine, and serves the
materialized buckets over HTTP.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: built-in defaults plus ROLLUP_* env)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(a.newPlanCommand())
	rootCmd.AddCommand(a.newApplyCommand())
	rootCmd.AddCommand(a.newServeCommand())
	rootCmd.AddCommand(a.newMigrateCommand())
	rootCmd.AddCommand(a.newHistoryCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func (a *app) compiler() *rollup.Compiler {
	return rollup.NewCompiler(
		rollup.WithNamespaceSuffix(a.cfg.Rollup.NamespaceSuffix),
		rollup.WithEmptyJoin(a.cfg.Rollup.EmptyJoin),
	)
}

// selectSpecs returns the named specs, or every loaded spec when names is empty.
func (a *app) selectSpecs(names []string) ([]*aggregation.Spec, error) {
	if len(names) == 0 {
		return a.cfg.Specs, nil
	}
	specs := make([]*aggregation.Spec, 0, len(names))
	for _, name := range names {
		spec, err := a.cfg.Spec(name)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (a *app) openDB() (*sql.DB, error) {
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	db, err := postgres.Open(a.cfg.Database.DSN, a.cfg.Database.MaxOpenConns, a.cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}
