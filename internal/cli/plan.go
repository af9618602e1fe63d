package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aevon-lab/aevon-rollup/internal/rollup"
)

func (a *app) newPlanCommand() *cobra.Command {
	var statements bool

	cmd := &cobra.Command{
		Use:   "plan [spec...]",
		Short: "Show the ordered definitions a spec compiles to",
		Example: `  # Plan every loaded spec
  aevon-rollup plan

  # Plan one spec and print the full statements
  aevon-rollup plan bars --statements`,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := a.selectSpecs(args)
			if err != nil {
				return err
			}

			c := a.compiler()
			for _, spec := range specs {
				plan, err := c.Compile(cmd.Context(), spec)
				if err != nil {
					return fmt.Errorf("compile %q: %w", spec.Name, err)
				}
				renderPlan(cmd.OutOrStdout(), plan, statements)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&statements, "statements", false, "Print the full statement of every step")
	return cmd
}

func renderPlan(w io.Writer, plan *rollup.Plan, statements bool) {
	_, _ = fmt.Fprintf(w, "%s (%d steps)\n", plan.Spec.Name, len(plan.Steps))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Order", "Role", "Kind", "Name", "Upstream"})
	for _, s := range plan.Steps {
		t.AppendRow(table.Row{s.Order, s.Role().String(), s.Statement.Kind.String(), s.Name(), strings.Join(s.Upstream, ", ")})
	}
	t.Render()

	if !statements {
		return
	}
	for _, s := range plan.Steps {
		_, _ = fmt.Fprintf(w, "\n-- %d. %s\n%s\n", s.Order, s.Name(), s.Statement.String())
	}
}
