package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aevon-lab/aevon-rollup/internal/core/storage"
	"github.com/aevon-lab/aevon-rollup/internal/core/storage/postgres"
)

func (a *app) newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently issued definitions from the journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := postgres.NewJournalAdapter(db).Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			renderHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries")
	return cmd
}

func renderHistory(w io.Writer, entries []storage.JournalEntry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "(0 definitions)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Issued", "Run", "Role", "Name", "Status", "Error"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.IssuedAt.UTC().Format(time.RFC3339), e.RunID, e.Role, e.Name, e.Status, e.Error})
	}
	t.Render()
}
