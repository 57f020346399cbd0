package cli

import (
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Prints recent runs recorded in the state database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newService()
		if err != nil {
			return err
		}
		defer cleanup()

		logs, err := svc.ListRunLogs(historyLimit)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Run", "Started", "Took", "Status", "State", "Rows", "Matched", "Error"})
		for _, l := range logs {
			t.AppendRow(table.Row{
				shortID(l.ID),
				humanize.Time(l.StartedAt),
				l.FinishedAt.Sub(l.StartedAt).Round(time.Millisecond),
				l.Status,
				l.State,
				l.RowsWritten,
				l.QueryRows,
				l.Error,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
