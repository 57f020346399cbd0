package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"gdpetl/internal/service"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Lists the tables and columns of the target database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := service.Connector(cfg)(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		schema, err := conn.Introspect(ctx)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle(fmt.Sprintf("%s: %s", conn.Driver(), cfg.Database.Host))
		t.AppendHeader(table.Row{"Table", "Columns"})
		for _, tbl := range schema.Tables {
			cols := make([]string, len(tbl.Columns))
			for i, c := range tbl.Columns {
				cols[i] = c.Name + " " + c.Type
			}
			t.AppendRow(table.Row{tbl.Name, strings.Join(cols, ", ")})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
