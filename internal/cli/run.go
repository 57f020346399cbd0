package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the pipeline once: extract, transform, save CSV, load table, query.",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newService()
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := svc.RunJob(cmd.Context())
		if err != nil {
			if res != nil {
				fmt.Fprintf(os.Stderr, "run %s stopped at %s\n", res.RunID, res.State)
			}
			return err
		}
		fmt.Fprintf(os.Stderr, "run %s: %d rows written to %s and %s, %d matched the query (%s)\n",
			res.RunID, res.RowsWritten, cfg.OutputPath, cfg.TableName, res.QueryRows, res.Duration.Round(time.Millisecond))
		return nil
	},
}
