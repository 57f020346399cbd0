package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reloadCmd)
}

var reloadCmd = &cobra.Command{
	Use:   "reload [csv]",
	Short: "Replaces the target table with a CSV written by a previous run.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.OutputPath
		if len(args) == 1 {
			path = args[0]
		}
		svc, cleanup, err := newService()
		if err != nil {
			return err
		}
		defer cleanup()

		n, err := svc.ReloadSnapshot(cmd.Context(), path)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "loaded %d rows from %s into %s\n", n, path, cfg.TableName)
		return nil
	},
}
