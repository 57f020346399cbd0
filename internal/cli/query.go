package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gdpetl/internal/etl"
	"gdpetl/internal/service"
)

func init() {
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Runs a query against the target database (default: the verification query).",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conn, err := service.Connector(cfg)(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		query := strings.Join(args, " ")
		if query == "" {
			query = cfg.FilterQuery
		}
		if query == "" {
			query = etl.DefaultFilterQuery(conn, cfg.TableName, cfg.OutputColumns[1])
		}
		_, err = etl.NewQueryRunner(conn, os.Stdout).Run(ctx, query)
		return err
	},
}
