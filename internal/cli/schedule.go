package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var (
	scheduleExpr  string
	scheduleWatch bool
)

func init() {
	scheduleCmd.Flags().StringVar(&scheduleExpr, "cron", "", "cron expression (default: schedule from config)")
	scheduleCmd.Flags().BoolVar(&scheduleWatch, "watch", false, "also run whenever the config file changes")
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Runs the pipeline on a cron schedule until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newService()
		if err != nil {
			return err
		}
		defer cleanup()

		expr := scheduleExpr
		if expr == "" {
			expr = cfg.Schedule
		}
		ctx := cmd.Context()
		if err := svc.StartSchedule(ctx, expr); err != nil {
			return err
		}
		if scheduleWatch {
			if err := svc.WatchConfig(ctx); err != nil {
				svc.Stop()
				return err
			}
		}

		<-ctx.Done()
		slog.Info("shutting down, waiting for the running job")
		svc.Stop()
		waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc.WaitRunning(waitCtx)
		return nil
	},
}
