package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gdpetl/internal/config"
	"gdpetl/internal/domain"
	"gdpetl/internal/service"
	"gdpetl/internal/storage"
)

var (
	cfgPath   string
	verbose   bool
	noHistory bool
	overrides config.Config
	dbDriver  string
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gdpetl",
	Short: "gdpetl extracts national GDP figures from a web page into CSV and a SQL table.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if dbDriver != "" {
			overrides.Database.Driver = domain.DatabaseDriver(dbDriver)
		}
		if err := loaded.Apply(overrides); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&cfgPath, "config", "c", config.DefaultFile, "config file (json5); <name>.local.<ext> overrides it")
	f.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	f.BoolVar(&noHistory, "no-history", false, "do not record runs in the state database")

	f.StringVar(&overrides.SourceURL, "url", "", "source page URL (http(s):// or file://)")
	f.StringVar(&overrides.OutputPath, "output", "", "CSV output path")
	f.StringVar(&overrides.TableName, "table", "", "target table name")
	f.StringVar(&overrides.LogPath, "log", "", "progress log path")
	f.StringVar(&overrides.StatePath, "state", "", "state database path (run history)")
	f.StringVar(&dbDriver, "db-driver", "", "target database driver: sqlite, mysql or postgres")
	f.StringVar(&overrides.Database.Host, "db", "", "sqlite file path, or host for mysql/postgres")
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// newService opens the state database (unless disabled) and returns the
// service with a cleanup func.
func newService() (*service.ETLService, func(), error) {
	if noHistory || cfg.StatePath == "" {
		return service.NewETLService(cfg, cfgPath, nil, nil, os.Stdout), func() {}, nil
	}
	db, err := storage.New(cfg.StatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open state database: %w", err)
	}
	svc := service.NewETLService(cfg, cfgPath, storage.NewETLStore(db), nil, os.Stdout)
	return svc, func() { db.Close() }, nil
}
