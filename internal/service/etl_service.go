package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"gdpetl/internal/config"
	"gdpetl/internal/dbclient"
	"gdpetl/internal/etl"
	"gdpetl/internal/etl/sources"
	"gdpetl/internal/progress"
	"gdpetl/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// ETL Service: runs the pipeline, records history, schedules runs
// ─────────────────────────────────────────────────────────────

// PipelineFactory builds the pipeline for a configuration.
type PipelineFactory func(cfg config.Config, out io.Writer) (*etl.Pipeline, error)

// ETLService owns the configuration and runs jobs one at a time.
type ETLService struct {
	mu      sync.RWMutex
	cfg     config.Config
	cfgPath string

	store       *storage.ETLStore // nil disables run history
	emitter     EventEmitter
	out         io.Writer
	newPipeline PipelineFactory
	runningJobs runningJobsGuard

	// watcher / cron lifecycle
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewETLService creates an ETLService ready for use. cfgPath is only used by
// WatchConfig to reload the configuration.
func NewETLService(
	cfg config.Config,
	cfgPath string,
	store *storage.ETLStore,
	emitter EventEmitter,
	out io.Writer,
) *ETLService {
	if emitter == nil {
		emitter = LogEmitter{}
	}
	return &ETLService{
		cfg:         cfg,
		cfgPath:     cfgPath,
		store:       store,
		emitter:     emitter,
		out:         out,
		newPipeline: BuildPipeline,
	}
}

// SetPipelineFactory replaces how pipelines are built, e.g. to inject a
// fetcher that does not touch the network.
func (s *ETLService) SetPipelineFactory(f PipelineFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newPipeline = f
}

// Config returns the current configuration.
func (s *ETLService) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// BuildPipeline wires the production collaborators for cfg.
func BuildPipeline(cfg config.Config, out io.Writer) (*etl.Pipeline, error) {
	selector, err := sources.NewSelector(cfg.Selector)
	if err != nil {
		return nil, err
	}
	mode, err := etl.ParseRoundingMode(cfg.Rounding)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.HTTPTimeout()
	if err != nil {
		return nil, err
	}

	return &etl.Pipeline{
		Fetcher:     sources.NewHTTPFetcher(sources.HTTPOptions{Timeout: timeout, UserAgent: cfg.HTTP.UserAgent}),
		Extractor:   sources.NewHTMLExtractor(selector, cfg.Placeholder),
		Transformer: etl.NewRecordTransformer(cfg.OutputColumns, mode),
		Connect:     Connector(cfg),
		Progress:    progress.New(cfg.LogPath),
		Out:         out,
	}, nil
}

// Connector returns a ConnectFunc opening the database named by cfg.
func Connector(cfg config.Config) etl.ConnectFunc {
	return func(ctx context.Context) (dbclient.Connector, error) {
		password, err := cfg.DatabasePassword()
		if err != nil {
			return nil, err
		}
		return dbclient.NewConnector(&cfg.Database, password)
	}
}

// ── Run ────────────────────────────────────────────────────

// RunJob executes the configured job synchronously and records the run.
// A call made while another run of the same job is in flight fails
// immediately.
func (s *ETLService) RunJob(ctx context.Context) (*etl.RunResult, error) {
	s.mu.RLock()
	cfg, factory := s.cfg, s.newPipeline
	s.mu.RUnlock()

	job := cfg.Job()
	if !s.runningJobs.TryLock(job.Name) {
		return nil, fmt.Errorf("job %s is already running", job.Name)
	}
	defer s.runningJobs.Unlock(job.Name)

	pipeline, err := factory(cfg, s.out)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	result, runErr := pipeline.Run(runCtx, job)

	if s.store != nil {
		if err := s.store.CreateRunLog(storage.NewRunLog(job, result)); err != nil {
			slog.Warn("etl: failed to record run", "run", result.RunID, "err", err)
		}
	}

	if runErr == nil {
		s.emitter.Emit(ctx, "etl:run-completed", result)
	} else {
		s.emitter.Emit(ctx, "etl:run-failed", result)
	}
	return result, runErr
}

// ReloadSnapshot loads a CSV file written by a previous run into the
// configured table without fetching the source page.
func (s *ETLService) ReloadSnapshot(ctx context.Context, path string) (int, error) {
	cfg := s.Config()
	set, err := sources.ReadCSVSnapshot(path)
	if err != nil {
		return 0, err
	}

	conn, err := Connector(cfg)(ctx)
	if err != nil {
		return 0, &etl.SinkError{Sink: "table", Err: fmt.Errorf("connect: %w", err)}
	}
	defer conn.Close()

	if err := etl.NewTableSink(conn, cfg.TableName).Write(ctx, set); err != nil {
		return 0, err
	}
	slog.Info("etl: table reloaded from snapshot", "path", path, "table", cfg.TableName, "rows", set.Len())
	return set.Len(), nil
}

// ListRunLogs returns the last limit runs of the configured job.
func (s *ETLService) ListRunLogs(limit int) ([]storage.RunLog, error) {
	if s.store == nil {
		return nil, fmt.Errorf("run history is not enabled")
	}
	return s.store.ListRunLogs(s.Config().Name, limit)
}

// ── Watchers (cron + config file) ─────────────────────────

// StartSchedule runs the job on a cron expression. Ticks that fire while a
// run is still in flight are skipped by the running guard.
func (s *ETLService) StartSchedule(ctx context.Context, expr string) error {
	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		slog.Info("etl cron: running job", "job", s.Config().Name)
		if _, err := s.RunJob(ctx); err != nil {
			slog.Error("etl cron: job failed", "job", s.Config().Name, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	s.mu.Lock()
	if s.cronSched != nil {
		s.cronSched.Stop()
	}
	s.cronSched = c
	s.mu.Unlock()

	c.Start()
	slog.Info("etl cron: scheduled", "expr", expr)
	return nil
}

// WatchConfig reloads the configuration and runs the job whenever the config
// file (or its .local override) changes. Changes are debounced by 500ms.
func (s *ETLService) WatchConfig(ctx context.Context) error {
	if s.cfgPath == "" {
		return fmt.Errorf("no config file to watch")
	}
	absPath, err := filepath.Abs(s.cfgPath)
	if err != nil {
		return fmt.Errorf("bad config path %q: %w", s.cfgPath, err)
	}
	localAbs, _ := filepath.Abs(localConfigPath(s.cfgPath))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir %q: %w", filepath.Dir(absPath), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.watcher = watcher
	s.watchCancel = cancel
	s.mu.Unlock()

	go func() {
		var timer *time.Timer
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				changed, _ := filepath.Abs(event.Name)
				if changed != absPath && changed != localAbs {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(500*time.Millisecond, func() {
					s.reloadAndRun(watchCtx, changed)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("etl watcher: error", "err", err)
			}
		}
	}()

	slog.Info("etl watcher: watching config", "path", absPath)
	return nil
}

func (s *ETLService) reloadAndRun(ctx context.Context, changed string) {
	cfg, err := config.Load(s.cfgPath)
	if err != nil {
		slog.Error("etl watcher: config reload failed, keeping previous config", "path", changed, "err", err)
		return
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	slog.Info("etl watcher: config changed, running job", "path", changed, "job", cfg.Name)
	if _, err := s.RunJob(ctx); err != nil {
		slog.Error("etl watcher: run failed", "job", cfg.Name, "err", err)
	}
}

// WaitRunning blocks until all running jobs finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ETLService) WaitRunning(ctx context.Context) {
	s.runningJobs.WaitAll(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *ETLService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}

func localConfigPath(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)] + ".local" + ext
}
