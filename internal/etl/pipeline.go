package etl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"gdpetl/internal/dbclient"
)

// ── Pipeline ───────────────────────────────────────────────
// Orchestrates: fetch → extract → transform → file sink → connect →
// table sink → query → close. Every stage runs to completion before the next
// starts; the first error aborts the run. Sinks that already succeeded are
// left as they are.

var tracer = otel.Tracer("gdpetl/internal/etl")

// MinBillions is the threshold of the fixed verification query.
const MinBillions = 100

// State is a step of the pipeline state machine.
type State string

const (
	StateInitialized State = "initialized"
	StateExtracted   State = "extracted"
	StateTransformed State = "transformed"
	StateFileSaved   State = "file_saved"
	StateDBConnected State = "db_connected"
	StateDBLoaded    State = "db_loaded"
	StateQueried     State = "queried"
	StateClosed      State = "closed"
)

// Milestone messages written to the progress log, in order.
const (
	MsgPreliminaries = "Preliminaries complete. Initiating ETL process."
	MsgExtracted     = "Data extraction complete. Initiating Transformation process."
	MsgTransformed   = "Data transformation complete. Initiating loading process."
	MsgFileSaved     = "Data saved to CSV file."
	MsgDBConnected   = "SQL Connection initiated."
	MsgDBLoaded      = "Data loaded to Database as table."
	MsgQuerying      = "Running the query."
	MsgProcessDone   = "Process Complete."
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Milestones lists every progress message of a successful run in order.
var Milestones = []string{
	MsgPreliminaries, MsgExtracted, MsgTransformed, MsgFileSaved,
	MsgDBConnected, MsgDBLoaded, MsgQuerying, MsgProcessDone,
}

// Job is the full description of one pipeline run.
type Job struct {
	Name            string   `json:"name"`
	SourceURL       string   `json:"sourceUrl"`
	ExpectedColumns []string `json:"expectedColumns"`
	OutputColumns   []string `json:"outputColumns"`
	OutputPath      string   `json:"outputPath"`
	TableName       string   `json:"tableName"`
	FilterQuery     string   `json:"filterQuery,omitempty"` // empty: DefaultFilterQuery
}

// RunResult is the outcome of running a job.
type RunResult struct {
	RunID         string        `json:"runId"`
	JobName       string        `json:"jobName"`
	Status        string        `json:"status"` // "success" | "error"
	State         State         `json:"state"`  // last state reached
	RowsExtracted int           `json:"rowsExtracted"`
	RowsWritten   int           `json:"rowsWritten"`
	QueryRows     int           `json:"queryRows"`
	Query         string        `json:"query,omitempty"`
	Result        *QueryResult  `json:"result,omitempty"`
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
}

// Succeeded reports whether the run reached the closed state without error.
func (r *RunResult) Succeeded() bool { return r.Status == statusSuccess }

// ProgressLogger records milestone messages.
type ProgressLogger interface {
	Log(message string) error
}

// ConnectFunc opens the relational store used by the table sink and the
// query runner. The pipeline closes what it returns.
type ConnectFunc func(ctx context.Context) (dbclient.Connector, error)

// Pipeline holds the collaborators of a run. It keeps no state between runs
// and can be reused.
type Pipeline struct {
	Fetcher     Fetcher
	Extractor   Extractor
	Transformer *RecordTransformer // rounding mode; columns come from Job.OutputColumns when set
	Connect     ConnectFunc
	Progress    ProgressLogger
	Out         io.Writer // query output; nil to discard
}

// DefaultFilterQuery builds the verification query selecting every row with
// at least MinBillions, with identifiers quoted for conn's dialect.
func DefaultFilterQuery(conn dbclient.Connector, table, gdpColumn string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s >= %d",
		conn.QuoteIdent(table), conn.QuoteIdent(gdpColumn), MinBillions)
}

// Run executes job end-to-end. The returned result is non-nil even on error
// and records the last state reached.
func (p *Pipeline) Run(ctx context.Context, job Job) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		RunID:     uuid.New().String(),
		JobName:   job.Name,
		State:     StateInitialized,
		StartedAt: start,
	}

	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", result.RunID),
		attribute.String("job.name", job.Name),
		attribute.String("source.url", job.SourceURL),
	)

	err := p.run(ctx, job, result)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = statusError
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(result.State))
		slog.ErrorContext(ctx, "etl run failed", "run", result.RunID, "state", result.State, "err", err)
		return result, err
	}
	result.Status = statusSuccess
	slog.InfoContext(ctx, "etl run complete",
		"run", result.RunID,
		"rows", result.RowsWritten,
		"queryRows", result.QueryRows,
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, job Job, result *RunResult) error {
	if err := p.progress(MsgPreliminaries); err != nil {
		return err
	}

	// 1. Extract.
	var raw RawTable
	err := stage(ctx, "extract", func(ctx context.Context) error {
		markup, err := p.Fetcher.Fetch(ctx, job.SourceURL)
		if err != nil {
			return err
		}
		raw, err = p.Extractor.Extract(ctx, markup, job.ExpectedColumns)
		return err
	})
	if err != nil {
		return err
	}
	result.State = StateExtracted
	result.RowsExtracted = len(raw.Records)
	if err := p.progress(MsgExtracted); err != nil {
		return err
	}

	// 2. Transform.
	var set RecordSet
	err = stage(ctx, "transform", func(context.Context) error {
		var terr error
		set, terr = p.transformer(job).Transform(raw)
		return terr
	})
	if err != nil {
		return err
	}
	result.State = StateTransformed
	if err := p.progress(MsgTransformed); err != nil {
		return err
	}

	// 3. File sink.
	err = stage(ctx, "load.file", func(ctx context.Context) error {
		return NewFileSink(job.OutputPath).Write(ctx, set)
	})
	if err != nil {
		return err
	}
	result.State = StateFileSaved
	if err := p.progress(MsgFileSaved); err != nil {
		return err
	}

	// 4. Table sink + query on one scoped connection.
	if err := p.loadAndQuery(ctx, job, set, result); err != nil {
		return err
	}
	result.State = StateClosed
	return nil
}

// loadAndQuery owns the connection lifetime: it is opened here and closed on
// every return path. The table write commits before the query starts.
func (p *Pipeline) loadAndQuery(ctx context.Context, job Job, set RecordSet, result *RunResult) (err error) {
	conn, err := p.Connect(ctx)
	if err != nil {
		return &SinkError{Sink: "table", Err: fmt.Errorf("connect: %w", err)}
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = &SinkError{Sink: "table", Err: fmt.Errorf("close: %w", cerr)}
		}
	}()
	if err := conn.TestConnection(ctx); err != nil {
		return &SinkError{Sink: "table", Err: fmt.Errorf("connect: %w", err)}
	}
	result.State = StateDBConnected
	if err := p.progress(MsgDBConnected); err != nil {
		return err
	}

	err = stage(ctx, "load.table", func(ctx context.Context) error {
		return NewTableSink(conn, job.TableName).Write(ctx, set)
	})
	if err != nil {
		return err
	}
	result.State = StateDBLoaded
	result.RowsWritten = set.Len()
	if err := p.progress(MsgDBLoaded); err != nil {
		return err
	}

	query := job.FilterQuery
	if query == "" {
		query = DefaultFilterQuery(conn, job.TableName, set.GDPColumn())
	}
	result.Query = query
	if err := p.progress(MsgQuerying); err != nil {
		return err
	}
	err = stage(ctx, "query", func(ctx context.Context) error {
		qr, err := NewQueryRunner(conn, p.Out).Run(ctx, query)
		if err != nil {
			return err
		}
		result.Result = qr
		result.QueryRows = len(qr.Rows)
		return nil
	})
	if err != nil {
		return err
	}
	result.State = StateQueried
	return p.progress(MsgProcessDone)
}

// transformer returns the configured transformer writing the job's output
// columns. Jobs without output columns keep the transformer's own.
func (p *Pipeline) transformer(job Job) *RecordTransformer {
	t := RecordTransformer{Mode: RoundHalfEven}
	if p.Transformer != nil {
		t = *p.Transformer
	}
	if len(job.OutputColumns) > 0 {
		t.Columns = job.OutputColumns
	}
	return &t
}

func (p *Pipeline) progress(msg string) error {
	if p.Progress == nil {
		return nil
	}
	if err := p.Progress.Log(msg); err != nil {
		return &SinkError{Sink: "progress log", Err: err}
	}
	return nil
}

// stage runs fn inside a tracing span named after the stage.
func stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
		return err
	}
	return nil
}
