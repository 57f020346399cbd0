package etl_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdpetl/internal/dbclient"
	"gdpetl/internal/domain"
	"gdpetl/internal/etl"
	"gdpetl/internal/etl/sources"
	"gdpetl/internal/progress"
)

const gdpPage = `<html><body>
<table><tbody><tr><td>navigation</td></tr></tbody></table>
<table><tbody><tr><td>legend</td></tr></tbody></table>
<table class="wikitable"><tbody>
<tr><th>Country/Territory</th><th>UN region</th><th>IMF estimate</th><th>Year</th></tr>
<tr><td>World</td><td>—</td><td>105,568,776</td><td>2023</td></tr>
<tr><td><a href="/wiki/United_States">United States</a></td><td>Americas</td><td>21,427,700</td><td>2023</td></tr>
<tr><td><a href="/wiki/Somewhere">Somewhere</a></td><td>Asia</td><td>—</td><td>—</td></tr>
<tr><td><a href="/wiki/Midland">Midland</a></td><td>Europe</td><td>100,000</td><td>2023</td></tr>
<tr><td><a href="/wiki/Smalland">Smalland</a></td><td>Europe</td><td>50,000</td><td>2023</td></tr>
</tbody></table>
</body></html>`

var job = etl.Job{
	Name:            "countries_by_gdp",
	SourceURL:       "https://example.test/gdp",
	ExpectedColumns: []string{"Country", "GDP_USD_millions"},
	OutputColumns:   []string{"Country", "GDP_USD_billions"},
	TableName:       "Countries_by_GDP",
}

// memLog records progress messages in memory.
type memLog struct {
	mu   sync.Mutex
	msgs []string
}

func (l *memLog) Log(msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
	return nil
}

// closeTracker wraps a connector to observe Close and to inject failures.
type closeTracker struct {
	dbclient.Connector
	closed     bool
	replaceErr error
}

func (c *closeTracker) ReplaceTable(ctx context.Context, table string, cols []dbclient.ColumnDef, rows [][]any) (int, error) {
	if c.replaceErr != nil {
		return 0, c.replaceErr
	}
	return c.Connector.ReplaceTable(ctx, table, cols, rows)
}

func (c *closeTracker) Close() error {
	c.closed = true
	return c.Connector.Close()
}

type fixture struct {
	dir      string
	dbPath   string
	job      etl.Job
	out      bytes.Buffer
	conns    []*closeTracker
	pipeline *etl.Pipeline
}

func newFixture(t *testing.T, page string, logger etl.ProgressLogger) *fixture {
	t.Helper()
	f := &fixture{dir: t.TempDir(), job: job}
	f.dbPath = filepath.Join(f.dir, "World_Economies.db")
	f.job.OutputPath = filepath.Join(f.dir, "Countries_by_GDP.csv")

	sel, err := sources.NewSelector(sources.SelectorConfig{Strategy: sources.StrategyPosition, Index: 2})
	require.NoError(t, err)

	f.pipeline = &etl.Pipeline{
		Fetcher: etl.FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
			return []byte(page), nil
		}),
		Extractor:   sources.NewHTMLExtractor(sel, ""),
		Transformer: etl.NewRecordTransformer(f.job.OutputColumns, etl.RoundHalfEven),
		Connect: func(ctx context.Context) (dbclient.Connector, error) {
			conn, err := dbclient.NewConnector(&domain.DatabaseConnection{
				Driver: domain.DatabaseDriverSQLite,
				Host:   f.dbPath,
			}, "")
			if err != nil {
				return nil, err
			}
			tracked := &closeTracker{Connector: conn}
			f.conns = append(f.conns, tracked)
			return tracked, nil
		},
		Progress: logger,
		Out:      &f.out,
	}
	return f
}

func (f *fixture) query(t *testing.T, q string) *etl.QueryResult {
	t.Helper()
	conn, err := dbclient.NewConnector(&domain.DatabaseConnection{Driver: domain.DatabaseDriverSQLite, Host: f.dbPath}, "")
	require.NoError(t, err)
	defer conn.Close()
	res, err := etl.NewQueryRunner(conn, nil).Run(context.Background(), q)
	require.NoError(t, err)
	return res
}

func TestPipeline_Run(t *testing.T) {
	logger := &memLog{}
	f := newFixture(t, gdpPage, logger)

	res, err := f.pipeline.Run(context.Background(), f.job)
	require.NoError(t, err)

	assert.True(t, res.Succeeded())
	assert.Equal(t, etl.StateClosed, res.State)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.RowsExtracted)
	assert.Equal(t, 3, res.RowsWritten)
	assert.Equal(t, etl.Milestones, logger.msgs)

	// CSV
	data, err := os.ReadFile(f.job.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, ",Country,GDP_USD_billions\n"+
		"0,United States,21427.70\n"+
		"1,Midland,100.00\n"+
		"2,Smalland,50.00\n", string(data))

	// Query: the 100.00 boundary is included, 50.00 is not.
	assert.Equal(t, `SELECT * FROM "Countries_by_GDP" WHERE "GDP_USD_billions" >= 100`, res.Query)
	require.NotNil(t, res.Result)
	assert.Equal(t, []string{"Country", "GDP_USD_billions"}, res.Result.Columns)
	assert.Equal(t, [][]any{{"United States", 21427.7}, {"Midland", 100.0}}, res.Result.Rows)
	assert.Equal(t, 2, res.QueryRows)
	assert.Contains(t, f.out.String(), res.Query)
	assert.Contains(t, f.out.String(), "Midland")
	assert.NotContains(t, f.out.String(), "Smalland")

	require.Len(t, f.conns, 1)
	assert.True(t, f.conns[0].closed)
}

func TestPipeline_Run_TableAndFileAgree(t *testing.T) {
	f := newFixture(t, gdpPage, nil)
	_, err := f.pipeline.Run(context.Background(), f.job)
	require.NoError(t, err)

	fromFile, err := sources.ReadCSVSnapshot(f.job.OutputPath)
	require.NoError(t, err)
	table := f.query(t, `SELECT "Country", "GDP_USD_billions" FROM "Countries_by_GDP"`)

	require.Equal(t, fromFile.Len(), len(table.Rows))
	for i, r := range fromFile.Records {
		assert.Equal(t, []any{r.Country, r.GDPBillions}, table.Rows[i])
	}
}

func TestPipeline_Run_UsesJobOutputColumns(t *testing.T) {
	f := newFixture(t, gdpPage, nil)
	f.job.OutputColumns = []string{"Nation", "GDP_bn"}

	res, err := f.pipeline.Run(context.Background(), f.job)
	require.NoError(t, err)

	data, err := os.ReadFile(f.job.OutputPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), ",Nation,GDP_bn\n"))
	assert.Equal(t, `SELECT * FROM "Countries_by_GDP" WHERE "GDP_bn" >= 100`, res.Query)
	assert.Equal(t, []string{"Nation", "GDP_bn"}, res.Result.Columns)
}

func TestPipeline_Run_IsIdempotent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "etl_project_log.log")
	f := newFixture(t, gdpPage, progress.New(logPath))

	_, err := f.pipeline.Run(context.Background(), f.job)
	require.NoError(t, err)
	first, err := os.ReadFile(f.job.OutputPath)
	require.NoError(t, err)

	_, err = f.pipeline.Run(context.Background(), f.job)
	require.NoError(t, err)
	second, err := os.ReadFile(f.job.OutputPath)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	count := f.query(t, `SELECT COUNT(*) FROM "Countries_by_GDP"`)
	assert.Equal(t, int64(3), count.Rows[0][0])

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2*len(etl.Milestones))

	linePattern := regexp.MustCompile(`^\d{4}-[A-Z][a-z]{2}-\d{2}-\d{2}:\d{2}:\d{2} : (.+)$`)
	for i, line := range lines {
		m := linePattern.FindStringSubmatch(line)
		require.NotNil(t, m, line)
		assert.Equal(t, etl.Milestones[i%len(etl.Milestones)], m[1])
	}
}

func TestPipeline_Run_StructureErrorHaltsEarly(t *testing.T) {
	page := `<html><body>
<table><tbody><tr><td>a</td></tr></tbody></table>
<table><tbody><tr><td>b</td></tr></tbody></table>
</body></html>`
	logger := &memLog{}
	f := newFixture(t, page, logger)

	res, err := f.pipeline.Run(context.Background(), f.job)

	var serr *etl.StructureError
	require.ErrorAs(t, err, &serr)
	assert.False(t, res.Succeeded())
	assert.Equal(t, etl.StateInitialized, res.State)
	assert.Equal(t, []string{etl.MsgPreliminaries}, logger.msgs)
	assert.NoFileExists(t, f.job.OutputPath)
	assert.Empty(t, f.conns)
}

func TestPipeline_Run_FetchError(t *testing.T) {
	logger := &memLog{}
	f := newFixture(t, gdpPage, logger)
	f.pipeline.Fetcher = etl.FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		return nil, &etl.FetchError{URL: url, StatusCode: 503, Err: errors.New("unavailable")}
	})

	res, err := f.pipeline.Run(context.Background(), f.job)

	var ferr *etl.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, 503, ferr.StatusCode)
	assert.Equal(t, etl.StateInitialized, res.State)
	assert.Len(t, logger.msgs, 1)
}

func TestPipeline_Run_FormatErrorWritesNothing(t *testing.T) {
	page := strings.Replace(gdpPage, "100,000", "1O0,000", 1)
	logger := &memLog{}
	f := newFixture(t, page, logger)

	res, err := f.pipeline.Run(context.Background(), f.job)

	var ferr *etl.FormatError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "Midland", ferr.Country)
	assert.Equal(t, etl.StateExtracted, res.State)
	assert.Equal(t, []string{etl.MsgPreliminaries, etl.MsgExtracted}, logger.msgs)
	assert.NoFileExists(t, f.job.OutputPath)
}

func TestPipeline_Run_TableFailureClosesConnection(t *testing.T) {
	logger := &memLog{}
	f := newFixture(t, gdpPage, logger)
	connect := f.pipeline.Connect
	f.pipeline.Connect = func(ctx context.Context) (dbclient.Connector, error) {
		conn, err := connect(ctx)
		if err != nil {
			return nil, err
		}
		conn.(*closeTracker).replaceErr = errors.New("disk full")
		return conn, nil
	}

	res, err := f.pipeline.Run(context.Background(), f.job)

	var serr *etl.SinkError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "table", serr.Sink)
	assert.Equal(t, etl.StateDBConnected, res.State)
	assert.Equal(t, etl.Milestones[:5], logger.msgs)
	// The file sink already ran and is left in place.
	assert.FileExists(t, f.job.OutputPath)
	require.Len(t, f.conns, 1)
	assert.True(t, f.conns[0].closed)
}

func TestPipeline_Run_QueryErrorIsStoreError(t *testing.T) {
	f := newFixture(t, gdpPage, nil)
	f.job.FilterQuery = `SELECT * FROM "NoSuchTable"`

	res, err := f.pipeline.Run(context.Background(), f.job)

	require.Error(t, err)
	var serr *etl.SinkError
	assert.False(t, errors.As(err, &serr))
	assert.Contains(t, err.Error(), "NoSuchTable")
	assert.Equal(t, etl.StateDBLoaded, res.State)
	require.Len(t, f.conns, 1)
	assert.True(t, f.conns[0].closed)
}

type failingLog struct{}

func (failingLog) Log(string) error { return errors.New("read-only file system") }

func TestPipeline_Run_ProgressLogFailure(t *testing.T) {
	f := newFixture(t, gdpPage, failingLog{})

	_, err := f.pipeline.Run(context.Background(), f.job)

	var serr *etl.SinkError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "progress log", serr.Sink)
}
