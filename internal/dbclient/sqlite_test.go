package dbclient

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdpetl/internal/domain"
)

func newTestSQLite(t *testing.T) Connector {
	t.Helper()
	conn, err := NewConnector(&domain.DatabaseConnection{
		Driver: domain.DatabaseDriverSQLite,
		Host:   filepath.Join(t.TempDir(), "nested", "World_Economies.db"),
	}, "")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.TestConnection(context.Background()))
	return conn
}

var gdpCols = []ColumnDef{
	{Name: "Country", Kind: KindText},
	{Name: "GDP_USD_billions", Kind: KindNumber},
}

func drain(t *testing.T, conn Connector, query string, fetchSize int) ([]string, [][]any) {
	t.Helper()
	ctx := context.Background()
	page, err := conn.Execute(ctx, query, fetchSize)
	require.NoError(t, err)
	rows := page.Rows
	for page.HasMore {
		page, err = conn.FetchMore(ctx, fetchSize)
		require.NoError(t, err)
		rows = append(rows, page.Rows...)
	}
	return page.Columns, rows
}

func TestSQLite_ReplaceTable(t *testing.T) {
	conn := newTestSQLite(t)
	ctx := context.Background()
	rows := [][]any{{"United States", 21427.7}, {"Midland", 100.0}, {"Smalland", 50.0}}

	n, err := conn.ReplaceTable(ctx, "Countries_by_GDP", gdpCols, rows)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// A second replacement leaves exactly the new rows.
	n, err = conn.ReplaceTable(ctx, "Countries_by_GDP", gdpCols, rows[:2])
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cols, got := drain(t, conn, `SELECT * FROM "Countries_by_GDP"`, 50)
	assert.Equal(t, []string{"Country", "GDP_USD_billions"}, cols)
	assert.Equal(t, [][]any{{"United States", 21427.7}, {"Midland", 100.0}}, got)
}

func TestSQLite_ReplaceTable_SameRowsTwice(t *testing.T) {
	conn := newTestSQLite(t)
	ctx := context.Background()
	rows := [][]any{{"A", 1.5}, {"B", 2.25}}

	_, err := conn.ReplaceTable(ctx, "t", gdpCols, rows)
	require.NoError(t, err)
	_, first := drain(t, conn, `SELECT * FROM "t"`, 10)
	_, err = conn.ReplaceTable(ctx, "t", gdpCols, rows)
	require.NoError(t, err)
	_, second := drain(t, conn, `SELECT * FROM "t"`, 10)

	assert.Equal(t, first, second)
}

func TestSQLite_ReplaceTable_RollsBack(t *testing.T) {
	conn := newTestSQLite(t)
	ctx := context.Background()

	_, err := conn.ReplaceTable(ctx, "t", gdpCols, [][]any{{"A", 1.0}})
	require.NoError(t, err)

	_, err = conn.ReplaceTable(ctx, "t", gdpCols, [][]any{{"B", 2.0}, {"short"}})
	require.Error(t, err)

	_, got := drain(t, conn, `SELECT * FROM "t"`, 10)
	assert.Equal(t, [][]any{{"A", 1.0}}, got)
}

func TestSQLite_ReplaceTable_Validation(t *testing.T) {
	conn := newTestSQLite(t)
	_, err := conn.ReplaceTable(context.Background(), "", gdpCols, nil)
	assert.Error(t, err)
	_, err = conn.ReplaceTable(context.Background(), "t", nil, nil)
	assert.Error(t, err)
}

func TestSQLite_ExecutePaging(t *testing.T) {
	conn := newTestSQLite(t)
	ctx := context.Background()

	rows := make([][]any, 7)
	for i := range rows {
		rows[i] = []any{string(rune('A' + i)), float64(i)}
	}
	_, err := conn.ReplaceTable(ctx, "t", gdpCols, rows)
	require.NoError(t, err)

	page, err := conn.Execute(ctx, `SELECT "Country" FROM "t" ORDER BY "Country"`, 3)
	require.NoError(t, err)
	assert.Len(t, page.Rows, 3)
	assert.True(t, page.HasMore)

	page, err = conn.FetchMore(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, page.Rows, 3)
	assert.Equal(t, 6, page.TotalFetched)

	page, err = conn.FetchMore(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"G"}}, page.Rows)
	assert.False(t, page.HasMore)

	_, err = conn.FetchMore(ctx, 3)
	assert.Error(t, err)
}

func TestSQLite_ReplaceWhileCursorOpen(t *testing.T) {
	conn := newTestSQLite(t)
	ctx := context.Background()
	_, err := conn.ReplaceTable(ctx, "t", gdpCols, [][]any{{"A", 1.0}, {"B", 2.0}})
	require.NoError(t, err)

	page, err := conn.Execute(ctx, `SELECT * FROM "t"`, 1)
	require.NoError(t, err)
	require.True(t, page.HasMore)

	_, err = conn.ReplaceTable(ctx, "t", gdpCols, [][]any{{"C", 3.0}})
	require.NoError(t, err)
}

func TestSQLite_ExecuteWrite(t *testing.T) {
	conn := newTestSQLite(t)
	ctx := context.Background()
	_, err := conn.ReplaceTable(ctx, "t", gdpCols, [][]any{{"A", 1.0}, {"B", 200.0}})
	require.NoError(t, err)

	page, err := conn.Execute(ctx, `DELETE FROM "t" WHERE "GDP_USD_billions" < 100`, 0)
	require.NoError(t, err)
	assert.True(t, page.IsWrite)
	assert.Equal(t, 1, page.AffectedRows)
}

func TestSQLite_Introspect(t *testing.T) {
	conn := newTestSQLite(t)
	ctx := context.Background()
	_, err := conn.ReplaceTable(ctx, "Countries_by_GDP", gdpCols, nil)
	require.NoError(t, err)

	schema, err := conn.Introspect(ctx)
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)
	assert.Equal(t, TableInfo{
		Name: "Countries_by_GDP",
		Columns: []ColumnInfo{
			{Name: "Country", Type: "TEXT"},
			{Name: "GDP_USD_billions", Type: "REAL"},
		},
	}, schema.Tables[0])
}

func TestSQLite_QuotedIdentifiers(t *testing.T) {
	conn := newTestSQLite(t)
	assert.Equal(t, `"Countries_by_GDP"`, conn.QuoteIdent("Countries_by_GDP"))
	assert.Equal(t, `"we""ird"`, conn.QuoteIdent(`we"ird`))

	cols := []ColumnDef{{Name: "GDP (USD)", Kind: KindNumber}}
	_, err := conn.ReplaceTable(context.Background(), `odd "name"`, cols, [][]any{{1.0}})
	require.NoError(t, err)
	_, rows := drain(t, conn, `SELECT * FROM "odd ""name"""`, 10)
	assert.Equal(t, [][]any{{1.0}}, rows)
}
