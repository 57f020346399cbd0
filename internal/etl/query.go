package etl

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"gdpetl/internal/dbclient"
)

const queryFetchSize = 100

// QueryResult is the full row set returned by a query.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// QueryRunner executes read queries against the persisted table and renders
// the result for inspection.
type QueryRunner struct {
	Conn dbclient.Connector
	Out  io.Writer // nil disables rendering
}

// NewQueryRunner returns a runner printing to out.
func NewQueryRunner(conn dbclient.Connector, out io.Writer) *QueryRunner {
	return &QueryRunner{Conn: conn, Out: out}
}

// Run prints the statement, executes it, drains the cursor and renders the
// rows. Store errors are returned unmodified.
func (q *QueryRunner) Run(ctx context.Context, query string) (*QueryResult, error) {
	if q.Out != nil {
		fmt.Fprintln(q.Out, query)
	}

	page, err := q.Conn.Execute(ctx, query, queryFetchSize)
	if err != nil {
		return nil, err
	}
	result := &QueryResult{Columns: page.Columns, Rows: page.Rows}
	for page.HasMore {
		page, err = q.Conn.FetchMore(ctx, queryFetchSize)
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, page.Rows...)
	}

	if q.Out != nil {
		RenderRows(q.Out, result.Columns, result.Rows)
	}
	return result, nil
}

// RenderRows writes rows as a rounded table with a leading row index.
func RenderRows(w io.Writer, columns []string, rows [][]any) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	header := table.Row{"#"}
	for _, c := range columns {
		header = append(header, c)
	}
	t.AppendHeader(header)
	for i, r := range rows {
		row := table.Row{i}
		row = append(row, r...)
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d rows", len(rows))})
	t.Render()
}
