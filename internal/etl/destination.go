package etl

import (
	"context"
	"fmt"

	"gdpetl/internal/dbclient"
)

// ── Destination ────────────────────────────────────────────
// A Sink persists a complete RecordSet, replacing whatever the target held
// before. There is no append mode.

// Sink writes a record set to a target system.
type Sink interface {
	Write(ctx context.Context, set RecordSet) error
}

// TableSink replaces a relational table with the record set.
type TableSink struct {
	Conn  dbclient.Connector
	Table string
}

// NewTableSink returns a sink writing table through conn.
func NewTableSink(conn dbclient.Connector, table string) *TableSink {
	return &TableSink{Conn: conn, Table: table}
}

// Write drops and recreates the table with columns (country TEXT,
// gdp REAL) and inserts every record in order. The replacement runs in one
// transaction, so it has committed by the time Write returns nil.
func (s *TableSink) Write(ctx context.Context, set RecordSet) error {
	if s.Conn == nil {
		return &SinkError{Sink: "table", Err: fmt.Errorf("no connection")}
	}
	cols := []dbclient.ColumnDef{
		{Name: set.CountryColumn(), Kind: dbclient.KindText},
		{Name: set.GDPColumn(), Kind: dbclient.KindNumber},
	}
	written, err := s.Conn.ReplaceTable(ctx, s.Table, cols, set.Rows())
	if err != nil {
		return &SinkError{Sink: "table", Err: err}
	}
	if written != set.Len() {
		return &SinkError{Sink: "table", Err: fmt.Errorf("wrote %d of %d rows", written, set.Len())}
	}
	return nil
}
