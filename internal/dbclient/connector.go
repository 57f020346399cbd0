package dbclient

import (
	"context"
	"fmt"

	"gdpetl/internal/domain"
)

// QueryPage is a batch of rows fetched from a query cursor.
type QueryPage struct {
	Columns      []string `json:"columns"`
	Rows         [][]any  `json:"rows"`
	TotalFetched int      `json:"totalFetched"` // total rows fetched so far
	HasMore      bool     `json:"hasMore"`      // cursor has more rows
	IsWrite      bool     `json:"isWrite"`
	AffectedRows int      `json:"affectedRows"`
}

// SchemaInfo describes the tables visible through a connection.
type SchemaInfo struct {
	Tables []TableInfo `json:"tables"`
}

// TableInfo describes a table.
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnInfo describes a column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ColumnKind is the logical type of a column created by ReplaceTable.
// Each driver maps it to its own SQL type.
type ColumnKind string

const (
	KindText   ColumnKind = "text"
	KindNumber ColumnKind = "number"
)

// ColumnDef declares one column of a table created by ReplaceTable.
type ColumnDef struct {
	Name string
	Kind ColumnKind
}

// Connector abstracts interaction with the relational store.
type Connector interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// Execute runs a query and returns the first batch of rows.
	// For reads: opens a cursor and fetches fetchSize rows.
	// For writes: executes and returns affected rows count.
	Execute(ctx context.Context, query string, fetchSize int) (*QueryPage, error)

	// FetchMore continues reading from the open cursor.
	FetchMore(ctx context.Context, fetchSize int) (*QueryPage, error)

	// ReplaceTable drops and recreates table inside a single transaction
	// and inserts rows. It returns the number of rows inserted.
	ReplaceTable(ctx context.Context, table string, cols []ColumnDef, rows [][]any) (int, error)

	// Introspect returns the tables and columns of the database.
	Introspect(ctx context.Context) (*SchemaInfo, error)

	// QuoteIdent quotes an identifier for this driver's SQL dialect.
	QuoteIdent(name string) string

	// Driver reports which engine this connector talks to.
	Driver() domain.DatabaseDriver

	// Close closes the connection and any open cursors.
	Close() error
}

// NewConnector creates a Connector for the given database connection.
// The password must be provided separately.
func NewConnector(conn *domain.DatabaseConnection, password string) (Connector, error) {
	switch conn.Driver {
	case domain.DatabaseDriverSQLite, "":
		return newSQLiteConnector(conn)
	case domain.DatabaseDriverMySQL:
		return newSQLConnector(domain.DatabaseDriverMySQL, "mysql", buildMySQLDSN(conn, password))
	case domain.DatabaseDriverPostgres:
		return newSQLConnector(domain.DatabaseDriverPostgres, "postgres", buildPostgresDSN(conn, password))
	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}
}
