package dbclient

import (
	"fmt"
	"os"
	"path/filepath"

	"gdpetl/internal/domain"

	_ "modernc.org/sqlite"
)

// newSQLiteConnector creates a connector for a local SQLite file, creating
// the parent directory when needed.
func newSQLiteConnector(conn *domain.DatabaseConnection) (*sqlConnector, error) {
	if conn.Host == "" {
		return nil, fmt.Errorf("sqlite: database path is required")
	}
	if dir := filepath.Dir(conn.Host); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	dsn := conn.Host + "?_pragma=busy_timeout(5000)"
	c, err := newSQLConnector(domain.DatabaseDriverSQLite, "sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite allows a single writer
	c.db.SetMaxOpenConns(1)
	return c, nil
}
