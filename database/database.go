package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
)

// NoLimit selects every row of a table
const NoLimit int64 = -1

// SourceManager defines the read-only operations the subset pipeline needs
// from a source database
type SourceManager interface {
	ConnectWithDSN(dsn string) error
	Dialect() string
	ListTables(ctx context.Context) ([]string, error)
	CountRows(ctx context.Context, table string) (int64, error)
	Columns(ctx context.Context, table string) ([]Column, error)
	SelectRows(ctx context.Context, table string, limit int64) (*sql.Rows, error)
	Close() error
}

// TableWriter creates tables and fills them from a result set
type TableWriter interface {
	WriteTable(ctx context.Context, table Table, rows *sql.Rows) (int64, error)
}

// Open picks a SourceManager from the scheme of dsn and connects it. A
// plain path (or a sqlite:// / file: URL) is treated as a SQLite file.
func Open(dsn string) (SourceManager, error) {
	var manager SourceManager

	switch scheme(dsn) {
	case "postgres", "postgresql":
		manager = &PostgresManager{}
	case "mysql":
		manager = &MySQLManager{}
	case "", "sqlite", "sqlite3", "file":
		manager = &SQLiteManager{ReadOnly: true}
	default:
		return nil, fmt.Errorf("unsupported database type: %s", scheme(dsn))
	}

	if err := manager.ConnectWithDSN(dsn); err != nil {
		return nil, fmt.Errorf("connection error: %w", err)
	}
	return manager, nil
}

func scheme(dsn string) string {
	if strings.HasPrefix(dsn, "file:") {
		return "file"
	}
	if !strings.Contains(dsn, "://") {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}
