package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteManager handles SQLite files, both as a subset source and as the
// subset destination
type SQLiteManager struct {
	DB       *sql.DB
	Path     string
	ReadOnly bool
}

func (s *SQLiteManager) log() *logrus.Entry {
	return logrus.WithField("dialect", "sqlite")
}

func (s *SQLiteManager) Dialect() string {
	return "sqlite"
}

// ConnectWithDSN opens the SQLite file at dsn. A read-only manager refuses to
// open a file that does not exist instead of letting the driver create it.
func (s *SQLiteManager) ConnectWithDSN(dsn string) error {
	path := strings.TrimPrefix(dsn, "sqlite3://")
	path = strings.TrimPrefix(path, "sqlite://")
	path = strings.TrimPrefix(path, "file:")

	openDSN := path
	if s.ReadOnly {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("source database: %w", err)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("source database %s is not a regular file", path)
		}
		openDSN = path + "?_pragma=query_only(1)"
	}

	conn, err := sql.Open("sqlite", openDSN)
	if err != nil {
		return err
	}
	// one connection keeps pragmas and transactions on the same handle
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("opening %s: %w", path, err)
	}

	s.DB = conn
	s.Path = path
	return nil
}

// CreateSQLite opens (creating if needed) a writable SQLite file at path
func CreateSQLite(path string) (*SQLiteManager, error) {
	s := &SQLiteManager{}
	if err := s.ConnectWithDSN(path); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteManager) Close() error {
	if s.DB == nil {
		return nil
	}
	err := s.DB.Close()
	s.DB = nil
	return err
}

// ListTables returns user tables in catalog order. The engine's reserved
// sqlite_* tables are skipped since they cannot be created by name.
func (s *SQLiteManager) ListTables(ctx context.Context) ([]string, error) {
	if s.DB == nil {
		return nil, errors.New("no database connection")
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
	`)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (s *SQLiteManager) CountRows(ctx context.Context, table string) (int64, error) {
	if s.DB == nil {
		return 0, errors.New("no database connection")
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))
	if err := s.DB.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLiteManager) Columns(ctx context.Context, table string) ([]Column, error) {
	if s.DB == nil {
		return nil, errors.New("no database connection")
	}

	columns, err := probeColumns(ctx, s.DB, fmt.Sprintf("SELECT * FROM %s", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	// declared types are already SQLite types
	for i := range columns {
		columns[i].SystemType = columns[i].Type
	}
	return columns, nil
}

func (s *SQLiteManager) SelectRows(ctx context.Context, table string, limit int64) (*sql.Rows, error) {
	if s.DB == nil {
		return nil, errors.New("no database connection")
	}

	columns, err := s.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	// A unary plus drops the declared type of each column, so the driver
	// hands back stored values as-is instead of parsing DATE/DATETIME/TIMESTAMP
	// text into time.Time.
	exprs := make([]string, len(columns))
	for i, col := range columns {
		exprs[i] = fmt.Sprintf("+%s AS %s", quoteIdent(col.Name), quoteIdent(col.Name))
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(exprs, ", "), quoteIdent(table), limitClause(limit))
	s.log().Debugf("select: %s", query)
	return s.DB.QueryContext(ctx, query)
}

// WriteTable replaces table in the database with the rows read from rows.
// Column order follows table.Columns and no extra columns are added.
func (s *SQLiteManager) WriteTable(ctx context.Context, table Table, rows *sql.Rows) (int64, error) {
	if s.DB == nil {
		return 0, errors.New("no database connection")
	}
	if s.ReadOnly {
		return 0, errors.New("database is opened read-only")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table.Name))
	createSQL := createTableSQL(table)
	s.log().Debugf("create table:\n%s", createSQL)

	if _, err := tx.ExecContext(ctx, dropSQL); err != nil {
		return 0, fmt.Errorf("dropping table %s: %w", table.Name, err)
	}
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("creating table %s: %w", table.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(table))
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	values := make([]interface{}, len(table.Columns))
	valuePtrs := make([]interface{}, len(table.Columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	var written int64
	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return written, fmt.Errorf("scanning row: %w", err)
		}
		args := make([]interface{}, len(values))
		for i, val := range values {
			args[i] = convertValue(val, table.Columns[i], table.Dialect)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return written, fmt.Errorf("inserting row %d: %w", written+1, err)
		}
		written++
	}
	if err := rows.Err(); err != nil {
		return written, fmt.Errorf("reading rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return written, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// convertValue turns driver byte slices into text unless the column holds
// binary data, and formats time values as SQL date/time text. Rows from a
// SQLite source pass through untouched.
func convertValue(val interface{}, col Column, dialect string) interface{} {
	if dialect == "sqlite" {
		return val
	}
	switch v := val.(type) {
	case []byte:
		if col.SystemType == "BLOB" {
			return v
		}
		return string(v)
	case time.Time:
		return formatTime(v, col.Type)
	default:
		return val
	}
}

func formatTime(t time.Time, dbType string) string {
	switch strings.ToUpper(dbType) {
	case "DATE":
		return t.Format("2006-01-02")
	case "TIME":
		return t.Format("15:04:05.999999999")
	case "TIMETZ":
		return t.Format("15:04:05.999999999-07:00")
	case "TIMESTAMPTZ":
		return t.Format("2006-01-02 15:04:05.999999999-07:00")
	default:
		return t.Format("2006-01-02 15:04:05.999999999")
	}
}

func createTableSQL(table Table) string {
	defs := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		def := quoteIdent(col.Name)
		if col.SystemType != "" {
			def += " " + col.SystemType
		}
		defs[i] = def
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", quoteIdent(table.Name), strings.Join(defs, ",\n\t"))
}

func insertSQL(table Table) string {
	names := make([]string, len(table.Columns))
	placeholders := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		names[i] = quoteIdent(col.Name)
		placeholders[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table.Name),
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "))
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
